// Package wallet implements the key manager collaborator: it mints ed25519
// identities, hands out signing capabilities, and tracks balances. Key
// material is persisted through the memory store's wallets collection, so
// identities survive restarts. Local custody only — nothing here talks to a
// remote signer.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"overmind/internal/ledger"
	"overmind/internal/store"
	"overmind/internal/types"
)

// Initial grants, in the smallest ledger unit.
const (
	rootGrant  uint64 = 10_000_000
	childGrant uint64 = 100_000
)

// Manager mints and serves wallets backed by the store.
type Manager struct {
	store  *store.Store
	logger *zap.Logger
}

// NewManager builds a wallet manager on top of the given store.
func NewManager(st *store.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: st, logger: logger}
}

// CreateWallet mints a fresh keypair for ownerID and persists it. Privileged
// wallets (the root controller) receive the larger initial grant. Creating a
// wallet for an owner that already has one returns the existing record.
func (m *Manager) CreateWallet(ownerID string, privileged bool) (types.WalletRecord, error) {
	if existing, ok := m.store.GetWallet(ownerID); ok {
		return existing, nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.WalletRecord{}, &types.CollaboratorError{Collaborator: "wallet", Op: "create", Err: err}
	}

	grant := childGrant
	if privileged {
		grant = rootGrant
	}

	rec := types.WalletRecord{
		OwnerID:    ownerID,
		Address:    deriveAddress(pub),
		PublicKey:  hex.EncodeToString(pub),
		SecretKey:  hex.EncodeToString(priv),
		Balance:    grant,
		Privileged: privileged,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.SaveWallet(rec); err != nil {
		return types.WalletRecord{}, &types.CollaboratorError{Collaborator: "wallet", Op: "create", Err: err}
	}

	m.logger.Info("wallet created",
		zap.String("owner", ownerID),
		zap.String("address", rec.Address),
		zap.Bool("privileged", privileged))
	return rec, nil
}

// GetSigner returns the signing capability for ownerID.
func (m *Manager) GetSigner(ownerID string) (ledger.Signer, error) {
	rec, ok := m.store.GetWallet(ownerID)
	if !ok {
		return nil, &types.CollaboratorError{Collaborator: "wallet", Op: "get_signer",
			Err: fmt.Errorf("no wallet for %s", ownerID)}
	}
	priv, err := hex.DecodeString(rec.SecretKey)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, &types.CollaboratorError{Collaborator: "wallet", Op: "get_signer",
			Err: fmt.Errorf("corrupt key material for %s", ownerID)}
	}
	return &Signer{address: rec.Address, priv: ed25519.PrivateKey(priv)}, nil
}

// GetBalance returns ownerID's balance in the smallest ledger unit.
func (m *Manager) GetBalance(ownerID string) (uint64, error) {
	rec, ok := m.store.GetWallet(ownerID)
	if !ok {
		return 0, &types.CollaboratorError{Collaborator: "wallet", Op: "get_balance",
			Err: fmt.Errorf("no wallet for %s", ownerID)}
	}
	return rec.Balance, nil
}

// Signer signs memos as one wallet identity.
type Signer struct {
	address string
	priv    ed25519.PrivateKey
}

// Address returns the signer's ledger address.
func (s *Signer) Address() string { return s.address }

// Sign signs msg with the wallet's private key.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

// deriveAddress maps a public key to a short printable ledger address.
func deriveAddress(pub ed25519.PublicKey) string {
	return "OM" + strings.ToUpper(hex.EncodeToString(pub[:12]))
}
