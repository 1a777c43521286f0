package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"overmind/internal/store"
	"overmind/internal/types"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return NewManager(st, zap.NewNop()), st, dir
}

func TestCreateWalletGrants(t *testing.T) {
	m, _, _ := newTestManager(t)

	root, err := m.CreateWallet("overmind-root", true)
	if err != nil {
		t.Fatalf("CreateWallet root: %v", err)
	}
	if root.Balance != rootGrant {
		t.Errorf("root balance = %d, want %d", root.Balance, rootGrant)
	}
	if !strings.HasPrefix(root.Address, "OM") {
		t.Errorf("address %q missing OM prefix", root.Address)
	}

	child, err := m.CreateWallet("agent-1", false)
	if err != nil {
		t.Fatalf("CreateWallet child: %v", err)
	}
	if child.Balance != childGrant {
		t.Errorf("child balance = %d, want %d", child.Balance, childGrant)
	}
	if child.Address == root.Address {
		t.Error("distinct owners share an address")
	}
}

func TestCreateWalletIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)

	first, err := m.CreateWallet("agent-1", false)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	second, err := m.CreateWallet("agent-1", false)
	if err != nil {
		t.Fatalf("CreateWallet again: %v", err)
	}
	if first.Address != second.Address || first.SecretKey != second.SecretKey {
		t.Error("repeated CreateWallet minted a new identity")
	}
}

func TestSignerSignsVerifiably(t *testing.T) {
	m, _, _ := newTestManager(t)
	rec, err := m.CreateWallet("agent-1", false)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	signer, err := m.GetSigner("agent-1")
	if err != nil {
		t.Fatalf("GetSigner: %v", err)
	}
	if signer.Address() != rec.Address {
		t.Errorf("signer address = %q, want %q", signer.Address(), rec.Address)
	}

	msg := []byte("memo-payload")
	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	pub, err := hex.DecodeString(rec.PublicKey)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		t.Error("signature does not verify against stored public key")
	}
}

func TestGetSignerMissingWallet(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.GetSigner("ghost")
	if err == nil {
		t.Fatal("expected error for missing wallet")
	}
	var cerr *types.CollaboratorError
	if !errors.As(err, &cerr) {
		t.Errorf("error type = %T, want *CollaboratorError", err)
	}
}

func TestWalletSurvivesRestart(t *testing.T) {
	m, _, dir := newTestManager(t)
	rec, err := m.CreateWallet("agent-1", false)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	st2, err := store.New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	m2 := NewManager(st2, zap.NewNop())

	bal, err := m2.GetBalance("agent-1")
	if err != nil {
		t.Fatalf("GetBalance after restart: %v", err)
	}
	if bal != rec.Balance {
		t.Errorf("balance after restart = %d, want %d", bal, rec.Balance)
	}
	if _, err := m2.GetSigner("agent-1"); err != nil {
		t.Errorf("GetSigner after restart: %v", err)
	}
}
