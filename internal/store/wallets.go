package store

import (
	"sort"

	"overmind/internal/types"
)

// SaveWallet validates and persists one wallet record (insert or replace).
func (s *Store) SaveWallet(w types.WalletRecord) error {
	if err := w.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.wallets[w.OwnerID]
	s.wallets[w.OwnerID] = w

	if err := s.writeCollection(walletsFile, s.walletsDocLocked()); err != nil {
		if existed {
			s.wallets[w.OwnerID] = prev
		} else {
			delete(s.wallets, w.OwnerID)
		}
		return err
	}
	return nil
}

// GetWallet returns the wallet owned by the given identity.
func (s *Store) GetWallet(ownerID string) (types.WalletRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[ownerID]
	return w, ok
}

// ListWallets returns all wallets ordered by owner id.
func (s *Store) ListWallets() []types.WalletRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.WalletRecord, 0, len(s.wallets))
	for id := range s.wallets {
		out = append(out, s.wallets[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

func (s *Store) walletsDocLocked() *walletsDoc {
	doc := &walletsDoc{Version: schemaVersion, Wallets: make(map[string]types.WalletRecord, len(s.wallets))}
	for id, w := range s.wallets {
		doc.Wallets[id] = w
	}
	return doc
}
