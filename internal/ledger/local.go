package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// LocalClient is an in-process ledger for offline runs and tests. Submitted
// memos are held in memory and confirm immediately. Failure injection knobs
// let tests exercise the submitter's retry path.
type LocalClient struct {
	mu        sync.Mutex
	slot      uint64
	entries   map[string]SignedMemo
	order     []string
	failLeft  int
	failError error
}

// NewLocalClient returns an empty in-process ledger.
func NewLocalClient() *LocalClient {
	return &LocalClient{entries: make(map[string]SignedMemo)}
}

// FailNext makes the next n Submit calls fail with err.
func (c *LocalClient) FailNext(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLeft = n
	c.failError = err
}

// Checkpoint advances the slot and returns a digest of it, mimicking a recent
// block reference. Every call returns different material.
func (c *LocalClient) Checkpoint(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot++
	sum := sha256.Sum256([]byte(fmt.Sprintf("slot-%d", c.slot)))
	return hex.EncodeToString(sum[:8]), nil
}

// Submit stores the memo and returns a digest reference.
func (c *LocalClient) Submit(ctx context.Context, memo SignedMemo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failLeft > 0 {
		c.failLeft--
		return "", c.failError
	}

	sum := sha256.Sum256(append(memo.Payload, []byte(memo.Checkpoint)...))
	ref := hex.EncodeToString(sum[:16])
	c.entries[ref] = memo
	c.order = append(c.order, ref)
	return ref, nil
}

// Confirm reports finality for a stored memo.
func (c *LocalClient) Confirm(ctx context.Context, ref string) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[ref]; !ok {
		return Confirmation{Confirmed: false, Details: "unknown reference"}, nil
	}
	return Confirmation{Confirmed: true, Slot: c.slot, Details: "finalized"}, nil
}

// Len returns the number of memos the ledger holds.
func (c *LocalClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get returns the memo stored under ref.
func (c *LocalClient) Get(ref string) (SignedMemo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[ref]
	return m, ok
}
