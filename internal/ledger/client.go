// Package ledger implements overmind's transactional submitter: every notable
// action is published as a signed memo on an external append-only ledger, so
// the swarm's history is verifiable outside the process that produced it.
//
// The submitter retries with linear backoff (attempt × base) and obtains a
// fresh checkpoint before every attempt — a retried submission is a distinct
// operation, never a byte-for-byte retransmission. Delivery is therefore
// at-least-once; duplicate memos on the remote ledger are an accepted
// trade-off.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Memo is the wire shape of one published record. Fields carries the
// kind-specific payload as flat string pairs so every memo stays greppable on
// the remote side.
type Memo struct {
	Kind        string            `json:"kind"`
	ActorID     string            `json:"actor_id"`
	Fields      map[string]string `json:"fields,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	RootActorID string            `json:"root_actor_id"`
}

// SignedMemo is a memo bound to a checkpoint and signed by the acting
// identity. The checkpoint is anti-replay material: it must be fresh per
// attempt and is rejected by the ledger once it ages out.
type SignedMemo struct {
	Payload    json.RawMessage `json:"payload"`
	Checkpoint string          `json:"checkpoint"`
	Signer     string          `json:"signer"`    // ledger address
	Signature  string          `json:"signature"` // hex over payload+checkpoint
}

// Confirmation reports the finality status of a submitted memo.
type Confirmation struct {
	Confirmed bool   `json:"confirmed"`
	Slot      uint64 `json:"slot,omitempty"`
	Details   string `json:"details,omitempty"`
}

// Signer is the signing capability the wallet collaborator hands out.
type Signer interface {
	// Address returns the signer's ledger address.
	Address() string
	// Sign signs msg and returns the raw signature bytes.
	Sign(msg []byte) ([]byte, error)
}

// Client is the transport to one ledger endpoint. Implementations: the
// in-process ledger for local runs and the JSON-RPC client for remote runs.
type Client interface {
	// Checkpoint returns current anti-replay/sequencing material.
	Checkpoint(ctx context.Context) (string, error)
	// Submit publishes one signed memo and returns its stable reference.
	Submit(ctx context.Context, memo SignedMemo) (string, error)
	// Confirm reports whether the referenced memo reached finality.
	Confirm(ctx context.Context, ref string) (Confirmation, error)
}

// SubmissionError reports a submission that exhausted its retry budget.
// The last attempt's error is wrapped verbatim.
type SubmissionError struct {
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
