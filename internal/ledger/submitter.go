package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"overmind/internal/types"
)

// OpsCounter is the slice of the memory store the submitter needs: the
// aggregate record, for the one-increment-per-success bookkeeping.
type OpsCounter interface {
	UpdateMetrics(patch func(*types.SystemMetrics)) (types.SystemMetrics, error)
}

// Submitter publishes memos through a Client with bounded retry. Confirmation
// is synchronous: Submit does not return a reference until the memo is
// finalized at the ledger's durability level.
type Submitter struct {
	client      Client
	counter     OpsCounter
	logger      *zap.Logger
	maxAttempts int
	retryBase   time.Duration

	// sleep is swapped out by tests; production uses a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSubmitter builds a submitter with the given retry budget. A nil counter
// disables the aggregate side effect (used by one-shot CLI paths).
func NewSubmitter(client Client, counter OpsCounter, logger *zap.Logger, maxAttempts int, retryBase time.Duration) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Submitter{
		client:      client,
		counter:     counter,
		logger:      logger,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submit signs and publishes memo, retrying up to the attempt budget with
// linear backoff (attempt × base). Sequencing material is refreshed before
// every attempt; material from a failed attempt is never reused. On
// exhaustion the last error propagates inside a SubmissionError.
func (s *Submitter) Submit(ctx context.Context, signer Signer, memo Memo) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ref, err := s.attemptOnce(ctx, signer, memo)
		if err == nil {
			s.recordSuccess()
			s.logger.Debug("memo submitted",
				zap.String("kind", memo.Kind),
				zap.String("ref", ref),
				zap.Int("attempt", attempt))
			return ref, nil
		}
		lastErr = err
		s.logger.Warn("memo submission attempt failed",
			zap.String("kind", memo.Kind),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Error(err))

		if attempt < s.maxAttempts {
			if werr := s.sleep(ctx, time.Duration(attempt)*s.retryBase); werr != nil {
				return "", &SubmissionError{Attempts: attempt, Err: werr}
			}
		}
	}

	return "", &SubmissionError{Attempts: s.maxAttempts, Err: lastErr}
}

// Confirm re-checks finality of a previously returned reference.
func (s *Submitter) Confirm(ctx context.Context, ref string) (Confirmation, error) {
	return s.client.Confirm(ctx, ref)
}

func (s *Submitter) attemptOnce(ctx context.Context, signer Signer, memo Memo) (string, error) {
	checkpoint, err := s.client.Checkpoint(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch checkpoint: %w", err)
	}

	payload, err := json.Marshal(memo)
	if err != nil {
		return "", fmt.Errorf("marshal memo: %w", err)
	}

	sig, err := signer.Sign(append(payload, []byte(checkpoint)...))
	if err != nil {
		return "", fmt.Errorf("sign memo: %w", err)
	}

	signed := SignedMemo{
		Payload:    payload,
		Checkpoint: checkpoint,
		Signer:     signer.Address(),
		Signature:  hex.EncodeToString(sig),
	}

	ref, err := s.client.Submit(ctx, signed)
	if err != nil {
		return "", err
	}

	conf, err := s.client.Confirm(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("confirm %s: %w", ref, err)
	}
	if !conf.Confirmed {
		return "", fmt.Errorf("memo %s not finalized: %s", ref, conf.Details)
	}
	return ref, nil
}

func (s *Submitter) recordSuccess() {
	if s.counter == nil {
		return
	}
	if _, err := s.counter.UpdateMetrics(func(m *types.SystemMetrics) {
		m.TotalLedgerOps++
	}); err != nil {
		s.logger.Warn("failed to record ledger op in aggregate", zap.Error(err))
	}
}
