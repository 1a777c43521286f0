// Package loop implements the autonomy loop controller: the six-phase cycle
// (observe, reason, decide, act, log, evolve) that drives the overmind. One
// controller runs one logical thread of control — phases execute strictly in
// order, no concurrent cycles, and the stop signal is observed at cycle
// boundaries only. A failed cycle is logged and followed by a cooldown; the
// loop itself never terminates because of a single cycle.
package loop

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"overmind/internal/engine"
	"overmind/internal/ledger"
	"overmind/internal/store"
	"overmind/internal/types"
)

// AgentFactory is the slice of the factory collaborator the controller needs.
type AgentFactory interface {
	SelectRole(counts map[types.Role]int) types.Role
	CreateAgent(role types.Role, creatorID string) (types.Agent, error)
}

// WalletManager is the slice of the key manager the controller needs.
type WalletManager interface {
	CreateWallet(ownerID string, privileged bool) (types.WalletRecord, error)
	GetSigner(ownerID string) (ledger.Signer, error)
	GetBalance(ownerID string) (uint64, error)
}

// Submitter is the slice of the transactional submitter the handlers need.
type Submitter interface {
	Submit(ctx context.Context, signer ledger.Signer, memo ledger.Memo) (string, error)
}

// Options configures a controller. Interval and thresholds are injected; the
// controller has no config-file knowledge of its own.
type Options struct {
	RootID            string
	Interval          time.Duration
	ErrorCooldown     time.Duration
	ObservationWindow int

	// Health classification thresholds
	CriticalSuccessRate float64
	DegradedSuccessRate float64
	CriticalIdle        time.Duration
	DegradedIdle        time.Duration

	// Strategy evolution thresholds
	AgentFloor     int
	LowSuccessRate float64
	MinHistory     int

	// Weight delta the evolve-strategy handler applies per bias
	StrategyBias float64
}

// Controller orchestrates the autonomy cycle against the store, the decision
// engine, the submitter, and the external collaborators.
type Controller struct {
	opts      Options
	store     *store.Store
	engine    *engine.Engine
	submitter Submitter
	wallets   WalletManager
	factory   AgentFactory
	logger    *zap.Logger

	mu        sync.Mutex
	interval  time.Duration
	cycle     int64
	startedAt time.Time
	rng       *rand.Rand

	events chan types.CycleEvent
}

// New builds a controller. All collaborators are required except that a zero
// StrategyBias defaults to 0.1.
func New(opts Options, st *store.Store, eng *engine.Engine, sub Submitter, wallets WalletManager, fac AgentFactory, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StrategyBias == 0 {
		opts.StrategyBias = 0.1
	}
	return &Controller{
		opts:      opts,
		store:     st,
		engine:    eng,
		submitter: sub,
		wallets:   wallets,
		factory:   fac,
		logger:    logger,
		interval:  opts.Interval,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		events:    make(chan types.CycleEvent, 64),
	}
}

// Events returns the cycle event stream consumed by dashboard/CLI. Events are
// dropped, not blocked on, when no consumer keeps up.
func (c *Controller) Events() <-chan types.CycleEvent {
	return c.events
}

// GetActiveAgents returns the active agents, the pull API for dashboards.
func (c *Controller) GetActiveAgents() []types.Agent {
	return c.store.QueryAgents(store.AgentFilter{Status: types.StatusActive})
}

// SetInterval changes the target cycle interval; takes effect at the next
// cycle boundary. Used by config hot-reload.
func (c *Controller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
	c.logger.Info("cycle interval updated", zap.Duration("interval", d))
}

// Interval returns the current target cycle interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Run drives cycles until ctx is cancelled. The stop signal is cooperative:
// it is observed between cycles, never mid-phase. Run returns nil on
// cancellation — stopping is not an error.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()

	if err := c.bootstrap(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	c.logger.Info("autonomy loop starting",
		zap.String("root_id", c.opts.RootID),
		zap.Duration("interval", c.Interval()))

	for {
		if ctx.Err() != nil {
			c.logger.Info("autonomy loop stopped", zap.Int64("cycles", c.cycleCount()))
			return nil
		}

		start := time.Now()
		if err := c.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("autonomy loop stopped", zap.Int64("cycles", c.cycleCount()))
				return nil
			}
			c.logger.Error("cycle failed, cooling down",
				zap.Int64("cycle", c.cycleCount()),
				zap.Duration("cooldown", c.opts.ErrorCooldown),
				zap.Error(err))
			c.emit(types.CycleEvent{Cycle: c.cycleCount(), Phase: types.PhaseObserve, Err: err.Error(), Timestamp: time.Now().UTC()})
			if !sleepCtx(ctx, c.opts.ErrorCooldown) {
				return nil
			}
			continue
		}

		// Pace to the target interval: fast work sleeps the remainder,
		// slow work starts the next cycle immediately.
		if wait := c.Interval() - time.Since(start); wait > 0 {
			if !sleepCtx(ctx, wait) {
				return nil
			}
		}
	}
}

// bootstrap ensures the root identity has a wallet before the first cycle.
func (c *Controller) bootstrap() error {
	_, err := c.wallets.CreateWallet(c.opts.RootID, true)
	return err
}

// RunOnce executes exactly one cycle. Used by tests and the CLI's single-step
// mode; Run uses the same path.
func (c *Controller) RunOnce(ctx context.Context) error {
	c.mu.Lock()
	if c.startedAt.IsZero() {
		c.startedAt = time.Now()
	}
	c.mu.Unlock()
	if err := c.bootstrap(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return c.runCycle(ctx)
}

// runCycle executes the six phases. Any phase error aborts the cycle and
// surfaces to Run's cooldown path; handler errors inside the act phase do NOT
// reach here — they become failed ActionResults.
func (c *Controller) runCycle(ctx context.Context) (err error) {
	defer func() {
		// A panicking handler or collaborator must not kill the loop.
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	c.mu.Lock()
	c.cycle++
	cycle := c.cycle
	c.mu.Unlock()

	cycleStart := time.Now()

	// Phase 1: observe.
	snap, err := c.observe(ctx)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	c.emit(types.CycleEvent{Cycle: cycle, Phase: types.PhaseObserve, Timestamp: time.Now().UTC()})

	// Phase 2: reason.
	options := c.engine.GenerateOptions(snap)
	selected, err := c.engine.Select(options)
	if err != nil {
		return fmt.Errorf("reason: %w", err)
	}
	c.logger.Debug("option selected",
		zap.Int64("cycle", cycle),
		zap.String("action", string(selected.Type)),
		zap.Float64("weight", selected.Weight),
		zap.String("observation", c.describe(snap)))
	c.emit(types.CycleEvent{Cycle: cycle, Phase: types.PhaseReason, Timestamp: time.Now().UTC()})

	// Phase 3: decide.
	decision := c.engine.Materialize(selected, c.opts.RootID)
	c.emit(types.CycleEvent{Cycle: cycle, Phase: types.PhaseDecide, Decision: &decision, Timestamp: time.Now().UTC()})

	// Phase 4: act. Handler failures become failed results, never errors.
	result := c.act(ctx, &decision, snap)
	c.emit(types.CycleEvent{Cycle: cycle, Phase: types.PhaseAct, Decision: &decision, Result: &result, Timestamp: time.Now().UTC()})

	// Phase 5: log. The pair is persisted together; the external reference,
	// when present, rides inside the result.
	if err := c.store.AppendDecision(types.DecisionRecord{Decision: decision, Result: result}); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	c.emit(types.CycleEvent{Cycle: cycle, Phase: types.PhaseLog, Timestamp: time.Now().UTC()})

	// Phase 6: evolve.
	evolution, err := c.evolve(&decision, &result, time.Since(cycleStart))
	if err != nil {
		return fmt.Errorf("evolve: %w", err)
	}
	c.emit(types.CycleEvent{Cycle: cycle, Phase: types.PhaseEvolve, Evolution: evolution, Timestamp: time.Now().UTC()})

	c.logger.Info("cycle complete",
		zap.Int64("cycle", cycle),
		zap.String("action", string(decision.Type)),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", time.Since(cycleStart)))
	return nil
}

// describe renders the observation/analysis pair for one snapshot. Pure
// string work over the counts; never feeds back into selection.
func (c *Controller) describe(snap *engine.Snapshot) string {
	return fmt.Sprintf("%d agents (%d active), %d recent decisions, success rate %.2f, evolution score %.2f",
		len(snap.Agents), snap.ActiveAgents(), len(snap.Recent),
		snap.OverallSuccessRate(), snap.Metrics.EvolutionScore)
}

func (c *Controller) cycleCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

func (c *Controller) emit(ev types.CycleEvent) {
	select {
	case c.events <- ev:
	default:
		// Slow or absent consumer; the loop must not block on telemetry.
	}
}

// sleepCtx waits d or until ctx is done; returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
