// Package engine implements overmind's decision policy: a mutable weight
// vector over the action types, deterministic state-dependent multipliers,
// and a jittered weighted-random selection. The jitter keeps the policy from
// looking scripted; the multipliers keep it self-correcting — more growth
// when the swarm is small, more coordination when it is large. Reinforcement
// is the only mutation and the vector is never reset after construction.
package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"overmind/internal/types"
)

// Thresholds carries the numeric knobs the engine consumes. The zero value is
// not usable; build one from config.
type Thresholds struct {
	AgentFloor      int
	AgentCeiling    int
	WeightMin       float64
	WeightMax       float64
	ReinforceStep   float64
	SelectionJitter float64 // symmetric fraction, 0.2 means ±20%
	LowSuccessRate  float64
	MinHistory      int
}

// Snapshot is the immutable observation one cycle reasons over. The engine
// reads only the counts; handlers read the full record lists.
type Snapshot struct {
	Agents     []types.Agent
	Recent     []types.DecisionRecord
	Metrics    types.SystemMetrics
	Balances   map[string]uint64
	ObservedAt time.Time
}

// ActiveAgents counts agents currently in the active status.
func (s *Snapshot) ActiveAgents() int {
	n := 0
	for i := range s.Agents {
		if s.Agents[i].Status == types.StatusActive {
			n++
		}
	}
	return n
}

// RoleCounts returns the number of agents per role, all statuses included.
func (s *Snapshot) RoleCounts() map[types.Role]int {
	counts := make(map[types.Role]int)
	for i := range s.Agents {
		counts[s.Agents[i].Role]++
	}
	return counts
}

// OverallSuccessRate derives the lifetime success rate from the aggregate
// counters, defaulting to 1.0 before any action has run.
func (s *Snapshot) OverallSuccessRate() float64 {
	total := s.Metrics.SuccessfulActions + s.Metrics.FailedActions
	if total == 0 {
		return 1.0
	}
	return float64(s.Metrics.SuccessfulActions) / float64(total)
}

// Option is one candidate action with its pre-jitter weight and the
// human-readable rationale derived from the same counts.
type Option struct {
	Type      types.ActionType
	Weight    float64 // post-multiplier, post-clamp, pre-jitter
	Rationale string
}

// Engine owns the base weight vector. One engine instance serves one
// controller; Reinforce and Adjust are the only mutations.
type Engine struct {
	mu      sync.Mutex
	weights map[types.ActionType]float64
	thresh  Thresholds
	rng     *rand.Rand
	logger  *zap.Logger
}

// Starting base weights. These matter less than the multipliers: after a few
// hundred cycles reinforcement dominates.
var initialWeights = map[types.ActionType]float64{
	types.ActionSpawnAgent: 0.30,
	types.ActionCoordinate: 0.20,
	types.ActionEvolve:     0.15,
	types.ActionDelegate:   0.20,
	types.ActionAnalyze:    0.10,
	types.ActionWait:       0.05,
}

// New builds an engine with the initial weight vector.
func New(thresh Thresholds, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		weights: make(map[types.ActionType]float64, len(initialWeights)),
		thresh:  thresh,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger,
	}
	for at, w := range initialWeights {
		e.weights[at] = e.clamp(w)
	}
	return e
}

func (e *Engine) clamp(w float64) float64 {
	if w < e.thresh.WeightMin {
		return e.thresh.WeightMin
	}
	if w > e.thresh.WeightMax {
		return e.thresh.WeightMax
	}
	return w
}

// GenerateOptions computes one option per action type: base weight × a
// deterministic multiplier from the snapshot counts, clamped to the weight
// bounds. The rationale strings are observability only, never load-bearing.
func (e *Engine) GenerateOptions(snap *Snapshot) []Option {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := snap.ActiveAgents()
	history := len(snap.Recent)
	successRate := snap.OverallSuccessRate()

	options := make([]Option, 0, len(initialWeights))
	for _, at := range types.AllActionTypes() {
		mult, why := e.multiplier(at, active, history, successRate)
		options = append(options, Option{
			Type:      at,
			Weight:    e.clamp(e.weights[at] * mult),
			Rationale: why,
		})
	}
	return options
}

// multiplier is a pure function of the observed counts. Callers hold e.mu.
func (e *Engine) multiplier(at types.ActionType, active, history int, successRate float64) (float64, string) {
	switch at {
	case types.ActionSpawnAgent:
		if active < e.thresh.AgentFloor {
			return 1.8, fmt.Sprintf("swarm below floor (%d/%d active), growth favored", active, e.thresh.AgentFloor)
		}
		if active >= e.thresh.AgentCeiling {
			return 0.5, fmt.Sprintf("swarm at ceiling (%d active), growth discouraged", active)
		}
		return 1.0, fmt.Sprintf("swarm size nominal (%d active)", active)

	case types.ActionCoordinate:
		if active >= e.thresh.AgentCeiling {
			return 1.6, fmt.Sprintf("large swarm (%d active), coordination favored", active)
		}
		if active <= 1 {
			return 0.4, fmt.Sprintf("too few agents (%d active) to coordinate", active)
		}
		return 1.0, fmt.Sprintf("swarm of %d agents, coordination optional", active)

	case types.ActionEvolve:
		if successRate < e.thresh.LowSuccessRate && history > 0 {
			return 1.5, fmt.Sprintf("success rate %.2f below %.2f, strategy review favored", successRate, e.thresh.LowSuccessRate)
		}
		return 1.0, fmt.Sprintf("success rate %.2f acceptable", successRate)

	case types.ActionDelegate:
		if active == 0 {
			return 0.2, "no agents to delegate to"
		}
		if history >= e.thresh.MinHistory {
			return 1.3, fmt.Sprintf("%d decisions of history, delegation informed", history)
		}
		return 1.0, fmt.Sprintf("limited history (%d decisions)", history)

	case types.ActionAnalyze:
		if history >= e.thresh.MinHistory {
			return 1.2, fmt.Sprintf("%d decisions available for analysis", history)
		}
		return 0.8, fmt.Sprintf("thin history (%d decisions), analysis low-value", history)

	case types.ActionWait:
		if successRate < e.thresh.LowSuccessRate && history > 0 {
			return 1.2, fmt.Sprintf("success rate %.2f low, pausing is safe", successRate)
		}
		return 1.0, "no pressure to pause"
	}
	return 1.0, "unknown action type"
}

// Select draws one option by weighted random choice. Each weight gets
// symmetric multiplicative jitter (±SelectionJitter), the jittered weights
// are renormalized to sum to 1, and a single uniform draw picks by cumulative
// weight. Floating-point shortfall falls back to the last option: Select
// never fails on a non-empty input and never fabricates an option.
func (e *Engine) Select(options []Option) (Option, error) {
	if len(options) == 0 {
		return Option{}, fmt.Errorf("no options to select from")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	jittered := make([]float64, len(options))
	total := 0.0
	for i, opt := range options {
		j := opt.Weight * (1 + (e.rng.Float64()*2-1)*e.thresh.SelectionJitter)
		if j < 0 {
			j = 0
		}
		jittered[i] = j
		total += j
	}
	if total <= 0 {
		// Degenerate all-zero vector; uniform choice keeps the contract.
		return options[e.rng.Intn(len(options))], nil
	}

	draw := e.rng.Float64()
	cum := 0.0
	for i, j := range jittered {
		cum += j / total
		if draw < cum {
			return options[i], nil
		}
	}
	return options[len(options)-1], nil
}

// Materialize stamps the selected option into a Decision: fresh id, current
// time, confidence equal to the pre-jitter weight, and the parameter union
// member for its action type.
func (e *Engine) Materialize(opt Option, actorID string) types.Decision {
	d := types.Decision{
		ID:         uuid.NewString(),
		Type:       opt.Type,
		Reasoning:  opt.Rationale,
		Timestamp:  time.Now().UTC(),
		Confidence: opt.Weight,
		MadeBy:     actorID,
	}
	switch opt.Type {
	case types.ActionSpawnAgent:
		d.Params.Spawn = &types.SpawnParams{}
	case types.ActionCoordinate:
		d.Params.Coordinate = &types.CoordinateParams{Reason: opt.Rationale}
	case types.ActionEvolve:
		d.Params.Evolve = &types.EvolveParams{Trigger: opt.Rationale}
	case types.ActionDelegate:
		d.Params.Delegate = &types.DelegateParams{}
	case types.ActionAnalyze:
		d.Params.Analyze = &types.AnalyzeParams{}
	}
	return d
}

// Reinforce nudges the base weight for one action type by the reinforcement
// step: up on success, down on failure, clamped to the weight bounds.
func (e *Engine) Reinforce(at types.ActionType, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.thresh.ReinforceStep
	if !success {
		step = -step
	}
	before := e.weights[at]
	e.weights[at] = e.clamp(before + step)

	e.logger.Debug("weight reinforced",
		zap.String("action", string(at)),
		zap.Bool("success", success),
		zap.Float64("before", before),
		zap.Float64("after", e.weights[at]))
}

// Adjust shifts one base weight by delta (clamped). Used by the
// evolve-strategy handler to bias the policy from aggregate observations.
func (e *Engine) Adjust(at types.ActionType, delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights[at] = e.clamp(e.weights[at] + delta)
}

// Snapshot returns a copy of the current base weights keyed by action type
// name, the shape evolution events persist.
func (e *Engine) Snapshot() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]float64, len(e.weights))
	for at, w := range e.weights {
		out[string(at)] = w
	}
	return out
}
