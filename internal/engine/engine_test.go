package engine

import (
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"overmind/internal/types"
)

func testThresholds() Thresholds {
	return Thresholds{
		AgentFloor:      2,
		AgentCeiling:    5,
		WeightMin:       0.05,
		WeightMax:       0.9,
		ReinforceStep:   0.05,
		SelectionJitter: 0.2,
		LowSuccessRate:  0.5,
		MinHistory:      10,
	}
}

func newTestEngine(seed int64) *Engine {
	e := New(testThresholds(), zap.NewNop())
	e.rng = rand.New(rand.NewSource(seed))
	return e
}

func activeAgents(n int) []types.Agent {
	agents := make([]types.Agent, n)
	for i := range agents {
		agents[i] = types.Agent{
			ID:     string(rune('a' + i)),
			Role:   types.RoleScout,
			Status: types.StatusActive,
		}
	}
	return agents
}

func optionFor(t *testing.T, options []Option, at types.ActionType) Option {
	t.Helper()
	for _, opt := range options {
		if opt.Type == at {
			return opt
		}
	}
	t.Fatalf("no option for action type %q", at)
	return Option{}
}

func TestGenerateOptionsEmptySwarmFavorsSpawn(t *testing.T) {
	e := newTestEngine(1)
	snap := &Snapshot{ObservedAt: time.Now()}

	options := e.GenerateOptions(snap)
	if len(options) != len(types.AllActionTypes()) {
		t.Fatalf("option count = %d, want %d", len(options), len(types.AllActionTypes()))
	}

	spawn := optionFor(t, options, types.ActionSpawnAgent)
	coord := optionFor(t, options, types.ActionCoordinate)
	if spawn.Weight <= coord.Weight {
		t.Errorf("empty swarm: spawn weight %v not above coordinate weight %v", spawn.Weight, coord.Weight)
	}
}

func TestGenerateOptionsLargeSwarmFavorsCoordinate(t *testing.T) {
	e := newTestEngine(1)
	snap := &Snapshot{Agents: activeAgents(6), ObservedAt: time.Now()}

	options := e.GenerateOptions(snap)
	spawn := optionFor(t, options, types.ActionSpawnAgent)
	coord := optionFor(t, options, types.ActionCoordinate)
	if coord.Weight <= spawn.Weight {
		t.Errorf("6 active agents: coordinate weight %v not above spawn weight %v", coord.Weight, spawn.Weight)
	}
}

func TestGenerateOptionsWeightsAlwaysClamped(t *testing.T) {
	e := newTestEngine(1)
	// Saturate some weights first.
	for i := 0; i < 50; i++ {
		e.Reinforce(types.ActionSpawnAgent, true)
		e.Reinforce(types.ActionWait, false)
	}

	for _, snap := range []*Snapshot{
		{},
		{Agents: activeAgents(1)},
		{Agents: activeAgents(6)},
		{Agents: activeAgents(3), Metrics: types.SystemMetrics{SuccessfulActions: 1, FailedActions: 9}},
	} {
		for _, opt := range e.GenerateOptions(snap) {
			if opt.Weight < 0.05 || opt.Weight > 0.9 {
				t.Errorf("option %s weight %v outside [0.05, 0.9]", opt.Type, opt.Weight)
			}
		}
	}
}

func TestReinforceSaturates(t *testing.T) {
	e := newTestEngine(1)

	for i := 0; i < 100; i++ {
		e.Reinforce(types.ActionSpawnAgent, true)
	}
	if w := e.Snapshot()[string(types.ActionSpawnAgent)]; w != 0.9 {
		t.Errorf("repeated success: weight = %v, want saturation at 0.9", w)
	}

	for i := 0; i < 100; i++ {
		e.Reinforce(types.ActionSpawnAgent, false)
	}
	if w := e.Snapshot()[string(types.ActionSpawnAgent)]; w != 0.05 {
		t.Errorf("repeated failure: weight = %v, want floor at 0.05", w)
	}
}

func TestSelectReturnsMemberOfInput(t *testing.T) {
	e := newTestEngine(42)
	snap := &Snapshot{Agents: activeAgents(3)}
	options := e.GenerateOptions(snap)

	valid := make(map[types.ActionType]bool)
	for _, opt := range options {
		valid[opt.Type] = true
	}

	for i := 0; i < 500; i++ {
		picked, err := e.Select(options)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if !valid[picked.Type] {
			t.Fatalf("Select fabricated option %q", picked.Type)
		}
	}
}

func TestSelectEmptyInputFails(t *testing.T) {
	e := newTestEngine(1)
	if _, err := e.Select(nil); err == nil {
		t.Error("expected error on empty option set")
	}
}

func TestSelectFollowsWeights(t *testing.T) {
	e := newTestEngine(7)
	options := []Option{
		{Type: types.ActionSpawnAgent, Weight: 0.9},
		{Type: types.ActionWait, Weight: 0.05},
	}

	heavy := 0
	const trials = 2000
	for i := 0; i < trials; i++ {
		picked, err := e.Select(options)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if picked.Type == types.ActionSpawnAgent {
			heavy++
		}
	}
	// 0.9 vs 0.05 should win the overwhelming majority even with ±20% jitter.
	if float64(heavy)/trials < 0.8 {
		t.Errorf("heavy option picked %d/%d times, expected dominance", heavy, trials)
	}
}

func TestMaterializeStampsDecision(t *testing.T) {
	e := newTestEngine(1)
	opt := Option{Type: types.ActionSpawnAgent, Weight: 0.54, Rationale: "swarm below floor"}

	d := e.Materialize(opt, "overmind-root")
	if d.ID == "" {
		t.Error("decision id not stamped")
	}
	if d.Confidence != 0.54 {
		t.Errorf("confidence = %v, want pre-jitter weight 0.54", d.Confidence)
	}
	if d.MadeBy != "overmind-root" {
		t.Errorf("MadeBy = %q", d.MadeBy)
	}
	if d.Params.Spawn == nil {
		t.Error("spawn params union member not set")
	}
	if err := d.Validate(); err != nil {
		t.Errorf("materialized decision invalid: %v", err)
	}

	// Two materializations of the same option get distinct ids.
	if e.Materialize(opt, "overmind-root").ID == d.ID {
		t.Error("decision ids collide")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEngine(1)
	snap := e.Snapshot()
	snap[string(types.ActionWait)] = 99

	if e.Snapshot()[string(types.ActionWait)] == 99 {
		t.Error("Snapshot leaked internal map")
	}
}

func TestAdjustClamps(t *testing.T) {
	e := newTestEngine(1)
	e.Adjust(types.ActionWait, 5.0)
	if w := e.Snapshot()[string(types.ActionWait)]; w != 0.9 {
		t.Errorf("Adjust above max: weight = %v, want 0.9", w)
	}
	e.Adjust(types.ActionWait, -5.0)
	if w := e.Snapshot()[string(types.ActionWait)]; w != 0.05 {
		t.Errorf("Adjust below min: weight = %v, want 0.05", w)
	}
}
