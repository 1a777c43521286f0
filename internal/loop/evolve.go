package loop

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"overmind/internal/types"
)

const (
	// Probability of recording an EvolutionEvent after a reinforcement.
	evolutionEventProbability = 0.5

	// Evolution score deltas per cycle outcome, clamped to [0,1].
	scoreRewardSuccess  = 0.01
	scorePenaltyFailure = 0.005
)

// evolve is phase 6: reinforce the engine, sometimes record the weight
// change, and fold the cycle's outcome into the aggregate metrics.
func (c *Controller) evolve(decision *types.Decision, result *types.ActionResult, elapsed time.Duration) (*types.EvolutionEvent, error) {
	before := c.engine.Snapshot()
	c.engine.Reinforce(decision.Type, result.Success)
	after := c.engine.Snapshot()

	var event *types.EvolutionEvent
	if c.chance(evolutionEventProbability) {
		ev := types.EvolutionEvent{
			ID:          uuid.NewString(),
			Kind:        "weight_adjustment",
			Description: fmt.Sprintf("reinforced %s after %s", decision.Type, outcomeWord(result.Success)),
			Before:      before,
			After:       after,
			Timestamp:   time.Now().UTC(),
			TriggeredBy: decision.ID,
		}
		if err := c.store.AppendEvolution(ev); err != nil {
			return nil, err
		}
		event = &ev
	}

	active := int64(len(c.GetActiveAgents()))
	c.mu.Lock()
	started := c.startedAt
	c.mu.Unlock()

	_, err := c.store.UpdateMetrics(func(m *types.SystemMetrics) {
		m.TotalDecisions++
		if result.Success {
			m.SuccessfulActions++
			m.EvolutionScore = clamp01(m.EvolutionScore + scoreRewardSuccess)
		} else {
			m.FailedActions++
			m.EvolutionScore = clamp01(m.EvolutionScore - scorePenaltyFailure)
		}
		n := float64(m.TotalDecisions)
		m.AverageCycleTimeMs = (m.AverageCycleTimeMs*(n-1) + float64(elapsed.Milliseconds())) / n
		m.ActiveAgents = active
		if !started.IsZero() {
			m.UptimeSeconds = int64(time.Since(started).Seconds())
		}
	})
	if err != nil {
		return event, err
	}
	return event, nil
}

func (c *Controller) chance(p float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func outcomeWord(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
