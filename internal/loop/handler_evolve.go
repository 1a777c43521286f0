package loop

import (
	"context"
	"fmt"
	"strings"

	"overmind/internal/engine"
	"overmind/internal/types"
)

// handleEvolveStrategy reads the aggregate success picture and biases the
// engine's base weights accordingly: toward caution when the swarm is
// failing, toward growth when it is small, toward delegation once enough
// history exists. The adjustments made are published as one record.
func (c *Controller) handleEvolveStrategy(ctx context.Context, decision *types.Decision, snap *engine.Snapshot) (string, string, error) {
	rate := snap.OverallSuccessRate()
	active := snap.ActiveAgents()

	var adjustments []string

	if rate < c.opts.LowSuccessRate && len(snap.Recent) > 0 {
		c.engine.Adjust(types.ActionWait, c.opts.StrategyBias)
		adjustments = append(adjustments, fmt.Sprintf("wait+%.2f (success rate %.2f)", c.opts.StrategyBias, rate))
	}
	if active < c.opts.AgentFloor {
		c.engine.Adjust(types.ActionSpawnAgent, c.opts.StrategyBias)
		adjustments = append(adjustments, fmt.Sprintf("spawn+%.2f (%d active)", c.opts.StrategyBias, active))
	} else if c.store.DecisionCount() >= c.opts.MinHistory {
		c.engine.Adjust(types.ActionDelegate, c.opts.StrategyBias)
		adjustments = append(adjustments, fmt.Sprintf("delegate+%.2f (history %d)", c.opts.StrategyBias, c.store.DecisionCount()))
	}

	summary := "no adjustment needed"
	if len(adjustments) > 0 {
		summary = strings.Join(adjustments, ", ")
	}

	ref, pubErr := c.publish(ctx, c.opts.RootID, "evolve_strategy", map[string]string{
		"success_rate": fmt.Sprintf("%.3f", rate),
		"adjustments":  summary,
	})
	outcome := "strategy review: " + summary
	if pubErr != nil {
		return outcome, "", pubErr
	}
	return outcome, ref, nil
}
