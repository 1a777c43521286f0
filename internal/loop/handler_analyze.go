package loop

import (
	"context"
	"fmt"
	"strconv"

	"overmind/internal/engine"
	"overmind/internal/types"
)

// handleAnalyze computes role coverage gaps, the overall success rate, and
// swarm-size heuristics into an ordered recommendation list, then publishes
// the top recommendation.
func (c *Controller) handleAnalyze(ctx context.Context, decision *types.Decision, snap *engine.Snapshot) (string, string, error) {
	counts := snap.RoleCounts()
	rate := snap.OverallSuccessRate()
	active := snap.ActiveAgents()

	var recommendations []string

	for _, role := range types.AllRoles() {
		if counts[role] == 0 {
			recommendations = append(recommendations,
				fmt.Sprintf("no %s in the swarm, spawn one", role))
		}
	}
	if rate < c.opts.LowSuccessRate && len(snap.Recent) > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("success rate %.2f is low, review strategy", rate))
	}
	if active < c.opts.AgentFloor {
		recommendations = append(recommendations,
			fmt.Sprintf("only %d active agents, grow the swarm", active))
	}
	if active > 0 && len(snap.Recent) >= c.opts.MinHistory {
		recommendations = append(recommendations,
			"history is deep enough, delegate more work")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "swarm is balanced, keep current posture")
	}

	ref, pubErr := c.publish(ctx, c.opts.RootID, "analyze_performance", map[string]string{
		"success_rate":    fmt.Sprintf("%.3f", rate),
		"active_agents":   strconv.Itoa(active),
		"recommendations": strconv.Itoa(len(recommendations)),
		"top":             recommendations[0],
	})
	outcome := fmt.Sprintf("analysis produced %d recommendations; top: %s",
		len(recommendations), recommendations[0])
	if pubErr != nil {
		return outcome, "", pubErr
	}
	return outcome, ref, nil
}
