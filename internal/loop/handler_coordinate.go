package loop

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"overmind/internal/engine"
	"overmind/internal/types"
)

// handleCoordinate runs the health sweep: classify every active agent, notify
// a healthy same-role peer for each critical one, and publish one aggregated
// record of the health counts.
func (c *Controller) handleCoordinate(ctx context.Context, decision *types.Decision, snap *engine.Snapshot) (string, string, error) {
	now := time.Now().UTC()

	var healthy, degraded, critical []types.Agent
	for i := range snap.Agents {
		agent := snap.Agents[i]
		if agent.Status != types.StatusActive {
			continue
		}
		switch c.classify(&agent, now) {
		case healthCritical:
			critical = append(critical, agent)
		case healthDegraded:
			degraded = append(degraded, agent)
		default:
			healthy = append(healthy, agent)
		}
	}

	// For each critical agent, hand its duties to a healthy peer of the
	// same role. No peer available is not an error; the sweep still counts.
	takeovers := 0
	for i := range critical {
		peer := findPeer(healthy, critical[i].Role, critical[i].ID)
		if peer == nil {
			continue
		}
		peer.Metadata.TaskHistory = append(peer.Metadata.TaskHistory,
			fmt.Sprintf("takeover-notice:%s", critical[i].ID))
		peer.Metadata.LastActiveAt = now
		if err := c.store.SaveAgent(*peer); err != nil {
			c.logger.Warn("takeover notice not persisted",
				zap.String("peer", peer.ID),
				zap.Error(err))
			continue
		}
		takeovers++
	}

	ref, pubErr := c.publish(ctx, c.opts.RootID, "coordinate_swarm", map[string]string{
		"healthy":   strconv.Itoa(len(healthy)),
		"degraded":  strconv.Itoa(len(degraded)),
		"critical":  strconv.Itoa(len(critical)),
		"takeovers": strconv.Itoa(takeovers),
	})
	outcome := fmt.Sprintf("health sweep: %d healthy, %d degraded, %d critical, %d takeovers",
		len(healthy), len(degraded), len(critical), takeovers)
	if pubErr != nil {
		return outcome, "", pubErr
	}
	return outcome, ref, nil
}

// findPeer returns a pointer into healthy for the first agent of the given
// role that is not the excluded one.
func findPeer(healthy []types.Agent, role types.Role, excludeID string) *types.Agent {
	for i := range healthy {
		if healthy[i].Role == role && healthy[i].ID != excludeID {
			return &healthy[i]
		}
	}
	return nil
}
