package loop

import (
	"context"
	"fmt"
	"strconv"

	"overmind/internal/engine"
	"overmind/internal/types"
)

// handleSpawn mints a new agent for the least-represented role, persists it,
// publishes a creation record, and attaches the returned reference to the
// agent. A failed publish is a partial outcome: the agent exists and the
// result is still a success, just without an external reference.
func (c *Controller) handleSpawn(ctx context.Context, decision *types.Decision, snap *engine.Snapshot) (string, string, error) {
	role := c.factory.SelectRole(snap.RoleCounts())
	if decision.Params.Spawn != nil {
		decision.Params.Spawn.Role = role
	}

	agent, err := c.factory.CreateAgent(role, c.opts.RootID)
	if err != nil {
		return "", "", err
	}

	walletRec, err := c.wallets.CreateWallet(agent.ID, false)
	if err != nil {
		return "", "", err
	}
	agent.Address = walletRec.Address

	if err := c.store.SaveAgent(agent); err != nil {
		return "", "", err
	}
	if _, err := c.store.UpdateMetrics(func(m *types.SystemMetrics) {
		m.TotalAgentsCreated++
	}); err != nil {
		return "", "", err
	}

	ref, pubErr := c.publish(ctx, c.opts.RootID, "spawn_agent", map[string]string{
		"agent_id": agent.ID,
		"role":     string(role),
		"address":  agent.Address,
		"swarm":    strconv.Itoa(len(snap.Agents) + 1),
	})
	if pubErr != nil {
		// The agent is already live; report the spawn without a reference
		// rather than pretending it did not happen.
		return fmt.Sprintf("spawned %s agent %s (creation record unpublished: %v)", role, agent.ID, pubErr), "", nil
	}

	agent.Metadata.CreationRef = ref
	if err := c.store.SaveAgent(agent); err != nil {
		return "", "", err
	}

	return fmt.Sprintf("spawned %s agent %s", role, agent.ID), ref, nil
}
