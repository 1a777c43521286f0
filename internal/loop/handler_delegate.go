package loop

import (
	"context"
	"fmt"
	"time"

	"overmind/internal/engine"
	"overmind/internal/factory"
	"overmind/internal/types"
)

// Synthetic task work succeeds at this rate; the miss chance is what gives
// agents a failure history for the health sweep to act on.
const taskSuccessRate = 0.9

// handleDelegate picks the least-recently-active idle agent, marks it busy,
// runs its role's synthetic task, updates its counters and progress, and
// publishes a record signed by the agent itself.
func (c *Controller) handleDelegate(ctx context.Context, decision *types.Decision, snap *engine.Snapshot) (string, string, error) {
	target := pickIdle(snap.Agents)
	if target == nil {
		return "", "", fmt.Errorf("no idle active agents to delegate to")
	}
	if decision.Params.Delegate != nil {
		decision.Params.Delegate.AgentID = target.ID
	}

	task := factory.TaskForRole(target.Role)
	now := time.Now().UTC()

	// Mark busy first so a crash mid-task is visible in the record.
	target.Metadata.CurrentTask = task
	if err := c.store.SaveAgent(*target); err != nil {
		return "", "", err
	}

	taskOK := c.runTask()

	target.Metadata.CurrentTask = ""
	target.Metadata.LastActiveAt = now
	target.Metadata.TaskHistory = append(target.Metadata.TaskHistory, task)
	if taskOK {
		target.Metadata.SuccessCount++
		if target.Metadata.Progress < 100 {
			target.Metadata.Progress += 10
			if target.Metadata.Progress > 100 {
				target.Metadata.Progress = 100
			}
		}
	} else {
		target.Metadata.FailureCount++
	}
	if err := c.store.SaveAgent(*target); err != nil {
		return "", "", err
	}

	status := "completed"
	if !taskOK {
		status = "failed"
	}
	ref, pubErr := c.publish(ctx, target.ID, "delegate_task", map[string]string{
		"agent_id": target.ID,
		"task":     task,
		"status":   status,
	})
	outcome := fmt.Sprintf("delegated %s to %s agent %s: %s", task, target.Role, target.ID, status)
	if pubErr != nil {
		return outcome, "", pubErr
	}
	if !taskOK {
		return outcome, ref, fmt.Errorf("task %s failed on agent %s", task, target.ID)
	}
	return outcome, ref, nil
}

// runTask simulates the delegated work.
func (c *Controller) runTask() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < taskSuccessRate
}

// pickIdle returns the least-recently-active idle active agent, or nil.
func pickIdle(agents []types.Agent) *types.Agent {
	var best *types.Agent
	for i := range agents {
		a := &agents[i]
		if a.Status != types.StatusActive || a.Busy() {
			continue
		}
		if best == nil || a.Metadata.LastActiveAt.Before(best.Metadata.LastActiveAt) {
			best = a
		}
	}
	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}
