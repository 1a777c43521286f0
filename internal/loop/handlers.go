package loop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"overmind/internal/engine"
	"overmind/internal/ledger"
	"overmind/internal/types"
)

// act dispatches the decision to its handler. Every collaborator failure is
// converted into the returned ActionResult here — nothing escapes the act
// phase as an error, so one broken wallet or a dead ledger node costs a
// cycle's outcome, not the loop.
func (c *Controller) act(ctx context.Context, decision *types.Decision, snap *engine.Snapshot) types.ActionResult {
	start := time.Now()

	var outcome, ref string
	var err error

	switch decision.Type {
	case types.ActionSpawnAgent:
		outcome, ref, err = c.handleSpawn(ctx, decision, snap)
	case types.ActionCoordinate:
		outcome, ref, err = c.handleCoordinate(ctx, decision, snap)
	case types.ActionEvolve:
		outcome, ref, err = c.handleEvolveStrategy(ctx, decision, snap)
	case types.ActionDelegate:
		outcome, ref, err = c.handleDelegate(ctx, decision, snap)
	case types.ActionAnalyze:
		outcome, ref, err = c.handleAnalyze(ctx, decision, snap)
	case types.ActionWait:
		outcome = "observed the swarm, no action taken"
	default:
		outcome = "unknown action type, treated as wait"
	}

	result := types.ActionResult{
		Success:     err == nil,
		DecisionID:  decision.ID,
		Outcome:     outcome,
		ExternalRef: ref,
		Timestamp:   time.Now().UTC(),
		DurationMs:  time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		c.logger.Warn("action handler failed",
			zap.String("action", string(decision.Type)),
			zap.Error(err))
	}
	return result
}

// publish signs and submits one memo as the given actor, falling back to the
// root identity when the actor has no wallet. Returns the external reference.
func (c *Controller) publish(ctx context.Context, actorID, kind string, fields map[string]string) (string, error) {
	signer, err := c.wallets.GetSigner(actorID)
	if err != nil {
		if actorID == c.opts.RootID {
			return "", err
		}
		signer, err = c.wallets.GetSigner(c.opts.RootID)
		if err != nil {
			return "", err
		}
	}

	return c.submitter.Submit(ctx, signer, ledger.Memo{
		Kind:        kind,
		ActorID:     actorID,
		Fields:      fields,
		Timestamp:   time.Now().UTC(),
		RootActorID: c.opts.RootID,
	})
}

// agentHealth classifies one agent against the controller's thresholds.
type agentHealth int

const (
	healthHealthy agentHealth = iota
	healthDegraded
	healthCritical
)

func (h agentHealth) String() string {
	switch h {
	case healthCritical:
		return "critical"
	case healthDegraded:
		return "degraded"
	default:
		return "healthy"
	}
}

// classify derives an agent's health from its success rate and recency of
// activity. Low success or long idleness pushes an agent down the scale.
func (c *Controller) classify(agent *types.Agent, now time.Time) agentHealth {
	idle := now.Sub(agent.Metadata.LastActiveAt)
	rate := agent.SuccessRate()

	if rate < c.opts.CriticalSuccessRate || idle > c.opts.CriticalIdle {
		return healthCritical
	}
	if rate < c.opts.DegradedSuccessRate || idle > c.opts.DegradedIdle {
		return healthDegraded
	}
	return healthHealthy
}
