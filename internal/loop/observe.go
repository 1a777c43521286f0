package loop

import (
	"context"
	"time"

	"overmind/internal/engine"
)

// observe builds the immutable state snapshot one cycle reasons over: all
// agents, a bounded window of recent decisions, the aggregate metrics, and
// current balances from the wallet collaborator. A missing balance for one
// agent degrades the snapshot, it does not fail the phase.
func (c *Controller) observe(ctx context.Context) (*engine.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agents := c.store.ListAgents()

	balances := make(map[string]uint64, len(agents)+1)
	if bal, err := c.wallets.GetBalance(c.opts.RootID); err == nil {
		balances[c.opts.RootID] = bal
	}
	for i := range agents {
		bal, err := c.wallets.GetBalance(agents[i].ID)
		if err != nil {
			continue
		}
		balances[agents[i].ID] = bal
	}

	return &engine.Snapshot{
		Agents:     agents,
		Recent:     c.store.RecentDecisions(c.opts.ObservationWindow),
		Metrics:    c.store.Metrics(),
		Balances:   balances,
		ObservedAt: time.Now().UTC(),
	}, nil
}
