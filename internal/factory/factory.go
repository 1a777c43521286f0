// Package factory implements the agent factory collaborator: role templates
// and the minting of new swarm agents. The factory is deliberately
// side-effect-light — it builds records, the caller persists them.
package factory

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"overmind/internal/types"
)

// roleTemplate is the static part of each role's identity.
type roleTemplate struct {
	mission string
	task    string // synthetic task the delegate handler runs for this role
}

var roleTemplates = map[types.Role]roleTemplate{
	types.RoleScout:     {mission: "survey the environment and report notable changes", task: "scan"},
	types.RoleAnalyst:   {mission: "digest swarm activity into performance reports", task: "report"},
	types.RoleHarvester: {mission: "replenish shared resources before they run dry", task: "refill"},
	types.RoleGuardian:  {mission: "rebalance and protect the swarm's holdings", task: "rebalance"},
	types.RoleCourier:   {mission: "relay messages and artifacts between agents", task: "relay"},
}

// TaskForRole returns the synthetic task name the given role performs.
func TaskForRole(role types.Role) string {
	if tpl, ok := roleTemplates[role]; ok {
		return tpl.task
	}
	return "observe"
}

// Factory mints agents from role templates.
type Factory struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *zap.Logger
}

// New builds a factory.
func New(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
}

// SelectRole picks the least-represented role given the current per-role
// counts, breaking ties uniformly at random. Roles absent from counts count
// as zero, so a fresh swarm fills every role before doubling up.
func (f *Factory) SelectRole(counts map[types.Role]int) types.Role {
	f.mu.Lock()
	defer f.mu.Unlock()

	minCount := -1
	var candidates []types.Role
	for _, role := range types.AllRoles() {
		c := counts[role]
		switch {
		case minCount < 0 || c < minCount:
			minCount = c
			candidates = candidates[:0]
			candidates = append(candidates, role)
		case c == minCount:
			candidates = append(candidates, role)
		}
	}
	return candidates[f.rng.Intn(len(candidates))]
}

// CreateAgent mints a new agent record for the given role. The caller
// persists it and attaches the external creation reference afterwards.
func (f *Factory) CreateAgent(role types.Role, creatorID string) (types.Agent, error) {
	tpl, ok := roleTemplates[role]
	if !ok {
		return types.Agent{}, &types.CollaboratorError{Collaborator: "factory", Op: "create",
			Err: fmt.Errorf("unknown role %q", role)}
	}

	now := time.Now().UTC()
	agent := types.Agent{
		ID:        fmt.Sprintf("%s-%s", role, uuid.NewString()[:8]),
		Role:      role,
		Mission:   tpl.mission,
		CreatedAt: now,
		CreatedBy: creatorID,
		Status:    types.StatusActive,
		Metadata: types.AgentMetadata{
			LastActiveAt: now,
		},
	}

	f.logger.Info("agent minted",
		zap.String("id", agent.ID),
		zap.String("role", string(role)))
	return agent, nil
}
