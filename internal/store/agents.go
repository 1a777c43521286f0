package store

import (
	"sort"
	"time"

	"overmind/internal/types"
)

// AgentFilter selects agents by conjunction of its set fields. Zero values
// impose no constraint.
type AgentFilter struct {
	Role          types.Role
	Status        types.AgentStatus
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

func (f AgentFilter) matches(a *types.Agent) bool {
	if f.Role != "" && a.Role != f.Role {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.CreatedAfter.IsZero() && !a.CreatedAt.After(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !a.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

// SaveAgent validates and persists one agent record (insert or replace).
func (s *Store) SaveAgent(agent types.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.agents[agent.ID]
	s.agents[agent.ID] = agent

	if err := s.writeCollection(agentsFile, s.agentsDocLocked()); err != nil {
		// Keep memory consistent with disk: roll back the cache entry.
		if existed {
			s.agents[agent.ID] = prev
		} else {
			delete(s.agents, agent.ID)
		}
		return err
	}
	return nil
}

// GetAgent returns the agent with the given id.
func (s *Store) GetAgent(id string) (types.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	return a, ok
}

// ListAgents returns all agents ordered by creation time, then id. The order
// is stable for a fixed store state.
func (s *Store) ListAgents() []types.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectAgentsLocked(AgentFilter{})
}

// QueryAgents returns the agents matching every set field of the filter,
// ordered by creation time, then id.
func (s *Store) QueryAgents(filter AgentFilter) []types.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectAgentsLocked(filter)
}

func (s *Store) collectAgentsLocked(filter AgentFilter) []types.Agent {
	out := make([]types.Agent, 0, len(s.agents))
	for id := range s.agents {
		a := s.agents[id]
		if filter.matches(&a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) agentsDocLocked() *agentsDoc {
	doc := &agentsDoc{Version: schemaVersion, Agents: make(map[string]types.Agent, len(s.agents))}
	for id, a := range s.agents {
		doc.Agents[id] = a
	}
	return doc
}
