package store

import (
	"overmind/internal/types"
)

// AppendDecision appends one decision/result pair to the decision log. The
// pair must be mutually linked by id; the log is append-only.
func (s *Store) AppendDecision(rec types.DecisionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.decisions = append(s.decisions, rec)
	if err := s.writeCollection(decisionsFile, &decisionsDoc{Version: schemaVersion, Records: s.decisions}); err != nil {
		s.decisions = s.decisions[:len(s.decisions)-1]
		return err
	}
	return nil
}

// RecentDecisions returns up to limit decision records, newest first.
// limit <= 0 returns the whole log.
func (s *Store) RecentDecisions(limit int) []types.DecisionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.decisions)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.DecisionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.decisions[i])
	}
	return out
}

// DecisionCount returns the total number of logged decision records.
func (s *Store) DecisionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

// AppendEvolution appends one evolution event to the evolution log.
func (s *Store) AppendEvolution(ev types.EvolutionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evolution = append(s.evolution, ev)
	if err := s.writeCollection(evolutionFile, &evolutionDoc{Version: schemaVersion, Events: s.evolution}); err != nil {
		s.evolution = s.evolution[:len(s.evolution)-1]
		return err
	}
	return nil
}

// RecentEvolution returns up to limit evolution events, newest first.
// limit <= 0 returns the whole log.
func (s *Store) RecentEvolution(limit int) []types.EvolutionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.evolution)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.EvolutionEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.evolution[i])
	}
	return out
}
