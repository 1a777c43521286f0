package store

import (
	"overmind/internal/types"
)

// Metrics returns a copy of the aggregate metrics record.
func (s *Store) Metrics() types.SystemMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// UpdateMetrics applies patch to the aggregate record under the store's
// atomic-write discipline. The patched record is validated before it reaches
// disk; a failed write leaves the previous aggregate in place.
func (s *Store) UpdateMetrics(patch func(*types.SystemMetrics)) (types.SystemMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.metrics
	patch(&next)
	next.LastUpdated = stamp()

	if err := next.Validate(); err != nil {
		return s.metrics, err
	}
	prev := s.metrics
	s.metrics = next
	if err := s.writeCollection(metricsFile, &metricsDoc{Version: schemaVersion, Metrics: next}); err != nil {
		s.metrics = prev
		return prev, err
	}
	return next, nil
}
