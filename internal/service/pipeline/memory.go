// internal/service/pipeline/memory.go

package pipeline

import (
	"context"
	"sort"
	"sync"

	"wallace/internal/domain/simulation"
)

// MemoryStore keeps runs in process memory
type MemoryStore struct {
	runs map[string]simulation.Run
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]simulation.Run)}
}

// SaveRun stores or replaces a run
func (s *MemoryStore) SaveRun(ctx context.Context, run simulation.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// GetRun returns a run by ID
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*simulation.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, simulation.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first
func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]simulation.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]simulation.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(runID, event string, payload interface{}) error {
	return nil
}
