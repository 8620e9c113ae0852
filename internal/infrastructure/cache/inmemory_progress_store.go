package cache

import (
	"context"
	"sync"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/google/uuid"
)

// InMemoryProgressStore implements imports.ProgressStore for tests and
// single-instance runs. Not suitable for multi-instance deployments.
type InMemoryProgressStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]imports.Entry
}

// NewInMemoryProgressStore creates an in-memory progress store
func NewInMemoryProgressStore() *InMemoryProgressStore {
	return &InMemoryProgressStore{entries: make(map[uuid.UUID][]imports.Entry)}
}

// Append records one entry for a batch
func (s *InMemoryProgressStore) Append(_ context.Context, batchUID uuid.UUID, entry imports.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[batchUID] = append(s.entries[batchUID], entry)
	return nil
}

// Get returns the aggregated progress of a batch
func (s *InMemoryProgressStore) Get(_ context.Context, batchUID uuid.UUID) (imports.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p imports.Progress
	for _, entry := range s.entries[batchUID] {
		bucket(&p, entry)
	}
	return p, nil
}

var _ imports.ProgressStore = (*InMemoryProgressStore)(nil)
