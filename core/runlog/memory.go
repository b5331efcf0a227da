package runlog

import (
	"context"
	"sync"
)

// MemoryStore keeps records in memory for tests or short-lived processes.
type MemoryStore struct {
	mu   sync.Mutex
	data []Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of rec.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, rec)
	return nil
}

// Query returns the records matching q in time order.
func (s *MemoryStore) Query(_ context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Record
	for _, r := range s.data {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return finish(res, q), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
