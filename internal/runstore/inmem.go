package runstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemory is the default Store: process-local, lost on restart.
type InMemory struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewInMemory returns an empty InMemory store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]Record)}
}

func (s *InMemory) Create(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RunID] = rec
	return nil
}

func (s *InMemory) UpdateStatus(ctx context.Context, runID string, status Status, endedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[runID]
	if !ok {
		return fmt.Errorf("runstore: unknown run %q", runID)
	}
	rec.Status = status
	rec.EndedAt = endedAt
	s.records[runID] = rec
	return nil
}

func (s *InMemory) Get(ctx context.Context, runID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[runID]
	if !ok {
		return Record{}, fmt.Errorf("runstore: unknown run %q", runID)
	}
	return rec, nil
}
