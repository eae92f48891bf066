package storage

import (
	"context"
	"sync"
)

// InMemory is the default Store: append-only, process-local, lost on
// restart. cmd/worker and cmd/client use it when REDIS_ADDRESS is unset.
type InMemory struct {
	mu    sync.Mutex
	items []Item
}

// NewInMemory returns an empty InMemory store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Save(ctx context.Context, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	return nil
}

// Items returns a copy of every item saved so far, for tests and local
// inspection.
func (s *InMemory) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}
