package memory

import (
	"context"
	"sync"

	id "deedbook/pkg/domain"
	audit "deedbook/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process memory. Suitable for tests
// and single-node development; swap in a durable store for production.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByProperty(ctx context.Context, propertyID id.PropertyID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []audit.Event{}
	for _, e := range s.events {
		if e.PropertyID == propertyID {
			out = append(out, e)
		}
	}
	return out, nil
}
