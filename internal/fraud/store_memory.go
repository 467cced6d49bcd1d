package fraud

import (
	"context"
	"sort"
	"sync"

	domain "refward/pkg/domain"
)

// InMemoryStore keeps fraud events in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(event))
	return nil
}

func (s *InMemoryStore) ListByReferrer(_ context.Context, referrerID domain.UserID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, event := range s.events {
		if event.ReferrerID == referrerID {
			out = append(out, cloneEvent(event))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// All returns every stored event. Test helper.
func (s *InMemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, cloneEvent(event))
	}
	return out
}

func cloneEvent(e Event) Event {
	clone := e
	if e.Evidence != nil {
		clone.Evidence = make([]Evidence, len(e.Evidence))
		copy(clone.Evidence, e.Evidence)
	}
	return clone
}
