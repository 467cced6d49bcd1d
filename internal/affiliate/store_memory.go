package affiliate

import (
	"context"
	"sync"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// InMemoryStore keeps affiliate profiles in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]*Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[domain.UserID]*Profile)}
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.UserID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *p
	s.profiles[p.UserID] = &clone
	return nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID domain.UserID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (s *InMemoryStore) Execute(_ context.Context, userID domain.UserID, validate func(*Profile) error, mutate func(*Profile)) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := *stored
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	persisted := working
	s.profiles[userID] = &persisted
	return &working, nil
}
