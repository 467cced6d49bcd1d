package achievement

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// InMemoryStore keeps achievement rows in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[domain.UserID]map[string]Achievement
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[domain.UserID]map[string]Achievement)}
}

func (s *InMemoryStore) SaveProgress(_ context.Context, a Achievement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.rows[a.UserID]
	if !ok {
		held = make(map[string]Achievement)
		s.rows[a.UserID] = held
	}
	existing, exists := held[a.Key]
	if exists && existing.Unlocked {
		return true, nil
	}
	a.Unlocked = false
	a.UnlockedAt = nil
	held[a.Key] = a
	return false, nil
}

func (s *InMemoryStore) Unlock(_ context.Context, userID domain.UserID, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.rows[userID]
	existing, exists := held[key]
	if !exists {
		return sentinel.ErrNotFound
	}
	if existing.Unlocked {
		return sentinel.ErrAlreadyUsed
	}
	existing.Unlocked = true
	unlockedAt := at
	existing.UnlockedAt = &unlockedAt
	existing.UpdatedAt = at
	held[key] = existing
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID domain.UserID) ([]Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.rows[userID]
	out := make([]Achievement, 0, len(held))
	for _, a := range held {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unlocked != out[j].Unlocked {
			return out[i].Unlocked
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}
