package relationship

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// InMemoryStore keeps relationships in process memory. The one-edge-per-
// referee rule is enforced under the write lock.
type InMemoryStore struct {
	mu        sync.RWMutex
	byID      map[domain.RelationshipID]*Relationship
	byReferee map[domain.UserID]domain.RelationshipID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[domain.RelationshipID]*Relationship),
		byReferee: make(map[domain.UserID]domain.RelationshipID),
	}
}

func (s *InMemoryStore) CreateIfFirstForReferee(_ context.Context, rel *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReferee[rel.RefereeID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *rel
	s.byID[rel.ID] = &clone
	s.byReferee[rel.RefereeID] = rel.ID
	return nil
}

func (s *InMemoryStore) FindByReferee(_ context.Context, refereeID domain.UserID) (*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	relID, ok := s.byReferee[refereeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[relID]
	return &clone, nil
}

func (s *InMemoryStore) ListByReferrer(_ context.Context, referrerID domain.UserID) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Relationship
	for _, rel := range s.byID {
		if rel.ReferrerID == referrerID {
			clone := *rel
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CountByReferrerSince(_ context.Context, referrerID domain.UserID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rel := range s.byID {
		if rel.ReferrerID == referrerID && !rel.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
