package code

import (
	"context"
	"sync"

	id "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// InMemoryStore keeps referral codes in process memory. Used by tests and
// development; production uses PostgresStore. All accessors return copies
// so callers can't mutate shared state behind the mutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.CodeID]*ReferralCode
	byCode map[string]id.CodeID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.CodeID]*ReferralCode),
		byCode: make(map[string]id.CodeID),
	}
}

func (s *InMemoryStore) CreateIfCodeAvailable(_ context.Context, code *ReferralCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := Normalize(code.Code)
	if _, taken := s.byCode[normalized]; taken {
		return sentinel.ErrAlreadyUsed
	}

	clone := *code
	clone.Code = normalized
	s.byID[code.ID] = &clone
	s.byCode[normalized] = code.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, codeID id.CodeID) (*ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.byID[codeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, normalized string) (*ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codeID, ok := s.byCode[Normalize(normalized)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[codeID]
	return &clone, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID) ([]*ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ReferralCode
	for _, stored := range s.byID {
		if stored.OwnerID == ownerID {
			clone := *stored
			out = append(out, &clone)
		}
	}
	return out, nil
}

// IncrementUse bumps the counter inside the write lock, so the bound check
// and the increment are a single atomic step.
func (s *InMemoryStore) IncrementUse(_ context.Context, codeID id.CodeID) (*ReferralCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[codeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if stored.MaxUses != nil && stored.CurrentUses >= *stored.MaxUses {
		return nil, sentinel.ErrLimitExceeded
	}
	stored.CurrentUses++
	clone := *stored
	return &clone, nil
}

func (s *InMemoryStore) Execute(_ context.Context, codeID id.CodeID,
	validate func(*ReferralCode) error,
	mutate func(*ReferralCode)) (*ReferralCode, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[codeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(stored); err != nil {
		return nil, err
	}
	mutate(stored)
	clone := *stored
	return &clone, nil
}
