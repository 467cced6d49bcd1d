package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// InMemoryStore keeps tracking records in process memory. The conversion
// gate holds the write lock across check and mutation, which gives the
// same atomicity as the conditional UPDATE in the postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.TrackingID]*ReferralTracking
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.TrackingID]*ReferralTracking)}
}

func (s *InMemoryStore) Create(_ context.Context, t *ReferralTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[t.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := cloneTracking(t)
	s.records[t.ID] = clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, trackingID domain.TrackingID) (*ReferralTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.records[trackingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTracking(stored), nil
}

func (s *InMemoryStore) ConvertIfPending(_ context.Context, trackingID domain.TrackingID, conv Conversion) (*ReferralTracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[trackingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if stored.Conversion != nil || stored.BlockedAt != nil {
		return nil, sentinel.ErrAlreadyUsed
	}
	convCopy := conv
	stored.Conversion = &convCopy
	return cloneTracking(stored), nil
}

func (s *InMemoryStore) BlockIfPending(_ context.Context, trackingID domain.TrackingID, at time.Time) (*ReferralTracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[trackingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if stored.Conversion != nil || stored.BlockedAt != nil {
		return nil, sentinel.ErrAlreadyUsed
	}
	atCopy := at
	stored.BlockedAt = &atCopy
	return cloneTracking(stored), nil
}

func (s *InMemoryStore) ListRecentByReferrer(_ context.Context, referrerID domain.UserID, limit int) ([]*ReferralTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ReferralTracking
	for _, stored := range s.records {
		if stored.ReferrerID == referrerID {
			out = append(out, cloneTracking(stored))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountByReferrer(_ context.Context, referrerID domain.UserID, since time.Time) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, converted int64
	for _, stored := range s.records {
		if stored.ReferrerID != referrerID || stored.CreatedAt.Before(since) {
			continue
		}
		total++
		if stored.Conversion != nil {
			converted++
		}
	}
	return total, converted, nil
}

// All returns every stored record, newest first. Test helper.
func (s *InMemoryStore) All() []*ReferralTracking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ReferralTracking, 0, len(s.records))
	for _, stored := range s.records {
		out = append(out, cloneTracking(stored))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func cloneTracking(t *ReferralTracking) *ReferralTracking {
	clone := *t
	if t.Conversion != nil {
		conv := *t.Conversion
		if t.Conversion.Metadata != nil {
			conv.Metadata = make(map[string]string, len(t.Conversion.Metadata))
			for k, v := range t.Conversion.Metadata {
				conv.Metadata[k] = v
			}
		}
		clone.Conversion = &conv
	}
	if t.BlockedAt != nil {
		at := *t.BlockedAt
		clone.BlockedAt = &at
	}
	return &clone
}
