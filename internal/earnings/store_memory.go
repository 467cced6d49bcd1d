package earnings

import (
	"context"
	"sort"
	"sync"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// InMemoryStore keeps earnings in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	earnings map[domain.EarningID]*Earning
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{earnings: make(map[domain.EarningID]*Earning)}
}

func (s *InMemoryStore) Create(_ context.Context, e *Earning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.earnings[e.ID]; exists {
		return sentinel.ErrConflict
	}
	s.earnings[e.ID] = cloneEarning(e)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, earningID domain.EarningID) (*Earning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.earnings[earningID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEarning(stored), nil
}

func (s *InMemoryStore) ListByBeneficiary(_ context.Context, userID domain.UserID) ([]*Earning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Earning
	for _, stored := range s.earnings {
		if stored.BeneficiaryID == userID {
			out = append(out, cloneEarning(stored))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SummarizeByBeneficiary(_ context.Context, userID domain.UserID) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary Summary
	for _, stored := range s.earnings {
		if stored.BeneficiaryID != userID {
			continue
		}
		switch stored.Status {
		case StatusPending:
			summary.PendingCents += stored.Amount.Amount
		case StatusApproved:
			summary.ApprovedCents += stored.Amount.Amount
		case StatusPaid:
			summary.PaidCents += stored.Amount.Amount
		case StatusReversed:
			summary.ReversedCents += stored.Amount.Amount
		}
	}
	return summary, nil
}

func (s *InMemoryStore) BreakdownByBeneficiary(_ context.Context, userID domain.UserID) ([]Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		period string
		typ    Type
	}
	cells := make(map[key]*Bucket)
	for _, stored := range s.earnings {
		if stored.BeneficiaryID != userID || stored.Status == StatusReversed {
			continue
		}
		k := key{period: stored.CreatedAt.Format("2006-01"), typ: stored.Type}
		cell, ok := cells[k]
		if !ok {
			cell = &Bucket{Period: k.period, Type: k.typ}
			cells[k] = cell
		}
		cell.Cents += stored.Amount.Amount
		cell.Count++
	}

	out := make([]Bucket, 0, len(cells))
	for _, cell := range cells {
		out = append(out, *cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period > out[j].Period
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, earningID domain.EarningID, validate func(*Earning) error, mutate func(*Earning)) (*Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.earnings[earningID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneEarning(stored)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.earnings[earningID] = cloneEarning(working)
	return working, nil
}

func cloneEarning(e *Earning) *Earning {
	clone := *e
	if e.CampaignID != nil {
		campaignID := *e.CampaignID
		clone.CampaignID = &campaignID
	}
	if e.CommissionRateBP != nil {
		rate := *e.CommissionRateBP
		clone.CommissionRateBP = &rate
	}
	if e.SourceAmount != nil {
		source := *e.SourceAmount
		clone.SourceAmount = &source
	}
	return &clone
}
