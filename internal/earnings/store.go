package earnings

import (
	"context"

	domain "refward/pkg/domain"
)

// Summary aggregates a beneficiary's earnings by status, in minor units
// of the default currency.
type Summary struct {
	PendingCents  int64 `json:"pending_cents"`
	ApprovedCents int64 `json:"approved_cents"`
	PaidCents     int64 `json:"paid_cents"`
	ReversedCents int64 `json:"reversed_cents"`
}

// LifetimeCents is everything earned that was not reversed.
func (s Summary) LifetimeCents() int64 {
	return s.PendingCents + s.ApprovedCents + s.PaidCents
}

// Bucket is one cell of the period/type earnings breakdown. Period is a
// calendar month in YYYY-MM form.
type Bucket struct {
	Period string `json:"period"`
	Type   Type   `json:"type"`
	Cents  int64  `json:"cents"`
	Count  int64  `json:"count"`
}

// Store persists earnings line items.
type Store interface {
	// Create persists a new line item.
	Create(ctx context.Context, e *Earning) error

	// FindByID returns a line item. sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, earningID domain.EarningID) (*Earning, error)

	// ListByBeneficiary returns all line items for a user, newest first.
	ListByBeneficiary(ctx context.Context, userID domain.UserID) ([]*Earning, error)

	// SummarizeByBeneficiary aggregates a user's earnings by status.
	SummarizeByBeneficiary(ctx context.Context, userID domain.UserID) (Summary, error)

	// BreakdownByBeneficiary groups non-reversed earnings by calendar
	// month and type.
	BreakdownByBeneficiary(ctx context.Context, userID domain.UserID) ([]Bucket, error)

	// Execute atomically loads the earning, runs validate, and persists
	// the result of mutate. A validate error aborts without writing.
	Execute(ctx context.Context, earningID domain.EarningID, validate func(*Earning) error, mutate func(*Earning)) (*Earning, error)
}
