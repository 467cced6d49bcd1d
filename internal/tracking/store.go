package tracking

import (
	"context"
	"time"

	domain "refward/pkg/domain"
)

// Store persists tracking records.
//
// ConvertIfPending and BlockIfPending are the engine's idempotency gate:
// each must check "still pending" and write the terminal marker as one
// atomic conditional update. Two concurrent conversion attempts on the
// same record must see exactly one success and one sentinel.ErrAlreadyUsed.
// A read-then-write implementation is a correctness bug.
type Store interface {
	Create(ctx context.Context, t *ReferralTracking) error

	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, trackingID domain.TrackingID) (*ReferralTracking, error)

	// ConvertIfPending sets the conversion payload iff the record is still
	// pending. Returns sentinel.ErrAlreadyUsed when a terminal marker is
	// already present.
	ConvertIfPending(ctx context.Context, trackingID domain.TrackingID, conv Conversion) (*ReferralTracking, error)

	// BlockIfPending marks the record blocked iff it is still pending.
	BlockIfPending(ctx context.Context, trackingID domain.TrackingID, at time.Time) (*ReferralTracking, error)

	// ListRecentByReferrer returns the referrer's newest clicks, newest
	// first, capped at limit. Feeds the fraud detector's history snapshot.
	ListRecentByReferrer(ctx context.Context, referrerID domain.UserID, limit int) ([]*ReferralTracking, error)

	// CountByReferrer returns total and converted click counts since the
	// given time. Feeds analytics and achievement progress.
	CountByReferrer(ctx context.Context, referrerID domain.UserID, since time.Time) (total, converted int64, err error)
}
