package achievement

import (
	"context"
	"time"

	domain "refward/pkg/domain"
)

// Store persists per-user achievement rows.
type Store interface {
	// SaveProgress upserts the row and refreshes its progress while the
	// achievement is locked. It reports whether the achievement was
	// already unlocked, in which case the row is left frozen.
	SaveProgress(ctx context.Context, a Achievement) (unlocked bool, err error)

	// Unlock marks the achievement unlocked iff it is still locked, as
	// one atomic conditional update. Returns sentinel.ErrAlreadyUsed
	// when a previous recompute got there first, and sentinel.ErrNotFound
	// when no row exists.
	Unlock(ctx context.Context, userID domain.UserID, key string, at time.Time) error

	// ListByUser returns a user's achievement rows, unlocked first, then
	// by key.
	ListByUser(ctx context.Context, userID domain.UserID) ([]Achievement, error)
}
