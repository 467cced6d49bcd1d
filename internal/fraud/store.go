package fraud

import (
	"context"

	domain "refward/pkg/domain"
)

// Store is the append-only fraud event log. Events are never updated or
// deleted.
type Store interface {
	// Append persists one fraud event.
	Append(ctx context.Context, event Event) error

	// ListByReferrer returns all events for a referrer, newest first.
	ListByReferrer(ctx context.Context, referrerID domain.UserID) ([]Event, error)
}
