package relationship

import (
	"context"
	"time"

	domain "refward/pkg/domain"
)

// Store persists the referral graph.
type Store interface {
	// CreateIfFirstForReferee persists the edge unless the referee
	// already has one, in which case it returns sentinel.ErrAlreadyUsed
	// without writing. The check and the insert are atomic.
	CreateIfFirstForReferee(ctx context.Context, rel *Relationship) error

	// FindByReferee returns the referee's direct relationship.
	// sentinel.ErrNotFound when the referee was never referred.
	FindByReferee(ctx context.Context, refereeID domain.UserID) (*Relationship, error)

	// ListByReferrer returns all edges where the user is the referrer.
	ListByReferrer(ctx context.Context, referrerID domain.UserID) ([]*Relationship, error)

	// CountByReferrerSince counts edges the referrer created at or after
	// the cutoff. Feeds the velocity fraud signal.
	CountByReferrerSince(ctx context.Context, referrerID domain.UserID, since time.Time) (int64, error)
}
