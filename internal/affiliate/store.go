package affiliate

import (
	"context"

	domain "refward/pkg/domain"
)

// Store persists affiliate profiles, keyed by user.
type Store interface {
	// CreateIfAbsent persists a new profile unless the user already has
	// one, in which case it returns sentinel.ErrAlreadyUsed. A profile
	// is created once and never recreated.
	CreateIfAbsent(ctx context.Context, p *Profile) error

	// FindByUser returns a user's profile. sentinel.ErrNotFound when the
	// user is not enrolled.
	FindByUser(ctx context.Context, userID domain.UserID) (*Profile, error)

	// Execute atomically loads the profile, runs validate, and persists
	// the result of mutate. A validate error aborts without writing.
	Execute(ctx context.Context, userID domain.UserID, validate func(*Profile) error, mutate func(*Profile)) (*Profile, error)
}
