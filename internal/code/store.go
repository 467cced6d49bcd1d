package code

import (
	"context"

	id "refward/pkg/domain"
)

// Store persists referral codes.
//
// Implementations must provide the two atomic operations the engine's
// correctness depends on:
//   - CreateIfCodeAvailable enforces case-insensitive code uniqueness as a
//     single conditional insert.
//   - IncrementUse is a bounded atomic increment: it must never let
//     CurrentUses exceed MaxUses, even under concurrent callers. A plain
//     read-increment-write is a correctness bug.
type Store interface {
	// CreateIfCodeAvailable inserts the code, failing with
	// sentinel.ErrAlreadyUsed when the normalized code string is taken.
	CreateIfCodeAvailable(ctx context.Context, code *ReferralCode) error

	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, codeID id.CodeID) (*ReferralCode, error)

	// FindByCode looks up by normalized code string.
	FindByCode(ctx context.Context, normalized string) (*ReferralCode, error)

	// ListByOwner returns all codes issued by one owner.
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*ReferralCode, error)

	// IncrementUse atomically bumps CurrentUses, failing with
	// sentinel.ErrLimitExceeded when the bump would pass MaxUses.
	IncrementUse(ctx context.Context, codeID id.CodeID) (*ReferralCode, error)

	// Execute runs validate then mutate on the code under the store's lock
	// (mutex or SELECT ... FOR UPDATE), returning the updated code.
	Execute(ctx context.Context, codeID id.CodeID,
		validate func(*ReferralCode) error,
		mutate func(*ReferralCode)) (*ReferralCode, error)
}
