package audit

import (
	"context"

	id "refward/pkg/domain"
)

// Store persists audit events. Append-only: no update or delete methods
// exist, by construction.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor id.UserID) ([]Event, error)
}
