package achievement

import (
	"context"
	"time"

	domain "refward/pkg/domain"
)

// Grant is one credit reward owed for an unlocked achievement. Grants
// are append-only; the external transaction service disburses them.
type Grant struct {
	UserID    domain.UserID `json:"user_id"`
	Key       string        `json:"key"`
	Credits   domain.Money  `json:"credits"`
	GrantedAt time.Time     `json:"granted_at"`
}

// Ledger records reward grants. Credit must be idempotent on
// (UserID, Key): the engine may retry a grant whose unlock did not
// commit, and a replay must not create a second grant.
type Ledger interface {
	Credit(ctx context.Context, g Grant) error
}
