package achievement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger appends reward grants to the reward_grants table. The
// (user_id, achievement_key) primary key makes Credit idempotent, so a
// recompute retrying a grant whose unlock never committed converges
// instead of paying twice.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Credit(ctx context.Context, g Grant) error {
	query := `
		INSERT INTO reward_grants (user_id, achievement_key, credits_cents, currency, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, achievement_key) DO NOTHING
	`
	_, err := l.pool.Exec(ctx, query,
		uuid.UUID(g.UserID), g.Key, g.Credits.Amount, g.Credits.Currency, g.GrantedAt)
	if err != nil {
		return fmt.Errorf("insert reward grant: %w", err)
	}
	return nil
}
