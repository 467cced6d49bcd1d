package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// PostgresStore persists achievement rows in PostgreSQL. Unlock-once
// rides on a conditional update guarded by the unlocked flag; progress
// upserts never touch an unlocked row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveProgress(ctx context.Context, a Achievement) (bool, error) {
	query := `
		INSERT INTO achievements
			(user_id, kind, key, name, target, progress, reward_credits_cents, currency, unlocked, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		ON CONFLICT (user_id, key) DO UPDATE
			SET progress = EXCLUDED.progress, updated_at = EXCLUDED.updated_at
			WHERE achievements.unlocked = FALSE
		RETURNING unlocked
	`
	var unlocked bool
	err := s.pool.QueryRow(ctx, query,
		uuid.UUID(a.UserID), string(a.Kind), a.Key, a.Name,
		a.Target, a.Progress, a.RewardCredits.Amount, a.RewardCredits.Currency,
		a.UpdatedAt,
	).Scan(&unlocked)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict target exists and is unlocked, so the guarded
		// update skipped it.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("save achievement progress: %w", err)
	}
	return unlocked, nil
}

func (s *PostgresStore) Unlock(ctx context.Context, userID domain.UserID, key string, at time.Time) error {
	query := `
		UPDATE achievements
		SET unlocked = TRUE, unlocked_at = $3, updated_at = $3
		WHERE user_id = $1 AND key = $2 AND unlocked = FALSE
	`
	tag, err := s.pool.Exec(ctx, query, uuid.UUID(userID), key, at)
	if err != nil {
		return fmt.Errorf("unlock achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		checkQuery := `SELECT TRUE FROM achievements WHERE user_id = $1 AND key = $2`
		err := s.pool.QueryRow(ctx, checkQuery, uuid.UUID(userID), key).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("unlock achievement: %w", err)
		}
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID domain.UserID) ([]Achievement, error) {
	query := `
		SELECT user_id, kind, key, name, target, progress,
		       reward_credits_cents, currency, unlocked, unlocked_at, updated_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked DESC, key ASC
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []Achievement
	for rows.Next() {
		var (
			a          Achievement
			user       uuid.UUID
			kind       string
			cents      int64
			currency   string
			unlockedAt *time.Time
		)
		if err := rows.Scan(&user, &kind, &a.Key, &a.Name, &a.Target, &a.Progress,
			&cents, &currency, &a.Unlocked, &unlockedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.UserID = domain.UserID(user)
		a.Kind = Kind(kind)
		a.RewardCredits = domain.NewMoney(currency, cents)
		a.UnlockedAt = unlockedAt
		out = append(out, a)
	}
	return out, rows.Err()
}
