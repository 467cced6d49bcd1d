package affiliate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// PostgresStore persists affiliate profiles in PostgreSQL. user_id is the
// primary key, which makes create-once a constraint rather than a check.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const profileColumns = `
	user_id, status, tier, lifetime_conversions, lifetime_earnings_cents,
	period_conversions, period_earnings_cents, period, payout_account_hash,
	created_at, updated_at
`

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO affiliate_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(p.UserID), string(p.Status), string(p.Tier),
		p.LifetimeConversions, p.LifetimeEarningsCents,
		p.PeriodConversions, p.PeriodEarningsCents, p.Period,
		p.PayoutAccountHash, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert affiliate profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID domain.UserID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM affiliate_profiles WHERE user_id = $1`
	return scanProfile(s.pool.QueryRow(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresStore) Execute(ctx context.Context, userID domain.UserID,
	validate func(*Profile) error,
	mutate func(*Profile)) (*Profile, error) {

	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	query := `SELECT ` + profileColumns + ` FROM affiliate_profiles WHERE user_id = $1 FOR UPDATE`
	profile, err := scanProfile(pgTx.QueryRow(ctx, query, uuid.UUID(userID)))
	if err != nil {
		return nil, err
	}
	if err := validate(profile); err != nil {
		return nil, err
	}
	mutate(profile)

	update := `
		UPDATE affiliate_profiles
		SET status = $2, tier = $3, lifetime_conversions = $4,
			lifetime_earnings_cents = $5, period_conversions = $6,
			period_earnings_cents = $7, period = $8,
			payout_account_hash = $9, updated_at = $10
		WHERE user_id = $1
	`
	if _, err := pgTx.Exec(ctx, update,
		uuid.UUID(profile.UserID), string(profile.Status), string(profile.Tier),
		profile.LifetimeConversions, profile.LifetimeEarningsCents,
		profile.PeriodConversions, profile.PeriodEarningsCents, profile.Period,
		profile.PayoutAccountHash, profile.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update affiliate profile: %w", err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return profile, nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanProfile(row pgxRow) (*Profile, error) {
	var (
		p      Profile
		userID uuid.UUID
		status string
		tier   string
	)
	err := row.Scan(&userID, &status, &tier,
		&p.LifetimeConversions, &p.LifetimeEarningsCents,
		&p.PeriodConversions, &p.PeriodEarningsCents, &p.Period,
		&p.PayoutAccountHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan affiliate profile: %w", err)
	}
	p.UserID = domain.UserID(userID)
	p.Status = Status(status)
	p.Tier = Tier(tier)
	return &p, nil
}
