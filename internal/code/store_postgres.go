package code

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// PostgresStore persists referral codes in PostgreSQL.
//
// Uniqueness rides on a unique index over the normalized code column;
// the bounded increment and Execute ride on conditional UPDATE and
// SELECT ... FOR UPDATE respectively, so no correctness depends on
// read-then-write sequences.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const codeColumns = `
	id, owner_id, code, kind, reward_type, reward_value, campaign_id,
	max_uses, expires_at, current_uses, status, created_at, updated_at
`

func (s *PostgresStore) CreateIfCodeAvailable(ctx context.Context, code *ReferralCode) error {
	query := `
		INSERT INTO referral_codes (` + codeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(code.ID), uuid.UUID(code.OwnerID), Normalize(code.Code),
		string(code.Kind), string(code.RewardType), code.RewardValue,
		nilUUID(uuid.UUID(code.CampaignID)), code.MaxUses, code.ExpiresAt,
		code.CurrentUses, string(code.Status), code.CreatedAt, code.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert referral code: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	query := `SELECT ` + codeColumns + ` FROM referral_codes WHERE id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, uuid.UUID(codeID)))
}

func (s *PostgresStore) FindByCode(ctx context.Context, normalized string) (*ReferralCode, error) {
	query := `SELECT ` + codeColumns + ` FROM referral_codes WHERE code = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, Normalize(normalized)))
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*ReferralCode, error) {
	query := `SELECT ` + codeColumns + ` FROM referral_codes WHERE owner_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list referral codes: %w", err)
	}
	defer rows.Close()

	var out []*ReferralCode
	for rows.Next() {
		code, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// IncrementUse relies on the WHERE clause to bound the counter: the UPDATE
// only matches while uses remain, so two concurrent increments on a code
// with one use left produce exactly one success.
func (s *PostgresStore) IncrementUse(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	query := `
		UPDATE referral_codes
		SET current_uses = current_uses + 1, updated_at = now()
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)
		RETURNING ` + codeColumns
	code, err := s.scanOne(s.pool.QueryRow(ctx, query, uuid.UUID(codeID)))
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	// No row matched: either the code is missing or the bound is hit.
	if _, findErr := s.FindByID(ctx, codeID); findErr != nil {
		return nil, findErr
	}
	return nil, sentinel.ErrLimitExceeded
}

func (s *PostgresStore) Execute(ctx context.Context, codeID id.CodeID,
	validate func(*ReferralCode) error,
	mutate func(*ReferralCode)) (*ReferralCode, error) {

	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	query := `SELECT ` + codeColumns + ` FROM referral_codes WHERE id = $1 FOR UPDATE`
	code, err := s.scanOne(pgTx.QueryRow(ctx, query, uuid.UUID(codeID)))
	if err != nil {
		return nil, err
	}
	if err := validate(code); err != nil {
		return nil, err
	}
	mutate(code)

	update := `
		UPDATE referral_codes
		SET status = $2, current_uses = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := pgTx.Exec(ctx, update,
		uuid.UUID(code.ID), string(code.Status), code.CurrentUses, code.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update referral code: %w", err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return code, nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row pgxRow) (*ReferralCode, error) {
	var (
		code       ReferralCode
		codeID     uuid.UUID
		ownerID    uuid.UUID
		campaignID *uuid.UUID
		kind       string
		rewardType string
		status     string
	)
	err := row.Scan(&codeID, &ownerID, &code.Code, &kind, &rewardType,
		&code.RewardValue, &campaignID, &code.MaxUses, &code.ExpiresAt,
		&code.CurrentUses, &status, &code.CreatedAt, &code.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan referral code: %w", err)
	}
	code.ID = id.CodeID(codeID)
	code.OwnerID = id.UserID(ownerID)
	if campaignID != nil {
		code.CampaignID = id.CampaignID(*campaignID)
	}
	code.Kind = Kind(kind)
	code.RewardType = RewardType(rewardType)
	code.Status = Status(status)
	return &code, nil
}

func nilUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
