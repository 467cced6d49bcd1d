package earnings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// PostgresStore persists earnings in PostgreSQL. Amounts are stored as
// minor units of a single currency; aggregation happens in SQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const earningColumns = `
	id, beneficiary_id, referee_id, type, amount_cents, currency, code_id,
	campaign_id, relationship_id, tracking_id, commission_rate_bp,
	source_amount_cents, status, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, e *Earning) error {
	query := `
		INSERT INTO referral_earnings (` + earningColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	var campaignID *uuid.UUID
	if e.CampaignID != nil {
		u := uuid.UUID(*e.CampaignID)
		campaignID = &u
	}
	var sourceCents *int64
	if e.SourceAmount != nil {
		sourceCents = &e.SourceAmount.Amount
	}
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(e.ID), uuid.UUID(e.BeneficiaryID), uuid.UUID(e.RefereeID),
		string(e.Type), e.Amount.Amount, e.Amount.Currency, uuid.UUID(e.CodeID),
		campaignID, uuid.UUID(e.RelationshipID), uuid.UUID(e.TrackingID),
		e.CommissionRateBP, sourceCents, string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert earning: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, earningID domain.EarningID) (*Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM referral_earnings WHERE id = $1`
	return scanEarning(s.pool.QueryRow(ctx, query, uuid.UUID(earningID)))
}

func (s *PostgresStore) ListByBeneficiary(ctx context.Context, userID domain.UserID) ([]*Earning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM referral_earnings
		WHERE beneficiary_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	defer rows.Close()

	var out []*Earning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SummarizeByBeneficiary(ctx context.Context, userID domain.UserID) (Summary, error) {
	query := `
		SELECT
			coalesce(sum(amount_cents) FILTER (WHERE status = 'pending'), 0),
			coalesce(sum(amount_cents) FILTER (WHERE status = 'approved'), 0),
			coalesce(sum(amount_cents) FILTER (WHERE status = 'paid'), 0),
			coalesce(sum(amount_cents) FILTER (WHERE status = 'reversed'), 0)
		FROM referral_earnings
		WHERE beneficiary_id = $1
	`
	var summary Summary
	err := s.pool.QueryRow(ctx, query, uuid.UUID(userID)).Scan(
		&summary.PendingCents, &summary.ApprovedCents, &summary.PaidCents, &summary.ReversedCents)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize earnings: %w", err)
	}
	return summary, nil
}

func (s *PostgresStore) BreakdownByBeneficiary(ctx context.Context, userID domain.UserID) ([]Bucket, error) {
	query := `
		SELECT to_char(created_at, 'YYYY-MM'), type, sum(amount_cents), count(*)
		FROM referral_earnings
		WHERE beneficiary_id = $1 AND status <> 'reversed'
		GROUP BY 1, 2
		ORDER BY 1 DESC, 2 ASC
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("break down earnings: %w", err)
	}
	defer rows.Close()

	var out []Bucket
	for rows.Next() {
		var bucket Bucket
		var typ string
		if err := rows.Scan(&bucket.Period, &typ, &bucket.Cents, &bucket.Count); err != nil {
			return nil, fmt.Errorf("scan earnings bucket: %w", err)
		}
		bucket.Type = Type(typ)
		out = append(out, bucket)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, earningID domain.EarningID,
	validate func(*Earning) error,
	mutate func(*Earning)) (*Earning, error) {

	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	query := `SELECT ` + earningColumns + ` FROM referral_earnings WHERE id = $1 FOR UPDATE`
	earning, err := scanEarning(pgTx.QueryRow(ctx, query, uuid.UUID(earningID)))
	if err != nil {
		return nil, err
	}
	if err := validate(earning); err != nil {
		return nil, err
	}
	mutate(earning)

	update := `UPDATE referral_earnings SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := pgTx.Exec(ctx, update,
		uuid.UUID(earning.ID), string(earning.Status), earning.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update earning: %w", err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return earning, nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanEarning(row pgxRow) (*Earning, error) {
	var (
		e              Earning
		earningID      uuid.UUID
		beneficiaryID  uuid.UUID
		refereeID      uuid.UUID
		typ            string
		codeID         uuid.UUID
		campaignID     *uuid.UUID
		relationshipID uuid.UUID
		trackingID     uuid.UUID
		sourceCents    *int64
		status         string
	)
	err := row.Scan(&earningID, &beneficiaryID, &refereeID, &typ,
		&e.Amount.Amount, &e.Amount.Currency, &codeID, &campaignID,
		&relationshipID, &trackingID, &e.CommissionRateBP, &sourceCents,
		&status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan earning: %w", err)
	}
	e.ID = domain.EarningID(earningID)
	e.BeneficiaryID = domain.UserID(beneficiaryID)
	e.RefereeID = domain.UserID(refereeID)
	e.Type = Type(typ)
	e.CodeID = domain.CodeID(codeID)
	if campaignID != nil {
		c := domain.CampaignID(*campaignID)
		e.CampaignID = &c
	}
	e.RelationshipID = domain.RelationshipID(relationshipID)
	e.TrackingID = domain.TrackingID(trackingID)
	if sourceCents != nil {
		source := domain.NewMoney(e.Amount.Currency, *sourceCents)
		e.SourceAmount = &source
	}
	e.Status = Status(status)
	return &e, nil
}
