package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// PostgresStore persists tracking records in PostgreSQL.
//
// The conversion gate is a conditional UPDATE whose WHERE clause requires
// the record to still be pending; under concurrent duplicate delivery the
// row lock serializes the two updates and the loser matches zero rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const trackingColumns = `
	id, code_id, referrer_id, source_url, landing_url, ip, geo, session_id,
	device, attribution, conversion, blocked_at, created_at
`

func (s *PostgresStore) Create(ctx context.Context, t *ReferralTracking) error {
	device, err := json.Marshal(t.Device)
	if err != nil {
		return fmt.Errorf("marshal device info: %w", err)
	}
	query := `
		INSERT INTO referral_tracking (` + trackingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, NULL, $11)
	`
	_, err = s.pool.Exec(ctx, query,
		uuid.UUID(t.ID), uuid.UUID(t.CodeID), uuid.UUID(t.ReferrerID),
		t.SourceURL, t.LandingURL, t.IP, t.Geo, t.SessionID,
		device, string(t.Attribution), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tracking record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, trackingID domain.TrackingID) (*ReferralTracking, error) {
	query := `SELECT ` + trackingColumns + ` FROM referral_tracking WHERE id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, uuid.UUID(trackingID)))
}

func (s *PostgresStore) ConvertIfPending(ctx context.Context, trackingID domain.TrackingID, conv Conversion) (*ReferralTracking, error) {
	payload, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("marshal conversion payload: %w", err)
	}
	query := `
		UPDATE referral_tracking
		SET conversion = $2
		WHERE id = $1 AND conversion IS NULL AND blocked_at IS NULL
		RETURNING ` + trackingColumns
	updated, err := s.scanOne(s.pool.QueryRow(ctx, query, uuid.UUID(trackingID), payload))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	return nil, s.classifyGateMiss(ctx, trackingID)
}

func (s *PostgresStore) BlockIfPending(ctx context.Context, trackingID domain.TrackingID, at time.Time) (*ReferralTracking, error) {
	query := `
		UPDATE referral_tracking
		SET blocked_at = $2
		WHERE id = $1 AND conversion IS NULL AND blocked_at IS NULL
		RETURNING ` + trackingColumns
	updated, err := s.scanOne(s.pool.QueryRow(ctx, query, uuid.UUID(trackingID), at))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	return nil, s.classifyGateMiss(ctx, trackingID)
}

// classifyGateMiss separates "row does not exist" from "row already
// terminal" after a conditional update matched nothing.
func (s *PostgresStore) classifyGateMiss(ctx context.Context, trackingID domain.TrackingID) error {
	if _, err := s.FindByID(ctx, trackingID); err != nil {
		return err
	}
	return sentinel.ErrAlreadyUsed
}

func (s *PostgresStore) ListRecentByReferrer(ctx context.Context, referrerID domain.UserID, limit int) ([]*ReferralTracking, error) {
	query := `
		SELECT ` + trackingColumns + `
		FROM referral_tracking
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(referrerID), limit)
	if err != nil {
		return nil, fmt.Errorf("list tracking records: %w", err)
	}
	defer rows.Close()

	var out []*ReferralTracking
	for rows.Next() {
		record, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByReferrer(ctx context.Context, referrerID domain.UserID, since time.Time) (int64, int64, error) {
	query := `
		SELECT count(*), count(conversion)
		FROM referral_tracking
		WHERE referrer_id = $1 AND created_at >= $2
	`
	var total, converted int64
	if err := s.pool.QueryRow(ctx, query, uuid.UUID(referrerID), since).Scan(&total, &converted); err != nil {
		return 0, 0, fmt.Errorf("count tracking records: %w", err)
	}
	return total, converted, nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row pgxRow) (*ReferralTracking, error) {
	var (
		t           ReferralTracking
		trackingID  uuid.UUID
		codeID      uuid.UUID
		referrerID  uuid.UUID
		deviceJSON  []byte
		attribution string
		convJSON    []byte
	)
	err := row.Scan(&trackingID, &codeID, &referrerID, &t.SourceURL, &t.LandingURL,
		&t.IP, &t.Geo, &t.SessionID, &deviceJSON, &attribution, &convJSON,
		&t.BlockedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan tracking record: %w", err)
	}
	t.ID = domain.TrackingID(trackingID)
	t.CodeID = domain.CodeID(codeID)
	t.ReferrerID = domain.UserID(referrerID)
	t.Attribution = AttributionModel(attribution)
	if len(deviceJSON) > 0 {
		if err := json.Unmarshal(deviceJSON, &t.Device); err != nil {
			return nil, fmt.Errorf("unmarshal device info: %w", err)
		}
	}
	if len(convJSON) > 0 {
		var conv Conversion
		if err := json.Unmarshal(convJSON, &conv); err != nil {
			return nil, fmt.Errorf("unmarshal conversion payload: %w", err)
		}
		t.Conversion = &conv
	}
	return &t, nil
}
