package relationship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

// PostgresStore persists relationships in PostgreSQL. The one-edge-per-
// referee rule rides on a unique index over referee_id; a violation maps
// to sentinel.ErrAlreadyUsed.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const relationshipColumns = `id, referrer_id, referee_id, code_id, tracking_id, level, status, created_at`

func (s *PostgresStore) CreateIfFirstForReferee(ctx context.Context, rel *Relationship) error {
	query := `
		INSERT INTO referral_relationships (` + relationshipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(rel.ID), uuid.UUID(rel.ReferrerID), uuid.UUID(rel.RefereeID),
		uuid.UUID(rel.CodeID), uuid.UUID(rel.TrackingID), rel.Level, string(rel.Status), rel.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByReferee(ctx context.Context, refereeID domain.UserID) (*Relationship, error) {
	query := `SELECT ` + relationshipColumns + ` FROM referral_relationships WHERE referee_id = $1`
	return scanRelationship(s.pool.QueryRow(ctx, query, uuid.UUID(refereeID)))
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID domain.UserID) ([]*Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM referral_relationships
		WHERE referrer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(referrerID))
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByReferrerSince(ctx context.Context, referrerID domain.UserID, since time.Time) (int64, error) {
	query := `SELECT count(*) FROM referral_relationships WHERE referrer_id = $1 AND created_at >= $2`
	var n int64
	if err := s.pool.QueryRow(ctx, query, uuid.UUID(referrerID), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count relationships: %w", err)
	}
	return n, nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanRelationship(row pgxRow) (*Relationship, error) {
	var (
		rel        Relationship
		relID      uuid.UUID
		referrerID uuid.UUID
		refereeID  uuid.UUID
		codeID     uuid.UUID
		trackingID uuid.UUID
		status     string
	)
	err := row.Scan(&relID, &referrerID, &refereeID, &codeID, &trackingID, &rel.Level, &status, &rel.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan relationship: %w", err)
	}
	rel.ID = domain.RelationshipID(relID)
	rel.ReferrerID = domain.UserID(referrerID)
	rel.RefereeID = domain.UserID(refereeID)
	rel.CodeID = domain.CodeID(codeID)
	rel.TrackingID = domain.TrackingID(trackingID)
	rel.Status = Status(status)
	return &rel, nil
}
