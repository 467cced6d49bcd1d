package fraud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "refward/pkg/domain"
)

// PostgresStore persists fraud events in PostgreSQL. The table carries no
// UPDATE path; the log is append-only.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	evidence, err := json.Marshal(event.Evidence)
	if err != nil {
		return fmt.Errorf("marshal fraud evidence: %w", err)
	}
	query := `
		INSERT INTO fraud_events (id, tracking_id, referrer_id, referee_id, score, severity, action, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.pool.Exec(ctx, query,
		event.ID, uuid.UUID(event.TrackingID), uuid.UUID(event.ReferrerID), uuid.UUID(event.RefereeID),
		event.Score, string(event.Severity), string(event.Action), evidence, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fraud event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID domain.UserID) ([]Event, error) {
	query := `
		SELECT id, tracking_id, referrer_id, referee_id, score, severity, action, evidence, created_at
		FROM fraud_events
		WHERE referrer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(referrerID))
	if err != nil {
		return nil, fmt.Errorf("list fraud events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event        Event
			trackingID   uuid.UUID
			referrer     uuid.UUID
			referee      uuid.UUID
			severity     string
			action       string
			evidenceJSON []byte
		)
		err := rows.Scan(&event.ID, &trackingID, &referrer, &referee,
			&event.Score, &severity, &action, &evidenceJSON, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan fraud event: %w", err)
		}
		event.TrackingID = domain.TrackingID(trackingID)
		event.ReferrerID = domain.UserID(referrer)
		event.RefereeID = domain.UserID(referee)
		event.Severity = Severity(severity)
		event.Action = Action(action)
		if len(evidenceJSON) > 0 {
			if err := json.Unmarshal(evidenceJSON, &event.Evidence); err != nil {
				return nil, fmt.Errorf("unmarshal fraud evidence: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
