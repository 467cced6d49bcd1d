// Package postgres implements audit.Store using the transactional outbox
// pattern. Events are written to the outbox table and published to Kafka by
// the outbox worker; Kafka is the source of truth for audit events.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "refward/pkg/domain"
	"refward/pkg/platform/audit"
	txcontext "refward/pkg/platform/tx"
)

// Store writes audit events to the PostgreSQL outbox.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for proper deserialization by the consumer.
type outboxPayload struct {
	ID         string            `json:"ID"`
	Category   string            `json:"Category"`
	Timestamp  string            `json:"Timestamp"`
	Actor      string            `json:"Actor,omitempty"`
	Subject    string            `json:"Subject,omitempty"`
	Action     string            `json:"Action"`
	Resource   string            `json:"Resource,omitempty"`
	ResourceID string            `json:"ResourceID,omitempty"`
	Details    map[string]string `json:"Details,omitempty"`
	RequestID  string            `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:         eventID.String(),
		Category:   string(category),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		Action:     event.Action,
		Resource:   event.Resource,
		ResourceID: event.ResourceID,
		Details:    event.Details,
		RequestID:  event.RequestID,
	}
	if !event.Actor.IsNil() {
		payload.Actor = event.Actor.String()
	}
	if !event.Subject.IsNil() {
		payload.Subject = event.Subject.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.Actor.IsNil() {
		aggregateType = "user"
		aggregateID = event.Actor.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), // outbox entry ID
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByActor reads materialized audit events for one actor.
func (s *Store) ListByActor(ctx context.Context, actor id.UserID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, actor_id, subject_id, action, resource, resource_id, details, request_id
		FROM audit_events
		WHERE actor_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(actor))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event       audit.Event
			category    string
			actorID     uuid.UUID
			subjectID   *uuid.UUID
			detailsJSON []byte
		)
		if err := rows.Scan(&category, &event.Timestamp, &actorID, &subjectID,
			&event.Action, &event.Resource, &event.ResourceID, &detailsJSON, &event.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Actor = id.UserID(actorID)
		if subjectID != nil {
			event.Subject = id.UserID(*subjectID)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
