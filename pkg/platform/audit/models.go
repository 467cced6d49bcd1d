// Package audit captures structured audit events emitted from domain logic.
// Events are transport-agnostic so stores and sinks can fan out: memory for
// tests, a postgres outbox plus Kafka for production.
package audit

import (
	"time"

	id "refward/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with monetary or regulatory
	// significance. These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to abuse monitoring and
	// forensics: fraud flags, blocks, rate limit trips.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	// These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Actor is the user who performed the action (code owner, referrer).
	Actor id.UserID
	// Subject is the user the action concerns when different from the
	// actor (the referee of a blocked conversion).
	Subject id.UserID
	Action  string
	// Resource identifies the aggregate the action touched, e.g.
	// "referral_code", "tracking", "affiliate_profile".
	Resource   string
	ResourceID string
	// Details carries small, non-PII key-value context (code string,
	// old/new tier, risk score).
	Details   map[string]string
	RequestID string
}

// AuditEvent names every action the engine emits.
type AuditEvent string

const (
	// Code registry events
	EventCodeIssued  AuditEvent = "referral_code_issued"
	EventCodePaused  AuditEvent = "referral_code_paused"
	EventCodeResumed AuditEvent = "referral_code_resumed"
	EventCodeRevoked AuditEvent = "referral_code_revoked"
	EventCodeExpired AuditEvent = "referral_code_expired"

	// Conversion events
	EventConversionSettled AuditEvent = "conversion_settled"
	EventConversionFlagged AuditEvent = "conversion_flagged"
	EventConversionBlocked AuditEvent = "conversion_blocked"

	// Earnings events
	EventEarningApproved AuditEvent = "earning_approved"
	EventEarningPaid     AuditEvent = "earning_paid"
	EventEarningReversed AuditEvent = "earning_reversed"

	// Affiliate events
	EventTierUpgraded AuditEvent = "affiliate_tier_upgraded"

	// Rate limit events
	EventIssueRateLimited AuditEvent = "code_issue_rate_limited"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - money moved or was authorized
	EventConversionSettled: CategoryCompliance,
	EventTierUpgraded:      CategoryCompliance,
	EventEarningApproved:   CategoryCompliance,
	EventEarningPaid:       CategoryCompliance,
	EventEarningReversed:   CategoryCompliance,

	// Security events - abuse signals
	EventConversionFlagged: CategorySecurity,
	EventConversionBlocked: CategorySecurity,
	EventIssueRateLimited:  CategorySecurity,
	EventCodeRevoked:       CategorySecurity,

	// Operations events - routine lifecycle
	EventCodeIssued:  CategoryOperations,
	EventCodePaused:  CategoryOperations,
	EventCodeResumed: CategoryOperations,
	EventCodeExpired: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
