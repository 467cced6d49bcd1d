// Package fraud scores conversion attempts before any money moves. The
// detector itself is pure: it sees a snapshot of history and returns an
// assessment, and the caller decides what to do with it.
package fraud

import (
	"time"

	"github.com/google/uuid"

	domain "refward/pkg/domain"
)

// Signal names one suspicion the detector can raise.
type Signal string

const (
	SignalSelfReferral Signal = "self_referral"
	SignalSameIP       Signal = "same_ip"
	SignalSameDevice   Signal = "same_device"
	SignalVelocity     Signal = "velocity"
	SignalHighValue    Signal = "high_value"
)

// Severity buckets an assessment for audit and alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action is what the caller should do with the conversion.
type Action string

const (
	ActionAllow Action = "allow"
	ActionFlag  Action = "flag"
	ActionBlock Action = "block"
)

// ScoreInput is everything the detector looks at for one conversion
// attempt.
type ScoreInput struct {
	ReferrerID domain.UserID
	RefereeID  domain.UserID

	// Click-time context of the tracking record being converted.
	IP          string
	Fingerprint string

	// Conversion value; the zero Money means no monetary value.
	Value domain.Money

	History History
}

// History is a point-in-time snapshot of the referrer's recent activity,
// assembled by the caller from the tracking and relationship stores.
type History struct {
	// RecentIPs holds the IPs of the referrer's most recent clicks,
	// newest first.
	RecentIPs []string

	// RecentFingerprints holds the device fingerprints of the referrer's
	// most recent clicks, newest first.
	RecentFingerprints []string

	// RelationshipsLast24h counts referral relationships the referrer
	// created in the trailing day.
	RelationshipsLast24h int64
}

// Evidence ties a raised signal to the points it contributed.
type Evidence struct {
	Signal Signal `json:"signal"`
	Points int    `json:"points"`
	Detail string `json:"detail,omitempty"`
}

// Assessment is the detector's verdict on one conversion attempt.
type Assessment struct {
	Score    int
	Evidence []Evidence
	Action   Action
}

// Flagged reports whether the attempt crossed the review threshold.
func (a Assessment) Flagged() bool { return a.Action != ActionAllow }

// Blocked reports whether the attempt crossed the auto-block threshold.
func (a Assessment) Blocked() bool { return a.Action == ActionBlock }

// Severity buckets the score for downstream consumers.
func (a Assessment) Severity() Severity {
	switch {
	case a.Score > autoBlockThreshold:
		return SeverityCritical
	case a.Score > flagThreshold:
		return SeverityHigh
	case a.Score > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Event is one appended fraud record. Events are append-only: they are
// the investigation trail and are never rewritten.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	TrackingID domain.TrackingID `json:"tracking_id"`
	ReferrerID domain.UserID     `json:"referrer_id"`
	RefereeID  domain.UserID     `json:"referee_id"`
	Score      int               `json:"score"`
	Severity   Severity          `json:"severity"`
	Action     Action            `json:"action"`
	Evidence   []Evidence        `json:"evidence"`
	CreatedAt  time.Time         `json:"created_at"`
}
