// Package tracking records inbound referral visits and guards the
// write-once conversion payload that makes conversion processing
// idempotent.
package tracking

import (
	"time"

	domain "refward/pkg/domain"
)

// AttributionModel names how a conversion is attributed to a click. Only
// last-click is implemented; the field exists for forward compatibility.
type AttributionModel string

const AttributionLastClick AttributionModel = "last_click"

// State is the lifecycle of a tracking record. CLICKED is the only
// non-terminal state; both CONVERTED and BLOCKED are terminal.
type State string

const (
	StateClicked   State = "clicked"
	StateConverted State = "converted"
	StateBlocked   State = "blocked"
)

// DeviceInfo is derived from the visitor's User-Agent at click time.
type DeviceInfo struct {
	Fingerprint string `json:"fingerprint"`
	Platform    string `json:"platform,omitempty"`
	OS          string `json:"os,omitempty"`
	Browser     string `json:"browser,omitempty"`
	Mobile      bool   `json:"mobile"`
	Bot         bool   `json:"bot"`
}

// ClickContext carries everything known about the inbound visit.
type ClickContext struct {
	SourceURL   string
	LandingURL  string
	IP          string
	UserAgent   string
	Fingerprint string // caller-supplied fingerprint; UA-derived fallback when empty
	Geo         string
	SessionID   string
}

// Conversion is the write-once payload set when a tracking record
// converts. Once non-nil it is never cleared or reassigned: that is the
// linchpin "at most one conversion per click" guarantee.
type Conversion struct {
	RefereeID   domain.UserID     `json:"referee_id"`
	Type        ConversionType    `json:"type"`
	Value       domain.Money      `json:"value"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ConvertedAt time.Time         `json:"converted_at"`
}

// ConversionType names what the referee did.
type ConversionType string

const (
	ConversionSignup       ConversionType = "signup"
	ConversionPurchase     ConversionType = "purchase"
	ConversionSubscription ConversionType = "subscription"
)

// IsSignup reports whether the conversion is a signup-type event, which
// the earnings calculator always classifies as a signup bonus.
func (t ConversionType) IsSignup() bool { return t == ConversionSignup }

// ReferralTracking is one attributed inbound visit (a "click").
type ReferralTracking struct {
	ID          domain.TrackingID `json:"id"`
	CodeID      domain.CodeID     `json:"code_id"`
	ReferrerID  domain.UserID     `json:"referrer_id"`
	SourceURL   string            `json:"source_url,omitempty"`
	LandingURL  string            `json:"landing_url,omitempty"`
	IP          string            `json:"ip,omitempty"`
	Geo         string            `json:"geo,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	Device      DeviceInfo        `json:"device"`
	Attribution AttributionModel  `json:"attribution"`
	Conversion  *Conversion       `json:"conversion,omitempty"`
	BlockedAt   *time.Time        `json:"blocked_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// State derives the record's lifecycle state from its terminal markers.
func (t *ReferralTracking) State() State {
	switch {
	case t.Conversion != nil:
		return StateConverted
	case t.BlockedAt != nil:
		return StateBlocked
	default:
		return StateClicked
	}
}
