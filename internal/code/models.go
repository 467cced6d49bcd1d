// Package code implements the referral code registry: issuance, validation
// and bounded usage accounting for shareable referral codes.
package code

import (
	"strings"
	"time"

	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
)

// Kind distinguishes a user's standing code from a campaign code.
type Kind string

const (
	KindStandard Kind = "standard"
	KindCampaign Kind = "campaign"
)

// RewardType selects how the earnings calculator prices a conversion.
type RewardType string

const (
	RewardPercentage RewardType = "percentage"
	RewardFixed      RewardType = "fixed"
	RewardCredits    RewardType = "credits"
)

// Status is the lifecycle state of a referral code.
//
// Transitions are monotonic toward a terminal state: active ↔ paused,
// active/paused → expired, any non-terminal → revoked. There is no
// resurrection from revoked or expired; codes are never hard-deleted, so
// the terminal states preserve the audit trail.
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// CanTransitionTo enforces the monotonic lifecycle.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusActive:
		return s == StatusPaused
	case StatusPaused:
		return s == StatusActive
	case StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// Normalize upper-cases and trims a code string. Both issue and validate
// normalize, so "abc123" and "ABC123" resolve to the same code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ReferralCode is the aggregate root for one shareable code.
//
// Invariants:
//   - Code string is normalized and unique case-insensitively
//   - CurrentUses ≤ MaxUses whenever MaxUses is set
//   - Status transitions follow Status.CanTransitionTo
type ReferralCode struct {
	ID          id.CodeID     `json:"id"`
	OwnerID     id.UserID     `json:"owner_id"`
	Code        string        `json:"code"`
	Kind        Kind          `json:"kind"`
	RewardType  RewardType    `json:"reward_type"`
	RewardValue int64         `json:"reward_value"`
	CampaignID  id.CampaignID `json:"campaign_id,omitempty"`
	MaxUses     *int64        `json:"max_uses,omitempty"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
	CurrentUses int64         `json:"current_uses"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsExpired reports whether the code's expiry has passed at now.
func (c *ReferralCode) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// UsesExhausted reports whether the bounded use counter is spent.
func (c *ReferralCode) UsesExhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// CanTransition checks a status transition without applying it.
func (c *ReferralCode) CanTransition(next Status) error {
	if !c.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"code cannot move from %s to %s", c.Status, next)
	}
	return nil
}

// ApplyTransition moves the code to the next status. Call CanTransition
// first; Execute callbacks pair the two under the store's lock.
func (c *ReferralCode) ApplyTransition(next Status, now time.Time) {
	c.Status = next
	c.UpdatedAt = now
}

// IssueOptions carries caller-supplied settings for a new code.
type IssueOptions struct {
	// CustomCode, when non-empty, is used verbatim (after normalization)
	// instead of a generated string.
	CustomCode  string
	Kind        Kind
	RewardType  RewardType
	RewardValue int64
	CampaignID  id.CampaignID
	MaxUses     *int64
	ExpiresAt   *time.Time
}

func (o IssueOptions) validate() error {
	switch o.Kind {
	case KindStandard, KindCampaign:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown code kind %q", o.Kind)
	}
	switch o.RewardType {
	case RewardPercentage, RewardFixed, RewardCredits:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown reward type %q", o.RewardType)
	}
	if o.RewardValue <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "reward value must be positive")
	}
	if o.RewardType == RewardPercentage && o.RewardValue > 100 {
		return dErrors.New(dErrors.CodeInvalidInput, "percentage reward cannot exceed 100")
	}
	if o.MaxUses != nil && *o.MaxUses <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max uses must be positive when set")
	}
	return nil
}

// ValidationReason explains why a code failed validation.
type ValidationReason string

const (
	ReasonNotFound       ValidationReason = "not_found"
	ReasonNotActive      ValidationReason = "not_active"
	ReasonExpired        ValidationReason = "expired"
	ReasonMaxUsesReached ValidationReason = "max_uses_reached"
)

// ValidationResult is the tri-state outcome of Validate: valid, or invalid
// with a reason.
type ValidationResult struct {
	Valid  bool
	Reason ValidationReason
}

func valid() ValidationResult                          { return ValidationResult{Valid: true} }
func invalid(reason ValidationReason) ValidationResult { return ValidationResult{Reason: reason} }
