// Package earnings turns settled conversions into monetary line items
// and tracks their lifecycle from pending to paid.
package earnings

import (
	"time"

	domain "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
)

// Type classifies a line item.
type Type string

const (
	TypeSignupBonus          Type = "signup_bonus"
	TypePercentageCommission Type = "percentage_commission"
	TypeFixedCommission      Type = "fixed_commission"
	TypeTierBonus            Type = "tier_bonus"
)

// Status is the lifecycle of a line item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
	StatusReversed Status = "reversed"
)

// statusTransitions encodes the allowed lifecycle moves. Paid and
// reversed are terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusReversed},
	StatusApproved: {StatusPaid, StatusReversed},
}

// CanTransitionTo reports whether the move from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s Status) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// Earning is one monetary line item. Multiple earnings may reference the
// same tracking id: the primary commission plus at most one cascaded tier
// bonus, which is intentional fan-out rather than duplication.
type Earning struct {
	ID             domain.EarningID      `json:"id"`
	BeneficiaryID  domain.UserID         `json:"beneficiary_id"`
	RefereeID      domain.UserID         `json:"referee_id"`
	Type           Type                  `json:"type"`
	Amount         domain.Money          `json:"amount"`
	CodeID         domain.CodeID         `json:"code_id"`
	CampaignID     *domain.CampaignID    `json:"campaign_id,omitempty"`
	RelationshipID domain.RelationshipID `json:"relationship_id"`
	TrackingID     domain.TrackingID     `json:"tracking_id"`

	// CommissionRateBP is the applied rate in basis points; nil for
	// fixed-amount earnings.
	CommissionRateBP *int64 `json:"commission_rate_bp,omitempty"`

	// SourceAmount is the conversion value the rate was applied to; nil
	// for fixed-amount earnings.
	SourceAmount *domain.Money `json:"source_amount,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransition validates a status move without applying it.
func (e *Earning) CanTransition(next Status) error {
	if !e.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"earning cannot move from %s to %s", e.Status, next)
	}
	return nil
}

// ApplyTransition moves the earning to next, assuming CanTransition
// passed.
func (e *Earning) ApplyTransition(next Status, at time.Time) {
	e.Status = next
	e.UpdatedAt = at
}
