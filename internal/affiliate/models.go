// Package affiliate maintains per-user affiliate profiles: lifetime
// counters and the tier ladder. Tier only ever moves up.
package affiliate

import (
	"time"

	domain "refward/pkg/domain"
)

// Status is the lifecycle of an affiliate profile.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tier is the ordered affiliate ladder.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// tierOrder ranks tiers for the monotonic comparison.
var tierOrder = map[Tier]int{
	TierBronze:   0,
	TierSilver:   1,
	TierGold:     2,
	TierPlatinum: 3,
	TierDiamond:  4,
}

// Rank returns the tier's position on the ladder.
func (t Tier) Rank() int { return tierOrder[t] }

// threshold is one rung of the ladder. Both requirements must be met.
type threshold struct {
	tier          Tier
	earningsCents int64
	conversions   int64
}

// ladder is ordered highest first so qualification can take the first
// match. A user can skip rungs: one large conversion may jump bronze
// straight to platinum.
var ladder = []threshold{
	{tier: TierDiamond, earningsCents: 5000000, conversions: 1000},
	{tier: TierPlatinum, earningsCents: 2000000, conversions: 500},
	{tier: TierGold, earningsCents: 500000, conversions: 200},
	{tier: TierSilver, earningsCents: 100000, conversions: 50},
	{tier: TierBronze},
}

// QualifiedTier returns the highest tier the counters satisfy.
func QualifiedTier(lifetimeEarningsCents, lifetimeConversions int64) Tier {
	for _, rung := range ladder {
		if lifetimeEarningsCents >= rung.earningsCents && lifetimeConversions >= rung.conversions {
			return rung.tier
		}
	}
	return TierBronze
}

// Profile is a user's affiliate record. Created once, updated forever.
type Profile struct {
	UserID domain.UserID `json:"user_id"`
	Status Status        `json:"status"`
	Tier   Tier          `json:"tier"`

	LifetimeConversions   int64 `json:"lifetime_conversions"`
	LifetimeEarningsCents int64 `json:"lifetime_earnings_cents"`
	PeriodConversions     int64 `json:"period_conversions"`
	PeriodEarningsCents   int64 `json:"period_earnings_cents"`

	// Period is the calendar month the period counters cover, YYYY-MM.
	Period string `json:"period"`

	// PayoutAccountHash is a bcrypt hash of the payout account
	// reference; the cleartext is never stored.
	PayoutAccountHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordConversion folds one settled conversion into the counters and
// promotes the tier when the new totals qualify. Tier never moves down:
// a qualification below the current rung leaves it untouched.
func (p *Profile) RecordConversion(earnedCents int64, at time.Time) (promoted bool) {
	period := at.Format("2006-01")
	if p.Period != period {
		p.Period = period
		p.PeriodConversions = 0
		p.PeriodEarningsCents = 0
	}
	p.LifetimeConversions++
	p.LifetimeEarningsCents += earnedCents
	p.PeriodConversions++
	p.PeriodEarningsCents += earnedCents
	p.UpdatedAt = at

	qualified := QualifiedTier(p.LifetimeEarningsCents, p.LifetimeConversions)
	if qualified.Rank() > p.Tier.Rank() {
		p.Tier = qualified
		return true
	}
	return false
}
