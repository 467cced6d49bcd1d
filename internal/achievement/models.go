// Package achievement tracks progress toward referral milestones and
// grants credit rewards when a milestone unlocks. Recomputing a user's
// achievements is idempotent: progress is refreshed on every pass, but
// each unlock and its reward grant happen exactly once.
package achievement

import (
	"time"

	domain "refward/pkg/domain"
)

// Kind groups achievements by the statistic they watch.
type Kind string

const (
	KindReferralCount     Kind = "referral_count"
	KindEarningsMilestone Kind = "earnings_milestone"
	KindConversionRate    Kind = "conversion_rate"
)

// Achievement is one per-user milestone row. (UserID, Key) is unique.
// Progress is refreshed on every recompute while the row is locked;
// once unlocked the row is frozen and the reward has been granted.
type Achievement struct {
	UserID        domain.UserID `json:"user_id"`
	Kind          Kind          `json:"kind"`
	Key           string        `json:"key"`
	Name          string        `json:"name"`
	Target        int64         `json:"target"`
	Progress      int64         `json:"progress"`
	RewardCredits domain.Money  `json:"reward_credits"`
	Unlocked      bool          `json:"unlocked"`
	UnlockedAt    *time.Time    `json:"unlocked_at,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Stats is the activity snapshot achievements are computed from.
type Stats struct {
	Relationships         int64
	LifetimeEarningsCents int64
	Clicks                int64
	Conversions           int64
}

// ConversionRatePercent is conversions per hundred clicks, floored.
func (s Stats) ConversionRatePercent() int64 {
	if s.Clicks == 0 {
		return 0
	}
	return s.Conversions * 100 / s.Clicks
}

// definition is one milestone: the metric it watches, the target that
// unlocks it, and the credit reward granted on unlock.
type definition struct {
	kind          Kind
	key           string
	name          string
	target        int64
	rewardCredits int64
	metric        func(Stats) int64
}

// minRateSample is the click floor below which the conversion-rate
// milestones report zero progress; tiny samples make the rate
// meaningless.
const minRateSample = 20

func relationshipCount(s Stats) int64 { return s.Relationships }
func earningsCents(s Stats) int64     { return s.LifetimeEarningsCents }

func sampledConversionRate(s Stats) int64 {
	if s.Clicks < minRateSample {
		return 0
	}
	return s.ConversionRatePercent()
}

var definitions = []definition{
	{KindReferralCount, "first_referral", "First Referral", 1, 500, relationshipCount},
	{KindReferralCount, "ten_referrals", "Ten Referrals", 10, 1000, relationshipCount},
	{KindReferralCount, "fifty_referrals", "Fifty Referrals", 50, 2500, relationshipCount},
	{KindReferralCount, "hundred_referrals", "Hundred Referrals", 100, 5000, relationshipCount},

	{KindEarningsMilestone, "earned_100", "First 100 Earned", 10000, 1000, earningsCents},
	{KindEarningsMilestone, "earned_1k", "1K Club", 100000, 5000, earningsCents},
	{KindEarningsMilestone, "earned_10k", "10K Club", 1000000, 25000, earningsCents},

	{KindConversionRate, "converter_20", "Strong Converter", 20, 1000, sampledConversionRate},
	{KindConversionRate, "converter_50", "Elite Converter", 50, 2500, sampledConversionRate},
}
