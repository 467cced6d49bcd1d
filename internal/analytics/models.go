// Package analytics assembles a referrer's dashboard view from the
// other aggregates. It is read-only composition: every number it
// reports is derived, never stored here.
package analytics

import (
	"time"

	"refward/internal/achievement"
	"refward/internal/affiliate"
	"refward/internal/earnings"
	dErrors "refward/pkg/domain-errors"
)

// Timeframe bounds the click and conversion counters. Earnings
// breakdowns are always lifetime; the timeframe applies to activity.
type Timeframe string

const (
	TimeframeWeek    Timeframe = "7d"
	TimeframeMonth   Timeframe = "30d"
	TimeframeQuarter Timeframe = "90d"
	TimeframeAll     Timeframe = "all"
)

// ParseTimeframe validates a timeframe string. Empty defaults to all.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "":
		return TimeframeAll, nil
	case TimeframeWeek, TimeframeMonth, TimeframeQuarter, TimeframeAll:
		return Timeframe(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown timeframe %q", s)
	}
}

// Since returns the cutoff for the timeframe. The zero time means
// unbounded.
func (t Timeframe) Since(now time.Time) time.Time {
	switch t {
	case TimeframeWeek:
		return now.AddDate(0, 0, -7)
	case TimeframeMonth:
		return now.AddDate(0, 0, -30)
	case TimeframeQuarter:
		return now.AddDate(0, 0, -90)
	default:
		return time.Time{}
	}
}

// Performance summarizes click-to-conversion funnel numbers.
type Performance struct {
	Clicks            int64 `json:"clicks"`
	Conversions       int64 `json:"conversions"`
	ConversionRatePct int64 `json:"conversion_rate_pct"`
	ActiveCodes       int   `json:"active_codes"`
	TotalCodes        int   `json:"total_codes"`
	Referrals         int64 `json:"referrals"`
}

// Overview is the full dashboard payload.
type Overview struct {
	Timeframe    Timeframe                 `json:"timeframe"`
	Performance  Performance               `json:"performance"`
	Earnings     earnings.Summary          `json:"earnings"`
	Breakdown    []earnings.Bucket         `json:"breakdown"`
	Tier         affiliate.Tier            `json:"tier"`
	Achievements []achievement.Achievement `json:"achievements"`
}
