package fraud

import (
	"fmt"

	domain "refward/pkg/domain"
)

// Scoring weights. The contributions are additive; a self-referral alone
// already clears the auto-block threshold.
const (
	pointsSelfReferral = 95
	pointsSameIP       = 60
	pointsSameDevice   = 50
	pointsVelocity     = 40
	pointsHighValue    = 30

	flagThreshold      = 50
	autoBlockThreshold = 80
)

// History windows and trip counts.
const (
	sameIPWindow     = 10
	sameIPMax        = 3
	sameDeviceWindow = 20
	sameDeviceMax    = 2
	velocityMax      = 10
)

// Detector scores conversion attempts. It holds only configuration and
// performs no IO, so a single instance is safe for concurrent use.
type Detector struct {
	highValueThreshold domain.Money
}

// NewDetector constructs a detector. highValueThreshold is the conversion
// value above which the high-value signal fires.
func NewDetector(highValueThreshold domain.Money) *Detector {
	return &Detector{highValueThreshold: highValueThreshold}
}

// Score evaluates one conversion attempt against the referrer's history
// snapshot. Signals are additive and never reduce the score.
func (d *Detector) Score(in ScoreInput) Assessment {
	var a Assessment

	if !in.ReferrerID.IsNil() && in.ReferrerID == in.RefereeID {
		a.add(SignalSelfReferral, pointsSelfReferral, "referrer and referee are the same user")
	}

	if in.IP != "" {
		if n := countMatches(in.History.RecentIPs, in.IP, sameIPWindow); n > sameIPMax {
			a.add(SignalSameIP, pointsSameIP,
				fmt.Sprintf("%d of the last %d clicks share ip %s", n, sameIPWindow, in.IP))
		}
	}

	if in.Fingerprint != "" {
		if n := countMatches(in.History.RecentFingerprints, in.Fingerprint, sameDeviceWindow); n > sameDeviceMax {
			a.add(SignalSameDevice, pointsSameDevice,
				fmt.Sprintf("%d of the last %d clicks share device %s", n, sameDeviceWindow, in.Fingerprint))
		}
	}

	if in.History.RelationshipsLast24h > velocityMax {
		a.add(SignalVelocity, pointsVelocity,
			fmt.Sprintf("%d relationships created in 24h", in.History.RelationshipsLast24h))
	}

	if d.highValueThreshold.IsPositive() && in.Value.Amount > d.highValueThreshold.Amount {
		a.add(SignalHighValue, pointsHighValue,
			fmt.Sprintf("conversion value %s exceeds %s", in.Value, d.highValueThreshold))
	}

	switch {
	case a.Score > autoBlockThreshold:
		a.Action = ActionBlock
	case a.Score > flagThreshold:
		a.Action = ActionFlag
	default:
		a.Action = ActionAllow
	}
	return a
}

func (a *Assessment) add(signal Signal, points int, detail string) {
	a.Score += points
	a.Evidence = append(a.Evidence, Evidence{Signal: signal, Points: points, Detail: detail})
}

// countMatches counts occurrences of value within the first window
// entries of history (newest first).
func countMatches(history []string, value string, window int) int {
	if len(history) > window {
		history = history[:window]
	}
	var n int
	for _, h := range history {
		if h == value {
			n++
		}
	}
	return n
}
