package analytics

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"refward/internal/achievement"
	"refward/internal/affiliate"
	"refward/internal/code"
	"refward/internal/earnings"
	"refward/internal/relationship"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/sentinel"
	"refward/pkg/requestcontext"
)

// CodeLister is the slice of the code registry analytics needs.
type CodeLister interface {
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*code.ReferralCode, error)
}

// ClickCounter counts a referrer's tracked clicks and conversions.
type ClickCounter interface {
	CountByReferrer(ctx context.Context, referrerID id.UserID, since time.Time) (int64, int64, error)
}

// EarningsReader aggregates a user's earnings.
type EarningsReader interface {
	SummarizeByBeneficiary(ctx context.Context, userID id.UserID) (earnings.Summary, error)
	BreakdownByBeneficiary(ctx context.Context, userID id.UserID) ([]earnings.Bucket, error)
}

// ProfileReader resolves the user's affiliate tier.
type ProfileReader interface {
	Get(ctx context.Context, userID id.UserID) (*affiliate.Profile, error)
}

// BadgeLister lists a user's achievements.
type BadgeLister interface {
	List(ctx context.Context, userID id.UserID) ([]achievement.Achievement, error)
}

// Service assembles the dashboard.
type Service struct {
	codes         CodeLister
	clicks        ClickCounter
	earningsStore EarningsReader
	profiles      ProfileReader
	badges        BadgeLister
	relationships relationship.Store
}

// NewService constructs the analytics service.
func NewService(
	codes CodeLister,
	clicks ClickCounter,
	earningsStore EarningsReader,
	profiles ProfileReader,
	badges BadgeLister,
	relationships relationship.Store,
) *Service {
	return &Service{
		codes:         codes,
		clicks:        clicks,
		earningsStore: earningsStore,
		profiles:      profiles,
		badges:        badges,
		relationships: relationships,
	}
}

// Overview fans out the per-aggregate reads concurrently and assembles
// the dashboard payload. A missing affiliate profile is normal (the
// user never converted anyone) and reads as bronze.
func (s *Service) Overview(ctx context.Context, userID id.UserID, timeframe Timeframe) (*Overview, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	since := timeframe.Since(requestcontext.Now(ctx))

	overview := &Overview{Timeframe: timeframe, Tier: affiliate.TierBronze}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		listed, err := s.codes.ListByOwner(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list codes")
		}
		overview.Performance.TotalCodes = len(listed)
		for _, c := range listed {
			if c.Status == code.StatusActive {
				overview.Performance.ActiveCodes++
			}
		}
		return nil
	})

	g.Go(func() error {
		clicks, conversions, err := s.clicks.CountByReferrer(gctx, userID, since)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count clicks")
		}
		overview.Performance.Clicks = clicks
		overview.Performance.Conversions = conversions
		if clicks > 0 {
			overview.Performance.ConversionRatePct = conversions * 100 / clicks
		}
		return nil
	})

	g.Go(func() error {
		listed, err := s.relationships.ListByReferrer(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list relationships")
		}
		overview.Performance.Referrals = int64(len(listed))
		return nil
	})

	g.Go(func() error {
		summary, err := s.earningsStore.SummarizeByBeneficiary(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize earnings")
		}
		overview.Earnings = summary
		return nil
	})

	g.Go(func() error {
		breakdown, err := s.earningsStore.BreakdownByBeneficiary(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to break down earnings")
		}
		overview.Breakdown = breakdown
		return nil
	})

	g.Go(func() error {
		profile, err := s.profiles.Get(gctx, userID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		overview.Tier = profile.Tier
		return nil
	})

	g.Go(func() error {
		badges, err := s.badges.List(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list achievements")
		}
		overview.Achievements = badges
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}
