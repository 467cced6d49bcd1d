package affiliate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/audit"
	"refward/pkg/platform/sentinel"
	"refward/pkg/requestcontext"
)

// Service manages affiliate profiles.
type Service struct {
	store   Store
	auditor *audit.Publisher
	logger  *slog.Logger
}

// NewService constructs the affiliate service.
func NewService(store Store, opts ...Option) *Service {
	cfg := &serviceConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{store: store, auditor: cfg.auditor, logger: cfg.logger}
}

type serviceConfig struct {
	auditor *audit.Publisher
	logger  *slog.Logger
}

// Option customizes optional service collaborators.
type Option func(*serviceConfig)

// WithAuditor wires the audit publisher.
func WithAuditor(p *audit.Publisher) Option {
	return func(c *serviceConfig) { c.auditor = p }
}

// WithLogger wires a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

// Enroll creates a user's affiliate profile. Enrolling twice is benign:
// the existing profile is returned unchanged.
func (s *Service) Enroll(ctx context.Context, userID id.UserID) (*Profile, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	now := requestcontext.Now(ctx)
	profile := &Profile{
		UserID:    userID,
		Status:    StatusActive,
		Tier:      TierBronze,
		Period:    now.Format("2006-01"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.CreateIfAbsent(ctx, profile)
	if err == nil {
		return profile, nil
	}
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return s.Get(ctx, userID)
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll affiliate")
}

// Get returns a user's profile.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*Profile, error) {
	found, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "affiliate profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load affiliate profile")
	}
	return found, nil
}

// RecordConversion folds a settled conversion into the user's counters,
// enrolling the user first if needed, and promotes the tier when the new
// totals qualify. Tier movement is strictly upward.
func (s *Service) RecordConversion(ctx context.Context, userID id.UserID, earnedCents int64) (*Profile, error) {
	if _, err := s.Enroll(ctx, userID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var promoted bool
	var fromTier Tier
	updated, err := s.store.Execute(ctx, userID,
		func(p *Profile) error {
			fromTier = p.Tier
			return nil
		},
		func(p *Profile) {
			promoted = p.RecordConversion(earnedCents, now)
		},
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record conversion")
	}

	if promoted && s.auditor != nil {
		event := audit.Event{
			Actor:      userID,
			Action:     string(audit.EventTierUpgraded),
			Resource:   "affiliate_profile",
			ResourceID: userID.String(),
			Details: map[string]string{
				"from":                 string(fromTier),
				"to":                   string(updated.Tier),
				"lifetime_conversions": fmt.Sprintf("%d", updated.LifetimeConversions),
				"lifetime_earnings":    fmt.Sprintf("%d", updated.LifetimeEarningsCents),
			},
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := s.auditor.Emit(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "audit emit failed", "action", audit.EventTierUpgraded, "error", err)
		}
	}
	return updated, nil
}

// SetPayoutAccount stores a bcrypt hash of the payout account reference.
// The cleartext never touches persistence.
func (s *Service) SetPayoutAccount(ctx context.Context, userID id.UserID, account string) error {
	if account == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "payout account is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(account), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash payout account")
	}
	_, err = s.store.Execute(ctx, userID,
		func(p *Profile) error { return nil },
		func(p *Profile) {
			p.PayoutAccountHash = string(hash)
			p.UpdatedAt = requestcontext.Now(ctx)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "affiliate profile not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store payout account")
	}
	return nil
}

// VerifyPayoutAccount checks a cleartext account reference against the
// stored hash.
func (s *Service) VerifyPayoutAccount(ctx context.Context, userID id.UserID, account string) (bool, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if profile.PayoutAccountHash == "" {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(profile.PayoutAccountHash), []byte(account))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify payout account")
	}
	return true, nil
}
