package tracking

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"refward/internal/code"
	trackingmetrics "refward/internal/tracking/metrics"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/sentinel"
	"refward/pkg/requestcontext"
)

// CodeValidator is the slice of the code registry the tracker needs: a
// fresh validation immediately before acting, and the atomic use counter.
type CodeValidator interface {
	Validate(ctx context.Context, codeString string) (*code.ReferralCode, code.ValidationResult, error)
	RecordUse(ctx context.Context, codeID id.CodeID) (*code.ReferralCode, error)
}

// Service records inbound referral clicks.
type Service struct {
	store   Store
	codes   CodeValidator
	links   *LinkBuilder
	metrics *trackingmetrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewService constructs the click tracker.
func NewService(store Store, codes CodeValidator, opts ...Option) *Service {
	cfg := &serviceConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		store:   store,
		codes:   codes,
		links:   cfg.links,
		metrics: cfg.metrics,
		logger:  cfg.logger,
		tracer:  otel.Tracer("refward/tracking"),
	}
}

type serviceConfig struct {
	links   *LinkBuilder
	metrics *trackingmetrics.Metrics
	logger  *slog.Logger
}

// Option customizes optional service collaborators.
type Option func(*serviceConfig)

// WithLinkBuilder wires shareable-link generation.
func WithLinkBuilder(b *LinkBuilder) Option {
	return func(c *serviceConfig) { c.links = b }
}

// WithMetrics wires prometheus metrics.
func WithMetrics(m *trackingmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithLogger wires a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

// Track records a click against a referral code.
//
// The code is validated at click time; an invalid code writes nothing and
// returns a validation error carrying the reason. On success the code's
// use counter is consumed first, so a code can never accumulate more
// clicks than its MaxUses permits.
func (s *Service) Track(ctx context.Context, codeString string, clickCtx ClickContext) (*ReferralTracking, error) {
	ctx, span := s.tracer.Start(ctx, "tracking.Track",
		trace.WithAttributes(attribute.String("referral_code", code.Normalize(codeString))))
	var trackErr error
	defer func() {
		if trackErr != nil {
			span.SetStatus(otelcodes.Error, trackErr.Error())
		}
		span.End()
	}()

	record, trackErr := s.track(ctx, codeString, clickCtx)
	return record, trackErr
}

func (s *Service) track(ctx context.Context, codeString string, clickCtx ClickContext) (*ReferralTracking, error) {
	found, result, err := s.codes.Validate(ctx, codeString)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		s.incrementRejected(string(result.Reason))
		return nil, dErrors.Newf(dErrors.CodeValidation, "referral code is not usable: %s", result.Reason)
	}

	// The use is reserved before the row is written so an exhausted code
	// can never gain an extra click. The inverse failure, a persist error
	// after the increment, leaks one use with no row behind it; that is
	// accepted because uses bound abuse rather than account for money,
	// while a row against an over-limit code would corrupt attribution.
	if _, err := s.codes.RecordUse(ctx, found.ID); err != nil {
		// Raced past validation into an exhausted or removed code.
		s.incrementRejected("use_not_recorded")
		return nil, err
	}

	record := &ReferralTracking{
		ID:          id.NewTrackingID(),
		CodeID:      found.ID,
		ReferrerID:  found.OwnerID,
		SourceURL:   clickCtx.SourceURL,
		LandingURL:  clickCtx.LandingURL,
		IP:          clickCtx.IP,
		Geo:         clickCtx.Geo,
		SessionID:   clickCtx.SessionID,
		Device:      parseDevice(clickCtx),
		Attribution: AttributionLastClick,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist click")
	}

	s.incrementTracked()
	if record.Device.Bot {
		s.incrementBot()
		s.logger.InfoContext(ctx, "bot click recorded",
			"tracking_id", record.ID,
			"code", found.Code,
		)
	}
	return record, nil
}

// Get returns a tracking record by id.
func (s *Service) Get(ctx context.Context, trackingID id.TrackingID) (*ReferralTracking, error) {
	found, err := s.store.FindByID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tracking record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tracking record")
	}
	return found, nil
}

// ShareLink returns the shareable URL for a code string.
func (s *Service) ShareLink(ctx context.Context, codeString string, params LinkParams) (string, error) {
	if s.links == nil {
		return "", dErrors.New(dErrors.CodeInternal, "link building is not configured")
	}
	found, result, err := s.codes.Validate(ctx, codeString)
	if err != nil {
		return "", err
	}
	if !result.Valid {
		return "", dErrors.Newf(dErrors.CodeValidation, "referral code is not usable: %s", result.Reason)
	}
	return s.links.BuildLink(found.Code, params, requestcontext.Now(ctx))
}

func (s *Service) incrementTracked() {
	if s.metrics != nil {
		s.metrics.IncrementClicksTracked()
	}
}

func (s *Service) incrementRejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementClicksRejected(reason)
	}
}

func (s *Service) incrementBot() {
	if s.metrics != nil {
		s.metrics.IncrementBotClicks()
	}
}
