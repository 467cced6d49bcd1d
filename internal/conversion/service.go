// Package conversion settles referee conversions: it runs the fraud
// gate, wins (or loses) the tracking record's write-once conversion
// slot, and fans out the settled result into relationships, earnings,
// affiliate counters and achievements.
package conversion

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CodeRegistry,AffiliateLedger,AchievementRecomputer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"refward/internal/achievement"
	"refward/internal/affiliate"
	"refward/internal/code"
	convmetrics "refward/internal/conversion/metrics"
	"refward/internal/earnings"
	"refward/internal/fraud"
	"refward/internal/relationship"
	"refward/internal/tracking"
	domain "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/audit"
	"refward/pkg/platform/sentinel"
	"refward/pkg/requestcontext"
)

// fraudHistoryWindow bounds how many recent clicks feed the detector.
const fraudHistoryWindow = 20

// CodeRegistry is the slice of the code registry the processor needs.
type CodeRegistry interface {
	Get(ctx context.Context, codeID domain.CodeID) (*code.ReferralCode, error)
}

// AffiliateLedger folds settled conversions into affiliate counters.
type AffiliateLedger interface {
	RecordConversion(ctx context.Context, userID domain.UserID, earnedCents int64) (*affiliate.Profile, error)
}

// AchievementRecomputer re-derives a user's badges from fresh stats.
type AchievementRecomputer interface {
	Recompute(ctx context.Context, userID domain.UserID, stats achievement.Stats) ([]achievement.Achievement, error)
}

// Input is one conversion delivery, typically from a webhook or an
// internal signup/payment event.
type Input struct {
	RefereeID domain.UserID
	Type      tracking.ConversionType
	Value     domain.Money
	Metadata  map[string]string
}

// Result is what settled. PrimaryEarning and CascadeEarning are nil when
// the referee's referrer-of-record is a different user, or when no
// cascade qualified.
type Result struct {
	Tracking       *tracking.ReferralTracking
	Relationship   *relationship.Relationship
	PrimaryEarning *earnings.Earning
	CascadeEarning *earnings.Earning
	FraudScore     int
	Flagged        bool
}

// Service orchestrates conversion processing.
type Service struct {
	trackingStore tracking.Store
	codes         CodeRegistry
	detector      *fraud.Detector
	fraudLog      fraud.Store
	relationships relationship.Store
	calculator    *earnings.Calculator
	earningsStore earnings.Store
	affiliates    AffiliateLedger
	achievements  AchievementRecomputer
	auditor       *audit.Publisher
	metrics       *convmetrics.Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewService constructs the conversion processor.
func NewService(
	trackingStore tracking.Store,
	codes CodeRegistry,
	detector *fraud.Detector,
	fraudLog fraud.Store,
	relationships relationship.Store,
	calculator *earnings.Calculator,
	earningsStore earnings.Store,
	opts ...Option,
) *Service {
	cfg := &serviceConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		trackingStore: trackingStore,
		codes:         codes,
		detector:      detector,
		fraudLog:      fraudLog,
		relationships: relationships,
		calculator:    calculator,
		earningsStore: earningsStore,
		affiliates:    cfg.affiliates,
		achievements:  cfg.achievements,
		auditor:       cfg.auditor,
		metrics:       cfg.metrics,
		logger:        cfg.logger,
		tracer:        otel.Tracer("refward/conversion"),
	}
}

type serviceConfig struct {
	affiliates   AffiliateLedger
	achievements AchievementRecomputer
	auditor      *audit.Publisher
	metrics      *convmetrics.Metrics
	logger       *slog.Logger
}

// Option customizes optional service collaborators.
type Option func(*serviceConfig)

// WithAffiliates wires the affiliate ledger.
func WithAffiliates(a AffiliateLedger) Option {
	return func(c *serviceConfig) { c.affiliates = a }
}

// WithAchievements wires badge recomputation.
func WithAchievements(a AchievementRecomputer) Option {
	return func(c *serviceConfig) { c.achievements = a }
}

// WithAuditor wires the audit publisher.
func WithAuditor(p *audit.Publisher) Option {
	return func(c *serviceConfig) { c.auditor = p }
}

// WithMetrics wires prometheus metrics.
func WithMetrics(m *convmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithLogger wires a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

// Process settles one conversion delivery against a tracking record.
//
// The tracking record's conversion slot is the idempotency gate: under
// duplicate delivery exactly one call wins it and every other call
// returns a conflict. Side effects after the gate (relationship,
// earnings, counters) are surfaced on failure rather than rolled back;
// the settled conversion itself is never undone.
func (s *Service) Process(ctx context.Context, trackingID domain.TrackingID, in Input) (result *Result, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "conversion.Process",
		trace.WithAttributes(
			attribute.String("tracking_id", trackingID.String()),
			attribute.String("conversion_type", string(in.Type)),
		),
	)
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
		s.observeDuration(time.Since(started))
	}()

	if in.RefereeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "referee id is required")
	}
	switch in.Type {
	case tracking.ConversionSignup, tracking.ConversionPurchase, tracking.ConversionSubscription:
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown conversion type %q", in.Type)
	}

	record, err := s.loadTracking(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if record.State() != tracking.StateClicked {
		s.incrementDuplicate()
		return nil, dErrors.New(dErrors.CodeConflict, "tracking record already settled")
	}

	referralCode, err := s.usableCode(ctx, record.CodeID)
	if err != nil {
		return nil, err
	}
	// Reject uncomputable payouts before the idempotency gate. Once the
	// conversion slot is won the click is spent for good, so an input
	// the calculator would refuse must not get that far.
	if _, err := s.calculator.Primary(referralCode, tracking.Conversion{
		RefereeID: in.RefereeID,
		Type:      in.Type,
		Value:     in.Value,
	}); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	assessment := s.detector.Score(fraud.ScoreInput{
		ReferrerID:  record.ReferrerID,
		RefereeID:   in.RefereeID,
		IP:          record.IP,
		Fingerprint: record.Device.Fingerprint,
		Value:       in.Value,
		History:     s.assembleHistory(ctx, record.ReferrerID, now),
	})
	span.SetAttributes(attribute.Int("fraud_score", assessment.Score))

	if assessment.Blocked() {
		return nil, s.block(ctx, record, in, assessment, now)
	}
	if assessment.Flagged() {
		s.recordFraud(ctx, record, in, assessment, now)
		s.incrementFlagged()
		s.emitAudit(ctx, audit.Event{
			Actor:      record.ReferrerID,
			Subject:    in.RefereeID,
			Action:     string(audit.EventConversionFlagged),
			Resource:   "tracking",
			ResourceID: record.ID.String(),
			Details:    map[string]string{"score": strconv.Itoa(assessment.Score)},
		})
	}

	conv := tracking.Conversion{
		RefereeID:   in.RefereeID,
		Type:        in.Type,
		Value:       in.Value,
		Metadata:    in.Metadata,
		ConvertedAt: now,
	}
	settled, err := s.trackingStore.ConvertIfPending(ctx, record.ID, conv)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementDuplicate()
			return nil, dErrors.New(dErrors.CodeConflict, "tracking record already settled")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tracking record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to settle conversion")
	}

	result = &Result{
		Tracking:   settled,
		FraudScore: assessment.Score,
		Flagged:    assessment.Flagged(),
	}

	// The gate is won; everything below settles money and counters on
	// top of it and must not unwind the conversion.
	rel, payReferrer, err := s.attributeReferee(ctx, settled, in, now)
	if err != nil {
		return result, err
	}
	result.Relationship = rel

	if payReferrer {
		if err := s.payOut(ctx, result, referralCode, rel, conv, now); err != nil {
			return result, err
		}
	}

	s.incrementProcessed(string(in.Type))
	s.emitAudit(ctx, audit.Event{
		Actor:      settled.ReferrerID,
		Subject:    in.RefereeID,
		Action:     string(audit.EventConversionSettled),
		Resource:   "tracking",
		ResourceID: settled.ID.String(),
		Details: map[string]string{
			"type":  string(in.Type),
			"value": in.Value.String(),
			"score": strconv.Itoa(assessment.Score),
		},
	})
	return result, nil
}

func (s *Service) loadTracking(ctx context.Context, trackingID domain.TrackingID) (*tracking.ReferralTracking, error) {
	record, err := s.trackingStore.FindByID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tracking record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tracking record")
	}
	return record, nil
}

// usableCode revalidates the code at conversion time. Click-time
// validity does not carry over: a code paused between click and
// conversion fails here.
func (s *Service) usableCode(ctx context.Context, codeID domain.CodeID) (*code.ReferralCode, error) {
	found, err := s.codes.Get(ctx, codeID)
	if err != nil {
		return nil, err
	}
	if found.Status != code.StatusActive {
		return nil, dErrors.Newf(dErrors.CodeValidation, "referral code is %s", found.Status)
	}
	if found.IsExpired(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeValidation, "referral code is expired")
	}
	return found, nil
}

// assembleHistory snapshots the referrer's recent activity for the
// detector. Lookup failures degrade to an empty history rather than
// failing the conversion.
func (s *Service) assembleHistory(ctx context.Context, referrerID domain.UserID, now time.Time) fraud.History {
	var history fraud.History

	recent, err := s.trackingStore.ListRecentByReferrer(ctx, referrerID, fraudHistoryWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "fraud history lookup failed", "referrer_id", referrerID, "error", err)
	}
	for _, r := range recent {
		history.RecentIPs = append(history.RecentIPs, r.IP)
		history.RecentFingerprints = append(history.RecentFingerprints, r.Device.Fingerprint)
	}

	count, err := s.relationships.CountByReferrerSince(ctx, referrerID, now.Add(-24*time.Hour))
	if err != nil {
		s.logger.WarnContext(ctx, "relationship velocity lookup failed", "referrer_id", referrerID, "error", err)
	}
	history.RelationshipsLast24h = count
	return history
}

func (s *Service) block(ctx context.Context, record *tracking.ReferralTracking, in Input, assessment fraud.Assessment, now time.Time) error {
	if _, err := s.trackingStore.BlockIfPending(ctx, record.ID, now); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementDuplicate()
			return dErrors.New(dErrors.CodeConflict, "tracking record already settled")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to block conversion")
	}
	s.recordFraud(ctx, record, in, assessment, now)
	s.incrementBlocked()
	s.emitAudit(ctx, audit.Event{
		Actor:      record.ReferrerID,
		Subject:    in.RefereeID,
		Action:     string(audit.EventConversionBlocked),
		Resource:   "tracking",
		ResourceID: record.ID.String(),
		Details:    map[string]string{"score": strconv.Itoa(assessment.Score)},
	})
	s.logger.WarnContext(ctx, "conversion blocked",
		"tracking_id", record.ID,
		"referrer_id", record.ReferrerID,
		"score", assessment.Score,
	)
	return dErrors.New(dErrors.CodeFraudBlocked, "conversion blocked by fraud checks")
}

func (s *Service) recordFraud(ctx context.Context, record *tracking.ReferralTracking, in Input, assessment fraud.Assessment, now time.Time) {
	event := fraud.Event{
		ID:         uuid.New(),
		TrackingID: record.ID,
		ReferrerID: record.ReferrerID,
		RefereeID:  in.RefereeID,
		Score:      assessment.Score,
		Severity:   assessment.Severity(),
		Action:     assessment.Action,
		Evidence:   assessment.Evidence,
		CreatedAt:  now,
	}
	if err := s.fraudLog.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "fraud event append failed", "tracking_id", record.ID, "error", err)
	}
}

// attributeReferee establishes (or reuses) the referee's direct
// relationship. Earnings are paid only to the referrer-of-record; a
// conversion whose click came from a different referrer settles with no
// payout.
func (s *Service) attributeReferee(ctx context.Context, settled *tracking.ReferralTracking, in Input, now time.Time) (*relationship.Relationship, bool, error) {
	rel := &relationship.Relationship{
		ID:         domain.NewRelationshipID(),
		ReferrerID: settled.ReferrerID,
		RefereeID:  in.RefereeID,
		CodeID:     settled.CodeID,
		TrackingID: settled.ID,
		Level:      1,
		Status:     relationship.StatusActive,
		CreatedAt:  now,
	}
	err := s.relationships.CreateIfFirstForReferee(ctx, rel)
	if err == nil {
		return rel, true, nil
	}
	if !errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create relationship")
	}

	existing, err := s.relationships.FindByReferee(ctx, in.RefereeID)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relationship")
	}
	if existing.ReferrerID != settled.ReferrerID {
		s.logger.InfoContext(ctx, "conversion settled without payout",
			"tracking_id", settled.ID,
			"referrer_of_record", existing.ReferrerID,
			"click_referrer", settled.ReferrerID,
		)
		return existing, false, nil
	}
	return existing, true, nil
}

func (s *Service) payOut(ctx context.Context, result *Result, referralCode *code.ReferralCode, rel *relationship.Relationship, conv tracking.Conversion, now time.Time) error {
	primary, err := s.calculator.Primary(referralCode, conv)
	if err != nil {
		return err
	}

	primaryEarning := s.newEarning(referralCode, rel, result.Tracking.ID, conv.RefereeID, now)
	primaryEarning.BeneficiaryID = rel.ReferrerID
	primaryEarning.Type = primary.Type
	primaryEarning.Amount = primary.Amount
	primaryEarning.CommissionRateBP = primary.CommissionRateBP
	primaryEarning.SourceAmount = primary.SourceAmount
	if err := s.earningsStore.Create(ctx, primaryEarning); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create primary earning")
	}
	result.PrimaryEarning = primaryEarning

	if cascadeEarning := s.cascade(ctx, primary.Amount, referralCode, rel, result.Tracking.ID, conv.RefereeID, now); cascadeEarning != nil {
		result.CascadeEarning = cascadeEarning
	}

	if s.affiliates != nil {
		if _, err := s.affiliates.RecordConversion(ctx, rel.ReferrerID, primary.Amount.Amount); err != nil {
			return err
		}
	}
	if s.achievements != nil {
		if err := s.recomputeAchievements(ctx, rel.ReferrerID, now); err != nil {
			s.logger.ErrorContext(ctx, "achievement recompute failed", "user_id", rel.ReferrerID, "error", err)
		}
	}
	return nil
}

// cascade pays the one-level tier bonus up the chain. The cascade never
// recurses: the referrer's referrer is the only extra beneficiary.
func (s *Service) cascade(ctx context.Context, primaryAmount domain.Money, referralCode *code.ReferralCode, rel *relationship.Relationship, trackingID domain.TrackingID, refereeID domain.UserID, now time.Time) *earnings.Earning {
	parent, err := s.relationships.FindByReferee(ctx, rel.ReferrerID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "cascade lookup failed", "referrer_id", rel.ReferrerID, "error", err)
		}
		return nil
	}

	bonus, ok := s.calculator.Cascade(primaryAmount)
	if !ok {
		return nil
	}

	cascadeEarning := s.newEarning(referralCode, rel, trackingID, refereeID, now)
	cascadeEarning.BeneficiaryID = parent.ReferrerID
	cascadeEarning.Type = earnings.TypeTierBonus
	cascadeEarning.Amount = bonus
	if err := s.earningsStore.Create(ctx, cascadeEarning); err != nil {
		s.logger.ErrorContext(ctx, "cascade earning create failed", "beneficiary_id", parent.ReferrerID, "error", err)
		return nil
	}
	return cascadeEarning
}

func (s *Service) newEarning(referralCode *code.ReferralCode, rel *relationship.Relationship, trackingID domain.TrackingID, refereeID domain.UserID, now time.Time) *earnings.Earning {
	e := &earnings.Earning{
		ID:             domain.NewEarningID(),
		RefereeID:      refereeID,
		CodeID:         referralCode.ID,
		RelationshipID: rel.ID,
		TrackingID:     trackingID,
		Status:         earnings.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !referralCode.CampaignID.IsNil() {
		campaignID := referralCode.CampaignID
		e.CampaignID = &campaignID
	}
	return e
}

func (s *Service) recomputeAchievements(ctx context.Context, userID domain.UserID, now time.Time) error {
	rels, err := s.relationships.ListByReferrer(ctx, userID)
	if err != nil {
		return err
	}
	summary, err := s.earningsStore.SummarizeByBeneficiary(ctx, userID)
	if err != nil {
		return err
	}
	clicks, converted, err := s.trackingStore.CountByReferrer(ctx, userID, time.Time{})
	if err != nil {
		return err
	}
	_, err = s.achievements.Recompute(ctx, userID, achievement.Stats{
		Relationships:         int64(len(rels)),
		LifetimeEarningsCents: summary.LifetimeCents(),
		Clicks:                clicks,
		Conversions:           converted,
	})
	return err
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) incrementProcessed(conversionType string) {
	if s.metrics != nil {
		s.metrics.IncrementProcessed(conversionType)
	}
}

func (s *Service) incrementBlocked() {
	if s.metrics != nil {
		s.metrics.IncrementBlocked()
	}
}

func (s *Service) incrementFlagged() {
	if s.metrics != nil {
		s.metrics.IncrementFlagged()
	}
}

func (s *Service) incrementDuplicate() {
	if s.metrics != nil {
		s.metrics.IncrementDuplicate()
	}
}

func (s *Service) observeDuration(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveDuration(d)
	}
}
