package code

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	codemetrics "refward/internal/code/metrics"
	"refward/internal/code/ratelimit"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/audit"
	"refward/pkg/platform/sentinel"
	"refward/pkg/requestcontext"
)

// Service orchestrates the referral code lifecycle.
type Service struct {
	store       Store
	limiter     ratelimit.Limiter
	issuePolicy IssuePolicy
	auditor     *audit.Publisher
	metrics     *codemetrics.Metrics
	logger      *slog.Logger
}

// IssuePolicy bounds per-owner issuance.
type IssuePolicy struct {
	Limit  int
	Window time.Duration
}

// NewService constructs the code registry service.
func NewService(store Store, limiter ratelimit.Limiter, policy IssuePolicy, opts ...Option) *Service {
	cfg := &serviceConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		store:       store,
		limiter:     limiter,
		issuePolicy: policy,
		auditor:     cfg.auditor,
		metrics:     cfg.metrics,
		logger:      cfg.logger,
	}
}

type serviceConfig struct {
	auditor *audit.Publisher
	metrics *codemetrics.Metrics
	logger  *slog.Logger
}

// Option customizes optional service collaborators.
type Option func(*serviceConfig)

// WithAuditor wires the audit publisher.
func WithAuditor(p *audit.Publisher) Option {
	return func(c *serviceConfig) { c.auditor = p }
}

// WithMetrics wires prometheus metrics.
func WithMetrics(m *codemetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithLogger wires a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

// Issue creates a new referral code for ownerID.
//
// A caller-supplied custom code must be free (case-insensitively); generated
// codes retry on collision up to maxGenerateAttempts before reporting the
// code space exhausted.
func (s *Service) Issue(ctx context.Context, ownerID id.UserID, opts IssueOptions) (*ReferralCode, error) {
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, ownerID.String(), s.issuePolicy.Limit, s.issuePolicy.Window)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issuance rate limiter unavailable")
		}
		if !res.Allowed {
			s.incrementRateLimited()
			s.emitAudit(ctx, audit.Event{
				Actor:    ownerID,
				Action:   string(audit.EventIssueRateLimited),
				Resource: "referral_code",
			})
			return nil, dErrors.New(dErrors.CodeRateLimited, "code issuance limit reached")
		}
	}

	now := requestcontext.Now(ctx)
	newCode := func(codeString string) *ReferralCode {
		return &ReferralCode{
			ID:          id.NewCodeID(),
			OwnerID:     ownerID,
			Code:        Normalize(codeString),
			Kind:        opts.Kind,
			RewardType:  opts.RewardType,
			RewardValue: opts.RewardValue,
			CampaignID:  opts.CampaignID,
			MaxUses:     opts.MaxUses,
			ExpiresAt:   opts.ExpiresAt,
			Status:      StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	if opts.CustomCode != "" {
		created := newCode(opts.CustomCode)
		if err := s.store.CreateIfCodeAvailable(ctx, created); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return nil, dErrors.Newf(dErrors.CodeConflict, "code %q is already taken", created.Code)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create code")
		}
		s.finishIssue(ctx, created)
		return created, nil
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		generated, err := generateCode()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
		}
		created := newCode(generated)
		err = s.store.CreateIfCodeAvailable(ctx, created)
		if err == nil {
			s.finishIssue(ctx, created)
			return created, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create code")
		}
	}

	// Exhaustion is an operational anomaly: it signals the code space is
	// under-provisioned, not a bad request.
	s.incrementGenerationExhausted()
	s.logger.WarnContext(ctx, "code generation attempts exhausted",
		"owner_id", ownerID,
		"attempts", maxGenerateAttempts,
	)
	return nil, dErrors.New(dErrors.CodeInternal, "code generation attempts exhausted")
}

func (s *Service) finishIssue(ctx context.Context, created *ReferralCode) {
	s.incrementIssued()
	s.emitAudit(ctx, audit.Event{
		Actor:      created.OwnerID,
		Action:     string(audit.EventCodeIssued),
		Resource:   "referral_code",
		ResourceID: created.ID.String(),
		Details:    map[string]string{"code": created.Code, "kind": string(created.Kind)},
	})
}

// Validate checks whether a code string can currently be used. The result
// is never cached: state can change between a click and its conversion, so
// both paths call Validate immediately before acting.
func (s *Service) Validate(ctx context.Context, codeString string) (*ReferralCode, ValidationResult, error) {
	normalized := Normalize(codeString)
	if normalized == "" {
		s.incrementValidationFailure(ReasonNotFound)
		return nil, invalid(ReasonNotFound), nil
	}

	found, err := s.store.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementValidationFailure(ReasonNotFound)
			return nil, invalid(ReasonNotFound), nil
		}
		return nil, ValidationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up code")
	}

	if found.Status != StatusActive {
		s.incrementValidationFailure(ReasonNotActive)
		return found, invalid(ReasonNotActive), nil
	}
	if found.IsExpired(requestcontext.Now(ctx)) {
		s.incrementValidationFailure(ReasonExpired)
		return found, invalid(ReasonExpired), nil
	}
	if found.UsesExhausted() {
		s.incrementValidationFailure(ReasonMaxUsesReached)
		return found, invalid(ReasonMaxUsesReached), nil
	}
	return found, valid(), nil
}

// RecordUse atomically consumes one use of the code. The store enforces
// the bound; this never exceeds MaxUses under concurrent callers.
func (s *Service) RecordUse(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	updated, err := s.store.IncrementUse(ctx, codeID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "code not found")
		case errors.Is(err, sentinel.ErrLimitExceeded):
			return nil, dErrors.New(dErrors.CodeValidation, "code has reached its maximum uses")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record code use")
		}
	}
	return updated, nil
}

// Get returns a code by id.
func (s *Service) Get(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	found, err := s.store.FindByID(ctx, codeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "code not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load code")
	}
	return found, nil
}

// ListByOwner returns all codes issued by one owner.
func (s *Service) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*ReferralCode, error) {
	listed, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list codes")
	}
	return listed, nil
}

// Pause suspends an active code.
func (s *Service) Pause(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	return s.transition(ctx, codeID, StatusPaused, audit.EventCodePaused)
}

// Resume reactivates a paused code.
func (s *Service) Resume(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	return s.transition(ctx, codeID, StatusActive, audit.EventCodeResumed)
}

// Revoke terminally disables a code. There is no way back.
func (s *Service) Revoke(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	return s.transition(ctx, codeID, StatusRevoked, audit.EventCodeRevoked)
}

// Expire terminally marks a code expired.
func (s *Service) Expire(ctx context.Context, codeID id.CodeID) (*ReferralCode, error) {
	return s.transition(ctx, codeID, StatusExpired, audit.EventCodeExpired)
}

func (s *Service) transition(ctx context.Context, codeID id.CodeID, next Status, action audit.AuditEvent) (*ReferralCode, error) {
	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, codeID,
		func(c *ReferralCode) error {
			return c.CanTransition(next)
		},
		func(c *ReferralCode) {
			c.ApplyTransition(next, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "code not found")
		}
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to move code to %s", next))
	}

	s.emitAudit(ctx, audit.Event{
		Actor:      updated.OwnerID,
		Action:     string(action),
		Resource:   "referral_code",
		ResourceID: updated.ID.String(),
	})
	return updated, nil
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

func (s *Service) incrementIssued() {
	if s.metrics != nil {
		s.metrics.IncrementCodesIssued()
	}
}

func (s *Service) incrementRateLimited() {
	if s.metrics != nil {
		s.metrics.IncrementIssueRateLimited()
	}
}

func (s *Service) incrementGenerationExhausted() {
	if s.metrics != nil {
		s.metrics.IncrementGenerationExhausted()
	}
}

func (s *Service) incrementValidationFailure(reason ValidationReason) {
	if s.metrics != nil {
		s.metrics.IncrementValidationFailure(string(reason))
	}
}
