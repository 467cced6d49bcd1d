package earnings

import (
	"context"
	"errors"
	"log/slog"

	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/audit"
	"refward/pkg/platform/sentinel"
	"refward/pkg/requestcontext"
)

// Service manages the earnings lifecycle after creation. Line items are
// created by the conversion processor; this service moves them through
// pending, approved, paid and reversed.
type Service struct {
	store   Store
	auditor *audit.Publisher
	logger  *slog.Logger
}

// NewService constructs the earnings service.
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

// Get returns an earning by id.
func (s *Service) Get(ctx context.Context, earningID id.EarningID) (*Earning, error) {
	found, err := s.store.FindByID(ctx, earningID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "earning not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load earning")
	}
	return found, nil
}

// List returns a user's earnings, newest first.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*Earning, error) {
	listed, err := s.store.ListByBeneficiary(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list earnings")
	}
	return listed, nil
}

// Summarize aggregates a user's earnings by status.
func (s *Service) Summarize(ctx context.Context, userID id.UserID) (Summary, error) {
	summary, err := s.store.SummarizeByBeneficiary(ctx, userID)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize earnings")
	}
	return summary, nil
}

// Approve moves a pending earning to approved.
func (s *Service) Approve(ctx context.Context, earningID id.EarningID) (*Earning, error) {
	return s.transition(ctx, earningID, StatusApproved, audit.EventEarningApproved)
}

// MarkPaid moves an approved earning to paid.
func (s *Service) MarkPaid(ctx context.Context, earningID id.EarningID) (*Earning, error) {
	return s.transition(ctx, earningID, StatusPaid, audit.EventEarningPaid)
}

// Reverse claws back a pending or approved earning. Paid earnings are
// final.
func (s *Service) Reverse(ctx context.Context, earningID id.EarningID) (*Earning, error) {
	return s.transition(ctx, earningID, StatusReversed, audit.EventEarningReversed)
}

func (s *Service) transition(ctx context.Context, earningID id.EarningID, next Status, action audit.AuditEvent) (*Earning, error) {
	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, earningID,
		func(e *Earning) error {
			return e.CanTransition(next)
		},
		func(e *Earning) {
			e.ApplyTransition(next, now)
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "earning not found")
		case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update earning")
		}
	}

	if s.auditor != nil {
		event := audit.Event{
			Actor:      updated.BeneficiaryID,
			Subject:    updated.RefereeID,
			Action:     string(action),
			Resource:   "referral_earning",
			ResourceID: updated.ID.String(),
			Details: map[string]string{
				"amount": updated.Amount.String(),
				"type":   string(updated.Type),
			},
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := s.auditor.Emit(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
		}
	}
	return updated, nil
}
