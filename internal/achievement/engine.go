package achievement

import (
	"context"
	"errors"
	"log/slog"

	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/sentinel"
	"refward/pkg/requestcontext"
)

// Engine recomputes a user's achievement progress from an activity
// snapshot and grants rewards for fresh unlocks.
type Engine struct {
	store  Store
	ledger Ledger
	logger *slog.Logger
}

// NewEngine constructs the achievement engine.
func NewEngine(store Store, opts ...Option) *Engine {
	cfg := &engineConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Engine{store: store, ledger: cfg.ledger, logger: cfg.logger}
}

type engineConfig struct {
	ledger Ledger
	logger *slog.Logger
}

// Option customizes optional engine collaborators.
type Option func(*engineConfig)

// WithLogger wires a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// WithLedger wires the ledger that records credit grants on unlock.
// Without one, unlocks are persisted but no grant is recorded.
func WithLedger(l Ledger) Option {
	return func(c *engineConfig) { c.ledger = l }
}

// Recompute refreshes progress for every locked milestone and unlocks
// those whose progress has reached the target, granting the reward. It
// returns the freshly unlocked achievements.
//
// Idempotent end to end: progress upserts skip unlocked rows, the grant
// is keyed on (user, achievement), and the unlock itself is a
// compare-and-set. The grant is recorded before the unlock commits, so
// a crash between the two re-drives the grant on the next recompute
// without paying twice.
func (e *Engine) Recompute(ctx context.Context, userID id.UserID, stats Stats) ([]Achievement, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	now := requestcontext.Now(ctx)

	var unlocked []Achievement
	for _, def := range definitions {
		progress := def.metric(stats)
		a := Achievement{
			UserID:        userID,
			Kind:          def.kind,
			Key:           def.key,
			Name:          def.name,
			Target:        def.target,
			Progress:      progress,
			RewardCredits: id.NewMoney(id.DefaultCurrency, def.rewardCredits),
			UpdatedAt:     now,
		}
		alreadyUnlocked, err := e.store.SaveProgress(ctx, a)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save achievement progress")
		}
		if alreadyUnlocked || progress < def.target {
			continue
		}

		if e.ledger != nil {
			grant := Grant{UserID: userID, Key: def.key, Credits: a.RewardCredits, GrantedAt: now}
			if err := e.ledger.Credit(ctx, grant); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant achievement reward")
			}
		}
		err = e.store.Unlock(ctx, userID, def.key, now)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// A concurrent recompute won the unlock.
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlock achievement")
		}
		e.logger.InfoContext(ctx, "achievement unlocked",
			"user_id", userID,
			"key", def.key,
			"reward_credits", def.rewardCredits,
		)
		a.Unlocked = true
		unlockedAt := now
		a.UnlockedAt = &unlockedAt
		unlocked = append(unlocked, a)
	}
	return unlocked, nil
}

// List returns a user's achievement rows, unlocked first.
func (e *Engine) List(ctx context.Context, userID id.UserID) ([]Achievement, error) {
	listed, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list achievements")
	}
	return listed, nil
}
