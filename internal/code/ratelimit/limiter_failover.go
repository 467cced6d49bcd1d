package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"refward/pkg/platform/circuit"
)

// FailoverLimiter fronts a distributed limiter with a circuit breaker and
// an in-process fallback. While the primary is healthy its answers win;
// after repeated primary errors the breaker opens and checks are served
// from the fallback, so issuance stays bounded (per process) through a
// Redis outage instead of failing closed.
type FailoverLimiter struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFailoverLimiter(primary, fallback Limiter, logger *slog.Logger) *FailoverLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverLimiter{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("ratelimit"),
		logger:   logger,
	}
}

// Allow consults the primary unless the breaker is open. Primary errors
// feed the breaker and fall back for this check; primary successes close
// it again.
func (l *FailoverLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if !l.breaker.IsOpen() {
		result, err := l.primary.Allow(ctx, key, limit, window)
		if err == nil {
			l.breaker.RecordSuccess()
			return result, nil
		}
		if _, change := l.breaker.RecordFailure(); change.Opened {
			l.logger.Warn("rate limiter circuit opened, serving from fallback",
				"breaker", l.breaker.Name(),
				"error", err,
			)
		}
		return l.fallback.Allow(ctx, key, limit, window)
	}

	// Probe the primary so sustained recovery closes the breaker, but let
	// the fallback answer while open.
	if _, err := l.primary.Allow(ctx, key, limit, window); err == nil {
		if _, change := l.breaker.RecordSuccess(); change.Closed {
			l.logger.Info("rate limiter circuit closed, primary recovered",
				"breaker", l.breaker.Name(),
			)
		}
	} else {
		l.breaker.RecordFailure()
	}
	return l.fallback.Allow(ctx, key, limit, window)
}
