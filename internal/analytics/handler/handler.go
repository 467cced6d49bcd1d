// Package handler exposes the referrer dashboard over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"refward/internal/achievement"
	"refward/internal/analytics"
	"refward/internal/platform/metrics"
	"refward/internal/platform/middleware"
	id "refward/pkg/domain"
	"refward/pkg/platform/httputil"
)

// Service defines the analytics operations the handler depends on.
type Service interface {
	Overview(ctx context.Context, userID id.UserID, timeframe analytics.Timeframe) (*analytics.Overview, error)
}

// BadgeLister lists a user's awarded achievements.
type BadgeLister interface {
	List(ctx context.Context, userID id.UserID) ([]achievement.Achievement, error)
}

// Handler handles dashboard endpoints.
type Handler struct {
	logger       *slog.Logger
	analytics    Service
	badges       BadgeLister
	metrics      *metrics.Metrics
	jwtValidator middleware.TokenValidator
}

// New creates a new analytics Handler.
func New(
	analytics Service,
	badges BadgeLister,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		analytics:    analytics,
		badges:       badges,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the dashboard routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(dashboardRouter chi.Router) {
		dashboardRouter.Use(middleware.Recovery(h.logger))
		dashboardRouter.Use(middleware.RequestID)
		dashboardRouter.Use(middleware.RequestTime)
		dashboardRouter.Use(middleware.Logger(h.logger))
		dashboardRouter.Use(middleware.Timeout(30 * time.Second))
		dashboardRouter.Use(middleware.ContentTypeJSON)
		dashboardRouter.Use(middleware.Latency(h.metrics))
		dashboardRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		dashboardRouter.Get("/analytics/overview", h.handleOverview)
		dashboardRouter.Get("/achievements", h.handleAchievements)
	})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	timeframe, err := analytics.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	overview, err := h.analytics.Overview(ctx, middleware.GetUserID(ctx), timeframe)
	if err != nil {
		h.logger.ErrorContext(ctx, "overview assembly failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleAchievements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	awarded, err := h.badges.List(ctx, middleware.GetUserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"achievements": awarded})
}
