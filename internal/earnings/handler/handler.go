// Package handler exposes the earnings ledger over HTTP. Beneficiaries read
// their own line items; the payout lifecycle (approve, pay, reverse) is
// driven by back-office tooling through service-token routes.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"refward/internal/earnings"
	"refward/internal/platform/metrics"
	"refward/internal/platform/middleware"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/httputil"
)

// Service defines the earnings operations the handler depends on.
type Service interface {
	Get(ctx context.Context, earningID id.EarningID) (*earnings.Earning, error)
	List(ctx context.Context, userID id.UserID) ([]*earnings.Earning, error)
	Summarize(ctx context.Context, userID id.UserID) (earnings.Summary, error)
	Approve(ctx context.Context, earningID id.EarningID) (*earnings.Earning, error)
	MarkPaid(ctx context.Context, earningID id.EarningID) (*earnings.Earning, error)
	Reverse(ctx context.Context, earningID id.EarningID) (*earnings.Earning, error)
}

// Handler handles earnings endpoints.
type Handler struct {
	logger       *slog.Logger
	earnings     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.TokenValidator
	serviceToken string
}

// New creates a new earnings Handler.
func New(
	earnings Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.TokenValidator,
	serviceToken string) *Handler {
	return &Handler{
		logger:       logger,
		earnings:     earnings,
		metrics:      metrics,
		jwtValidator: jwtValidator,
		serviceToken: serviceToken,
	}
}

// Register registers the earnings routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(userRouter chi.Router) {
		userRouter.Use(middleware.Recovery(h.logger))
		userRouter.Use(middleware.RequestID)
		userRouter.Use(middleware.RequestTime)
		userRouter.Use(middleware.Logger(h.logger))
		userRouter.Use(middleware.Timeout(30 * time.Second))
		userRouter.Use(middleware.ContentTypeJSON)
		userRouter.Use(middleware.Latency(h.metrics))
		userRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		userRouter.Get("/earnings", h.handleList)
		userRouter.Get("/earnings/summary", h.handleSummary)
		userRouter.Get("/earnings/{earningID}", h.handleGet)
	})

	r.Group(func(opsRouter chi.Router) {
		opsRouter.Use(middleware.Recovery(h.logger))
		opsRouter.Use(middleware.RequestID)
		opsRouter.Use(middleware.RequestTime)
		opsRouter.Use(middleware.Logger(h.logger))
		opsRouter.Use(middleware.Timeout(30 * time.Second))
		opsRouter.Use(middleware.ContentTypeJSON)
		opsRouter.Use(middleware.Latency(h.metrics))
		opsRouter.Use(middleware.RequireServiceToken(h.serviceToken, h.logger))
		opsRouter.Post("/ops/earnings/{earningID}/approve", h.transition(h.earnings.Approve))
		opsRouter.Post("/ops/earnings/{earningID}/pay", h.transition(h.earnings.MarkPaid))
		opsRouter.Post("/ops/earnings/{earningID}/reverse", h.transition(h.earnings.Reverse))
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.earnings.List(ctx, middleware.GetUserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"earnings": items})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.earnings.Summarize(ctx, middleware.GetUserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"summary":        summary,
		"lifetime_cents": summary.LifetimeCents(),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	earningID, err := id.ParseEarningID(chi.URLParam(r, "earningID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	found, err := h.earnings.Get(ctx, earningID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Line items owned by someone else read as not found.
	if found.BeneficiaryID != middleware.GetUserID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "earning not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, found)
}

func (h *Handler) transition(op func(ctx context.Context, earningID id.EarningID) (*earnings.Earning, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		earningID, err := id.ParseEarningID(chi.URLParam(r, "earningID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		updated, err := op(ctx, earningID)
		if err != nil {
			h.logger.WarnContext(ctx, "earning transition rejected",
				"earning_id", earningID.String(),
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, updated)
	}
}
