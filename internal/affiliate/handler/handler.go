// Package handler exposes the affiliate program over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"refward/internal/affiliate"
	"refward/internal/platform/metrics"
	"refward/internal/platform/middleware"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/httputil"
)

// Service defines the affiliate operations the handler depends on.
type Service interface {
	Enroll(ctx context.Context, userID id.UserID) (*affiliate.Profile, error)
	Get(ctx context.Context, userID id.UserID) (*affiliate.Profile, error)
	SetPayoutAccount(ctx context.Context, userID id.UserID, account string) error
	VerifyPayoutAccount(ctx context.Context, userID id.UserID, account string) (bool, error)
}

// Handler handles affiliate endpoints.
type Handler struct {
	logger       *slog.Logger
	affiliates   Service
	metrics      *metrics.Metrics
	jwtValidator middleware.TokenValidator
}

// New creates a new affiliate Handler.
func New(
	affiliates Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		affiliates:   affiliates,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the affiliate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(affiliateRouter chi.Router) {
		affiliateRouter.Use(middleware.Recovery(h.logger))
		affiliateRouter.Use(middleware.RequestID)
		affiliateRouter.Use(middleware.RequestTime)
		affiliateRouter.Use(middleware.Logger(h.logger))
		affiliateRouter.Use(middleware.Timeout(30 * time.Second))
		affiliateRouter.Use(middleware.ContentTypeJSON)
		affiliateRouter.Use(middleware.Latency(h.metrics))
		affiliateRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		affiliateRouter.Post("/affiliate/enroll", h.handleEnroll)
		affiliateRouter.Get("/affiliate/profile", h.handleProfile)
		affiliateRouter.Put("/affiliate/payout-account", h.handleSetPayoutAccount)
		affiliateRouter.Post("/affiliate/payout-account/verify", h.handleVerifyPayoutAccount)
	})
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.affiliates.Enroll(ctx, middleware.GetUserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.affiliates.Get(ctx, middleware.GetUserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

type payoutAccountRequest struct {
	Account string `json:"account"`
}

func (h *Handler) handleSetPayoutAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[payoutAccountRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Account = strings.TrimSpace(req.Account)
	if req.Account == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "payout account is required"))
		return
	}

	if err := h.affiliates.SetPayoutAccount(ctx, middleware.GetUserID(ctx), req.Account); err != nil {
		h.logger.WarnContext(ctx, "payout account update rejected",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyPayoutAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[payoutAccountRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	match, err := h.affiliates.VerifyPayoutAccount(ctx, middleware.GetUserID(ctx), req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"match": match})
}
