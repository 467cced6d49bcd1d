// Package handler exposes the referral-code registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"refward/internal/code"
	"refward/internal/platform/metrics"
	"refward/internal/platform/middleware"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/httputil"
)

// Service defines the code registry operations the handler depends on.
type Service interface {
	Issue(ctx context.Context, ownerID id.UserID, opts code.IssueOptions) (*code.ReferralCode, error)
	Get(ctx context.Context, codeID id.CodeID) (*code.ReferralCode, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*code.ReferralCode, error)
	Pause(ctx context.Context, codeID id.CodeID) (*code.ReferralCode, error)
	Resume(ctx context.Context, codeID id.CodeID) (*code.ReferralCode, error)
	Revoke(ctx context.Context, codeID id.CodeID) (*code.ReferralCode, error)
}

// Handler handles referral-code endpoints.
type Handler struct {
	logger       *slog.Logger
	codes        Service
	metrics      *metrics.Metrics
	jwtValidator middleware.TokenValidator
}

// New creates a new code Handler.
func New(
	codes Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		codes:        codes,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the code routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(codeRouter chi.Router) {
		codeRouter.Use(middleware.Recovery(h.logger))
		codeRouter.Use(middleware.RequestID)
		codeRouter.Use(middleware.RequestTime)
		codeRouter.Use(middleware.Logger(h.logger))
		codeRouter.Use(middleware.Timeout(30 * time.Second))
		codeRouter.Use(middleware.ContentTypeJSON)
		codeRouter.Use(middleware.Latency(h.metrics))
		codeRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		codeRouter.Post("/referral-codes", h.handleIssue)
		codeRouter.Get("/referral-codes", h.handleList)
		codeRouter.Get("/referral-codes/{codeID}", h.handleGet)
		codeRouter.Post("/referral-codes/{codeID}/pause", h.handlePause)
		codeRouter.Post("/referral-codes/{codeID}/resume", h.handleResume)
		codeRouter.Post("/referral-codes/{codeID}/revoke", h.handleRevoke)
	})
}

type issueRequest struct {
	Code        string     `json:"code,omitempty"`
	Kind        string     `json:"kind,omitempty"`
	RewardType  string     `json:"reward_type"`
	RewardValue int64      `json:"reward_value"`
	CampaignID  string     `json:"campaign_id,omitempty"`
	MaxUses     *int64     `json:"max_uses,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetUserID(ctx)

	req, err := httputil.Decode[issueRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	opts := code.IssueOptions{
		CustomCode:  req.Code,
		Kind:        code.Kind(req.Kind),
		RewardType:  code.RewardType(req.RewardType),
		RewardValue: req.RewardValue,
		MaxUses:     req.MaxUses,
		ExpiresAt:   req.ExpiresAt,
	}
	if opts.Kind == "" {
		opts.Kind = code.KindStandard
	}
	if req.CampaignID != "" {
		campaignID, err := id.ParseCampaignID(req.CampaignID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		opts.CampaignID = campaignID
	}

	issued, err := h.codes.Issue(ctx, ownerID, opts)
	if err != nil {
		h.logger.WarnContext(ctx, "code issue rejected",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issued)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	codes, err := h.codes.ListByOwner(ctx, middleware.GetUserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withOwnedCode(w, r, func(ctx context.Context, owned *code.ReferralCode) (*code.ReferralCode, error) {
		return owned, nil
	})
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.withOwnedCode(w, r, func(ctx context.Context, owned *code.ReferralCode) (*code.ReferralCode, error) {
		return h.codes.Pause(ctx, owned.ID)
	})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.withOwnedCode(w, r, func(ctx context.Context, owned *code.ReferralCode) (*code.ReferralCode, error) {
		return h.codes.Resume(ctx, owned.ID)
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.withOwnedCode(w, r, func(ctx context.Context, owned *code.ReferralCode) (*code.ReferralCode, error) {
		return h.codes.Revoke(ctx, owned.ID)
	})
}

// withOwnedCode resolves the {codeID} path parameter, enforces ownership and
// runs op. A code owned by someone else reads as not found so the endpoint
// does not leak which IDs exist.
func (h *Handler) withOwnedCode(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, owned *code.ReferralCode) (*code.ReferralCode, error)) {
	ctx := r.Context()

	codeID, err := id.ParseCodeID(chi.URLParam(r, "codeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	found, err := h.codes.Get(ctx, codeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if found.OwnerID != middleware.GetUserID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "code not found"))
		return
	}

	result, err := op(ctx, found)
	if err != nil {
		h.logger.WarnContext(ctx, "code operation rejected",
			"code_id", codeID.String(),
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
