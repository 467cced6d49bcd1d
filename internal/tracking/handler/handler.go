// Package handler exposes click tracking over HTTP. The click route is
// public: referees arrive unauthenticated by following a shared link.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"refward/internal/platform/metrics"
	"refward/internal/platform/middleware"
	"refward/internal/tracking"
	id "refward/pkg/domain"
	"refward/pkg/platform/httputil"
	"refward/pkg/requestcontext"
)

// Service defines the tracking operations the handler depends on.
type Service interface {
	Track(ctx context.Context, codeString string, clickCtx tracking.ClickContext) (*tracking.ReferralTracking, error)
	Get(ctx context.Context, trackingID id.TrackingID) (*tracking.ReferralTracking, error)
	ShareLink(ctx context.Context, codeString string, params tracking.LinkParams) (string, error)
}

// Handler handles click-tracking endpoints.
type Handler struct {
	logger       *slog.Logger
	tracking     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.TokenValidator
}

// New creates a new tracking Handler.
func New(
	tracking Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		tracking:     tracking,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the tracking routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(middleware.Recovery(h.logger))
		public.Use(middleware.RequestID)
		public.Use(middleware.RequestTime)
		public.Use(middleware.ClientMetadata)
		public.Use(middleware.Logger(h.logger))
		public.Use(middleware.Timeout(10 * time.Second))
		public.Use(middleware.ContentTypeJSON)
		public.Use(middleware.Latency(h.metrics))
		public.Post("/r/{code}", h.handleClick)
	})

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Recovery(h.logger))
		authed.Use(middleware.RequestID)
		authed.Use(middleware.RequestTime)
		authed.Use(middleware.Logger(h.logger))
		authed.Use(middleware.Timeout(30 * time.Second))
		authed.Use(middleware.ContentTypeJSON)
		authed.Use(middleware.Latency(h.metrics))
		authed.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		authed.Get("/tracking/{trackingID}", h.handleGet)
		authed.Get("/share-links/{code}", h.handleShareLink)
	})
}

type clickRequest struct {
	SourceURL   string `json:"source_url,omitempty"`
	LandingURL  string `json:"landing_url,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Geo         string `json:"geo,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

type clickResponse struct {
	TrackingID  string `json:"tracking_id"`
	CodeID      string `json:"code_id"`
	Attribution string `json:"attribution"`
}

// handleClick records a click against the code in the path. The request body
// is optional; an empty body tracks the click on server-observed metadata
// alone.
func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req clickRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoded, err := httputil.Decode[clickRequest](r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		req = decoded
	}

	record, err := h.tracking.Track(ctx, chi.URLParam(r, "code"), tracking.ClickContext{
		SourceURL:   req.SourceURL,
		LandingURL:  req.LandingURL,
		IP:          requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		Fingerprint: req.Fingerprint,
		Geo:         req.Geo,
		SessionID:   req.SessionID,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "click rejected",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, clickResponse{
		TrackingID:  record.ID.String(),
		CodeID:      record.CodeID.String(),
		Attribution: string(record.Attribution),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trackingID, err := id.ParseTrackingID(chi.URLParam(r, "trackingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.tracking.Get(ctx, trackingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleShareLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	link, err := h.tracking.ShareLink(ctx, chi.URLParam(r, "code"), tracking.LinkParams{
		Campaign: query.Get("campaign"),
		Source:   query.Get("source"),
		Medium:   query.Get("medium"),
		Content:  query.Get("content"),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"share_link": link})
}
