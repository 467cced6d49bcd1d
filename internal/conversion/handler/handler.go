// Package handler exposes conversion settlement over HTTP. Conversions are
// delivered by internal backends (signup pipeline, commerce webhooks), so the
// route is guarded by the shared service token rather than user JWTs.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"refward/internal/conversion"
	"refward/internal/earnings"
	"refward/internal/platform/metrics"
	"refward/internal/platform/middleware"
	"refward/internal/tracking"
	domain "refward/pkg/domain"
	"refward/pkg/platform/httputil"
)

// Service defines the conversion operation the handler depends on.
type Service interface {
	Process(ctx context.Context, trackingID domain.TrackingID, in conversion.Input) (*conversion.Result, error)
}

// Handler handles conversion endpoints.
type Handler struct {
	logger       *slog.Logger
	conversions  Service
	metrics      *metrics.Metrics
	serviceToken string
}

// New creates a new conversion Handler.
func New(
	conversions Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	serviceToken string) *Handler {
	return &Handler{
		logger:       logger,
		conversions:  conversions,
		metrics:      metrics,
		serviceToken: serviceToken,
	}
}

// Register registers the conversion routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(conversionRouter chi.Router) {
		conversionRouter.Use(middleware.Recovery(h.logger))
		conversionRouter.Use(middleware.RequestID)
		conversionRouter.Use(middleware.RequestTime)
		conversionRouter.Use(middleware.Logger(h.logger))
		conversionRouter.Use(middleware.Timeout(30 * time.Second))
		conversionRouter.Use(middleware.ContentTypeJSON)
		conversionRouter.Use(middleware.Latency(h.metrics))
		conversionRouter.Use(middleware.RequireServiceToken(h.serviceToken, h.logger))
		conversionRouter.Post("/conversions", h.handleProcess)
	})
}

type processRequest struct {
	TrackingID string            `json:"tracking_id"`
	RefereeID  string            `json:"referee_id"`
	Type       string            `json:"type"`
	ValueCents int64             `json:"value_cents,omitempty"`
	Currency   string            `json:"currency,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type processResponse struct {
	TrackingID     string            `json:"tracking_id"`
	RelationshipID string            `json:"relationship_id,omitempty"`
	PrimaryEarning *earnings.Earning `json:"primary_earning,omitempty"`
	CascadeEarning *earnings.Earning `json:"cascade_earning,omitempty"`
	FraudScore     int               `json:"fraud_score"`
	Flagged        bool              `json:"flagged"`
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[processRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	trackingID, err := domain.ParseTrackingID(req.TrackingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	refereeID, err := domain.ParseUserID(req.RefereeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	in := conversion.Input{
		RefereeID: refereeID,
		Type:      tracking.ConversionType(req.Type),
		Metadata:  req.Metadata,
	}
	if req.ValueCents != 0 {
		in.Value = domain.NewMoney(req.Currency, req.ValueCents)
	}

	result, err := h.conversions.Process(ctx, trackingID, in)
	if err != nil {
		h.logger.WarnContext(ctx, "conversion not settled",
			"tracking_id", trackingID.String(),
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := processResponse{
		TrackingID:     result.Tracking.ID.String(),
		PrimaryEarning: result.PrimaryEarning,
		CascadeEarning: result.CascadeEarning,
		FraudScore:     result.FraudScore,
		Flagged:        result.Flagged,
	}
	if result.Relationship != nil {
		resp.RelationshipID = result.Relationship.ID.String()
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}
