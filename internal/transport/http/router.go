// Package httptransport assembles the engine's HTTP surface: every feature
// handler, the health probe and the Prometheus scrape endpoint.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	affiliatehandler "refward/internal/affiliate/handler"
	analyticshandler "refward/internal/analytics/handler"
	codehandler "refward/internal/code/handler"
	conversionhandler "refward/internal/conversion/handler"
	earningshandler "refward/internal/earnings/handler"
	trackinghandler "refward/internal/tracking/handler"
)

// Registrar is anything that can mount its routes on a chi router. Each
// feature handler implements it.
type Registrar interface {
	Register(r chi.Router)
}

// Handlers collects the feature handlers the router mounts. Nil entries are
// skipped, which lets tests and partial deployments wire only what they need.
type Handlers struct {
	Codes       *codehandler.Handler
	Tracking    *trackinghandler.Handler
	Conversions *conversionhandler.Handler
	Earnings    *earningshandler.Handler
	Affiliates  *affiliatehandler.Handler
	Analytics   *analyticshandler.Handler
}

// NewRouter wires all endpoints onto one router. Feature sub-routers carry
// their own middleware chains; only the operational endpoints live here.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, registrar := range []Registrar{
		h.Codes, h.Tracking, h.Conversions, h.Earnings, h.Affiliates, h.Analytics,
	} {
		if registrar != nil && !isNil(registrar) {
			registrar.Register(r)
		}
	}
	return r
}

// isNil guards against typed-nil handlers slipping through the interface.
func isNil(reg Registrar) bool {
	switch v := reg.(type) {
	case *codehandler.Handler:
		return v == nil
	case *trackinghandler.Handler:
		return v == nil
	case *conversionhandler.Handler:
		return v == nil
	case *earningshandler.Handler:
		return v == nil
	case *affiliatehandler.Handler:
		return v == nil
	case *analyticshandler.Handler:
		return v == nil
	default:
		return reg == nil
	}
}
