package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/asfclaim/claimerd/internal/api/handler"
	apimw "github.com/asfclaim/claimerd/internal/api/middleware"
	"github.com/asfclaim/claimerd/internal/cycle"
	"github.com/asfclaim/claimerd/internal/dispatch"
)

// NewRouter wires the ops HTTP surface: liveness, Prometheus scrape,
// and the JSON status snapshot. The daemon takes no commands over HTTP;
// this surface is read-only observability.
func NewRouter(
	tracker *cycle.Tracker,
	q *dispatch.Queue,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	hh := handler.NewHealthHandler()
	sh := handler.NewStatusHandler(tracker, q)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/api/v1/status", sh.Status)

	return r
}
