package handler

import (
	"net/http"

	"github.com/asfclaim/claimerd/internal/cycle"
	"github.com/asfclaim/claimerd/internal/dispatch"
)

// StatusHandler serves a human-readable JSON snapshot of the daemon:
// last cycle outcome and the dispatch queue backlog. Raw Prometheus
// metrics are available separately at /metrics via promhttp.
type StatusHandler struct {
	tracker *cycle.Tracker
	q       *dispatch.Queue
}

func NewStatusHandler(tracker *cycle.Tracker, q *dispatch.Queue) *StatusHandler {
	return &StatusHandler{tracker: tracker, q: q}
}

// Status handles GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"cycle":                snap,
		"dispatch_queue_depth": h.q.Depth(),
	})
}
