package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	logger *slog.Logger
	status func() domain.FeedStatus
}

// NewHealthHandler creates a HealthHandler. status reports the upstream feed
// connection state and may be nil.
func NewHealthHandler(logger *slog.Logger, status func() domain.FeedStatus) *HealthHandler {
	return &HealthHandler{logger: logger, status: status}
}

// HealthCheck responds with the process status and the upstream feed state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.status != nil {
		fs := h.status()
		body["upstream"] = map[string]any{
			"connected": fs.Connected,
			"attempts":  fs.Attempts,
			"fatal":     fs.Fatal,
		}
		if fs.Fatal {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}
