package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/snapshot"
)

// ScoresHandler serves the live-scores view of the snapshot store.
type ScoresHandler struct {
	store  *snapshot.Store
	logger *slog.Logger
}

// NewScoresHandler creates a ScoresHandler reading from the given store.
func NewScoresHandler(store *snapshot.Store, logger *slog.Logger) *ScoresHandler {
	return &ScoresHandler{store: store, logger: logHandler(logger, "scores")}
}

// ListScores returns live scores keyed by sport and event identity,
// optionally restricted to one sport.
// GET /api/scores?sport=...
func (h *ScoresHandler) ListScores(w http.ResponseWriter, r *http.Request) {
	if sport := strings.TrimSpace(r.URL.Query().Get("sport")); sport != "" {
		scores := h.store.ScoresView(sport)
		if scores == nil {
			scores = map[string]domain.ScoreSnapshot{}
		}
		writeJSON(w, http.StatusOK, map[string]map[string]domain.ScoreSnapshot{sport: scores})
		return
	}
	writeJSON(w, http.StatusOK, h.store.AllScores())
}
