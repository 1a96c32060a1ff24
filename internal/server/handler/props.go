package handler

import (
	"log/slog"
	"net/http"

	"github.com/sportfeed/oddsgate/internal/snapshot"
)

// PropsHandler serves per-bookmaker player props from the snapshot store.
// Props require the props capability on the caller's entitlement; the check
// happens here because REST auth only establishes identity.
type PropsHandler struct {
	store  *snapshot.Store
	logger *slog.Logger
}

// NewPropsHandler creates a PropsHandler reading from the given store.
func NewPropsHandler(store *snapshot.Store, logger *slog.Logger) *PropsHandler {
	return &PropsHandler{store: store, logger: logHandler(logger, "props")}
}

// ListBooks returns the bookmaker keys that currently hold props data.
// GET /api/props
func (h *PropsHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	if !entitlementFrom(r).CanProps {
		writeError(w, http.StatusForbidden, "props not included in your plan")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmakers": h.store.PropBooks()})
}

// GetBookProps returns one bookmaker's props keyed by sport.
// GET /api/props/{book}
func (h *PropsHandler) GetBookProps(w http.ResponseWriter, r *http.Request) {
	if !entitlementFrom(r).CanProps {
		writeError(w, http.StatusForbidden, "props not included in your plan")
		return
	}

	book := pathParam(r, "book")
	props := h.store.PropsView(book)
	if props == nil {
		writeError(w, http.StatusNotFound, "no props for bookmaker "+book)
		return
	}
	writeJSON(w, http.StatusOK, props)
}
