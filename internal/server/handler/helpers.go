package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/server/middleware"
)

// entitlementFrom returns the entitlement the auth middleware resolved for
// this request.
func entitlementFrom(r *http.Request) domain.Entitlement {
	return middleware.EntitlementFrom(r.Context())
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// csvParam parses a comma-separated query parameter into a set. An absent or
// empty parameter returns nil, meaning no filtering.
func csvParam(r *http.Request, name string) map[string]bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(strings.ToLower(part)); v != "" {
			set[v] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
