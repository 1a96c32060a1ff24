package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/snapshot"
)

// OddsHandler serves read-only views over the merged odds snapshot. The data
// is whatever the feed has delivered so far; it may lag the upstream by one
// publish interval.
type OddsHandler struct {
	store  *snapshot.Store
	logger *slog.Logger
}

// NewOddsHandler creates an OddsHandler reading from the given store.
func NewOddsHandler(store *snapshot.Store, logger *slog.Logger) *OddsHandler {
	return &OddsHandler{store: store, logger: logHandler(logger, "odds")}
}

// ListOdds returns the merged odds view, optionally filtered by sport,
// bookmakers, and markets (comma-separated query parameters).
// GET /api/odds?sport=...&bookmakers=...&markets=...
func (h *OddsHandler) ListOdds(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, csvParam(r, "markets"))
}

// ListMoneyline returns the odds view restricted to the h2h market.
// GET /api/odds/moneyline
func (h *OddsHandler) ListMoneyline(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, map[string]bool{domain.MarketH2H: true})
}

// ListSpreads returns the odds view restricted to the spreads market.
// GET /api/odds/spreads
func (h *OddsHandler) ListSpreads(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, map[string]bool{domain.MarketSpreads: true})
}

// ListTotals returns the odds view restricted to the totals market.
// GET /api/odds/totals
func (h *OddsHandler) ListTotals(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, map[string]bool{domain.MarketTotals: true})
}

func (h *OddsHandler) serve(w http.ResponseWriter, r *http.Request, markets map[string]bool) {
	books := csvParam(r, "bookmakers")

	var view map[string][]domain.Event
	if sport := strings.TrimSpace(r.URL.Query().Get("sport")); sport != "" {
		events := h.store.OddsView(sport)
		if events == nil {
			events = []domain.Event{}
		}
		view = map[string][]domain.Event{sport: events}
	} else {
		view = h.store.AllOdds()
	}

	for sportKey, events := range view {
		for i := range events {
			filterEvent(&events[i], books, markets)
		}
		view[sportKey] = events
	}

	writeJSON(w, http.StatusOK, view)
}

// filterEvent trims an event's quotes and averages in place to the requested
// bookmakers and markets. Nil sets mean no filtering. The event is already a
// deep copy owned by the handler.
func filterEvent(ev *domain.Event, books, markets map[string]bool) {
	if books != nil {
		kept := ev.Quotes[:0]
		for _, q := range ev.Quotes {
			if books[strings.ToLower(q.BookKey)] {
				kept = append(kept, q)
			}
		}
		ev.Quotes = kept
	}

	if markets == nil {
		return
	}
	for i := range ev.Quotes {
		kept := ev.Quotes[i].Markets[:0]
		for _, m := range ev.Quotes[i].Markets {
			if markets[strings.ToLower(m.Key)] {
				kept = append(kept, m)
			}
		}
		ev.Quotes[i].Markets = kept
	}
	for key := range ev.Averages {
		if !markets[strings.ToLower(key)] {
			delete(ev.Averages, key)
		}
	}
}
