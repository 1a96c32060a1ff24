// Package domain defines the canonical schema shared by every layer of the
// gateway: events, bookmaker quotes, live scores, player props, consumer
// entitlements, and the interfaces implemented by the cache and store
// sub-packages.
package domain

import "time"

// Market keys used by bookmakers. These match the upstream vocabulary.
const (
	MarketH2H     = "h2h"
	MarketSpreads = "spreads"
	MarketTotals  = "totals"
)

// Outcome is one priced side of a market. Point is nil for markets without a
// line (h2h).
type Outcome struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
	Point *float64 `json:"point,omitempty"`
}

// Market is one bookmaker's offering for a single market key.
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// BookmakerQuote is one bookmaker's full set of markets for one event. A quote
// for a given book is always replaced wholesale by a newer quote for the same
// book; quotes from other books are never dropped by an update that omits
// them.
type BookmakerQuote struct {
	BookKey    string    `json:"key"`
	Title      string    `json:"title,omitempty"`
	LastUpdate time.Time `json:"last_update,omitempty"`
	Markets    []Market  `json:"markets"`
}

// Market returns the quote's market with the given key, or nil.
func (q *BookmakerQuote) Market(key string) *Market {
	for i := range q.Markets {
		if q.Markets[i].Key == key {
			return &q.Markets[i]
		}
	}
	return nil
}

// AverageOutcome holds cross-book averages for one outcome name within a
// market. A side with zero contributing quotes is represented by nil fields,
// never zero.
type AverageOutcome struct {
	Name     string   `json:"name"`
	AvgPoint *float64 `json:"avg_point,omitempty"`
	AvgPrice *float64 `json:"avg_price,omitempty"`
}

// Event is one scheduled contest with all cached bookmaker quotes, derived
// averages, and (when resolved) the latest live score.
type Event struct {
	EventID   string           `json:"id,omitempty"`
	SportKey  string           `json:"sport_key"`
	HomeTeam  string           `json:"home_team"`
	AwayTeam  string           `json:"away_team"`
	StartTime time.Time        `json:"commence_time,omitempty"`
	Quotes    []BookmakerQuote `json:"bookmakers"`

	// Averages is keyed by market key (h2h, spreads, totals).
	Averages map[string][]AverageOutcome `json:"averages,omitempty"`

	LiveScore *ScoreSnapshot `json:"score,omitempty"`
}

// Quote returns the event's quote for the given book key, or nil.
func (e *Event) Quote(bookKey string) *BookmakerQuote {
	for i := range e.Quotes {
		if e.Quotes[i].BookKey == bookKey {
			return &e.Quotes[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the event so readers can never observe a
// half-merged snapshot. Pointer-valued prices and points are duplicated, not
// aliased; writing through a clone must never reach the original.
func (e Event) Clone() Event {
	out := e
	if e.Quotes != nil {
		out.Quotes = make([]BookmakerQuote, len(e.Quotes))
		for i, q := range e.Quotes {
			cq := q
			cq.Markets = make([]Market, len(q.Markets))
			for j, m := range q.Markets {
				cm := m
				cm.Outcomes = make([]Outcome, len(m.Outcomes))
				for k, o := range m.Outcomes {
					co := o
					co.Price = copyFloat(o.Price)
					co.Point = copyFloat(o.Point)
					cm.Outcomes[k] = co
				}
				cq.Markets[j] = cm
			}
			out.Quotes[i] = cq
		}
	}
	if e.Averages != nil {
		out.Averages = make(map[string][]AverageOutcome, len(e.Averages))
		for k, v := range e.Averages {
			avgs := make([]AverageOutcome, len(v))
			for i, a := range v {
				ca := a
				ca.AvgPoint = copyFloat(a.AvgPoint)
				ca.AvgPrice = copyFloat(a.AvgPrice)
				avgs[i] = ca
			}
			out.Averages[k] = avgs
		}
	}
	if e.LiveScore != nil {
		sc := *e.LiveScore
		out.LiveScore = &sc
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
