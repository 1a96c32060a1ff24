package normalize

import (
	"encoding/json"
	"testing"

	"github.com/sportfeed/oddsgate/internal/domain"
)

func fp(v float64) *float64 { return &v }

func TestNormalize_KeyedBySport(t *testing.T) {
	payload := []byte(`{
		"basketball_nba": [
			{"id": "ev1", "home_team": "Lakers", "away_team": "Celtics",
			 "bookmakers": [{"key": "pinnacle", "title": "Pinnacle", "markets": []}]}
		]
	}`)

	batch, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if batch.Passthrough() {
		t.Fatal("Normalize() = passthrough, want keyed batch")
	}

	events := batch.Sports["basketball_nba"]
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.EventID != "ev1" || ev.SportKey != "basketball_nba" {
		t.Errorf("event = %q/%q, want ev1/basketball_nba", ev.EventID, ev.SportKey)
	}
	if len(ev.Quotes) != 1 || ev.Quotes[0].BookKey != "pinnacle" {
		t.Errorf("quotes = %+v, want one pinnacle quote", ev.Quotes)
	}
}

func TestNormalize_FlatArrayMapsLeagues(t *testing.T) {
	payload := []byte(`[
		{"eventId": "a", "league": "NBA", "homeTeam": "Suns", "awayTeam": "Heat"},
		{"eventId": "b", "sport": "NFL", "home": "Chiefs", "away": "Bills"},
		{"eventId": "c", "league": "CURLING", "homeTeam": "X", "awayTeam": "Y"}
	]`)

	batch, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if got := len(batch.Sports["basketball_nba"]); got != 1 {
		t.Errorf("basketball_nba events = %d, want 1", got)
	}
	if got := len(batch.Sports["americanfootball_nfl"]); got != 1 {
		t.Errorf("americanfootball_nfl events = %d, want 1", got)
	}
	// Unmapped leagues are dropped, not errors.
	total := 0
	for _, evs := range batch.Sports {
		total += len(evs)
	}
	if total != 2 {
		t.Errorf("total events = %d, want 2 (unmapped league dropped)", total)
	}
}

func TestNormalize_FlatArrayKeepsCanonicalTags(t *testing.T) {
	payload := []byte(`[{"id": "x", "sport_key": "icehockey_nhl", "home_team": "A", "away_team": "B"}]`)

	batch, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got := len(batch.Sports["icehockey_nhl"]); got != 1 {
		t.Errorf("icehockey_nhl events = %d, want 1", got)
	}
}

func TestNormalize_UnrecognisedObjectPassesThrough(t *testing.T) {
	payload := []byte(`{"notice": "maintenance window at 04:00"}`)

	batch, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !batch.Passthrough() {
		t.Fatal("Normalize() consumed an unrecognised object, want passthrough")
	}
	if string(batch.Raw) != string(payload) {
		t.Errorf("Raw = %s, want original payload", batch.Raw)
	}
}

func TestNormalize_RejectsScalars(t *testing.T) {
	if _, err := Normalize(json.RawMessage(`"hello"`)); err == nil {
		t.Error("Normalize(scalar) error = nil, want error")
	}
}

func TestNormalize_FieldAliases(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		home    string
		away    string
		id      string
	}{
		{
			name:    "snake case",
			payload: `[{"event_id": "s", "sport_key": "basketball_nba", "home_team": "H", "away_team": "A"}]`,
			home:    "H", away: "A", id: "s",
		},
		{
			name:    "camel case",
			payload: `[{"eventId": "c", "sportKey": "basketball_nba", "homeTeam": "H", "awayTeam": "A"}]`,
			home:    "H", away: "A", id: "c",
		},
		{
			name:    "short names with sites",
			payload: `[{"id": "m", "sport": "basketball_nba", "home": "H", "away": "A", "sites": [{"site_key": "bovada", "site_nice": "Bovada"}]}]`,
			home:    "H", away: "A", id: "m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Normalize([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			events := batch.Sports["basketball_nba"]
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.EventID != tt.id || ev.HomeTeam != tt.home || ev.AwayTeam != tt.away {
				t.Errorf("event = %q %q/%q, want %q %q/%q",
					ev.EventID, ev.HomeTeam, ev.AwayTeam, tt.id, tt.home, tt.away)
			}
		})
	}
}

func TestNormalize_SitesAliasForBookmakers(t *testing.T) {
	payload := []byte(`[{"id": "e", "sport_key": "basketball_nba", "home_team": "H", "away_team": "A",
		"sites": [{"site_key": "bovada", "site_nice": "Bovada", "markets": []}]}]`)

	batch, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	ev := batch.Sports["basketball_nba"][0]
	if len(ev.Quotes) != 1 {
		t.Fatalf("got %d quotes, want 1", len(ev.Quotes))
	}
	if ev.Quotes[0].BookKey != "bovada" || ev.Quotes[0].Title != "Bovada" {
		t.Errorf("quote = %q/%q, want bovada/Bovada", ev.Quotes[0].BookKey, ev.Quotes[0].Title)
	}
}

func TestComputeAverages(t *testing.T) {
	ev := domain.Event{
		Quotes: []domain.BookmakerQuote{
			{BookKey: "pinnacle", Markets: []domain.Market{{
				Key: domain.MarketSpreads,
				Outcomes: []domain.Outcome{
					{Name: "Lakers", Point: fp(-3), Price: fp(-110)},
					{Name: "Celtics", Point: fp(3), Price: fp(-110)},
				},
			}}},
			{BookKey: "fanduel", Markets: []domain.Market{{
				Key: domain.MarketSpreads,
				Outcomes: []domain.Outcome{
					{Name: "Lakers", Point: fp(-3.5), Price: fp(-108)},
					{Name: "Celtics", Point: fp(3.5), Price: fp(-112)},
				},
			}}},
			{BookKey: "draftkings", Markets: []domain.Market{{
				Key: domain.MarketSpreads,
				Outcomes: []domain.Outcome{
					{Name: "Lakers", Point: fp(-4), Price: fp(-105)},
					{Name: "Celtics", Point: fp(4), Price: fp(-115)},
				},
			}}},
		},
	}

	ComputeAverages(&ev)

	spreads := ev.Averages[domain.MarketSpreads]
	if len(spreads) != 2 {
		t.Fatalf("got %d averaged outcomes, want 2", len(spreads))
	}
	// Mean of {-3, -3.5, -4} is -3.5; rounds to itself.
	if spreads[0].Name != "Lakers" || spreads[0].AvgPoint == nil || *spreads[0].AvgPoint != -3.5 {
		t.Errorf("Lakers avg point = %+v, want -3.5", spreads[0].AvgPoint)
	}
	// Mean of {-110, -108, -105} is -107.67; rounds to -108.
	if spreads[0].AvgPrice == nil || *spreads[0].AvgPrice != -108 {
		t.Errorf("Lakers avg price = %+v, want -108", spreads[0].AvgPrice)
	}
	if spreads[1].Name != "Celtics" || spreads[1].AvgPoint == nil || *spreads[1].AvgPoint != 3.5 {
		t.Errorf("Celtics avg point = %+v, want 3.5", spreads[1].AvgPoint)
	}
}

func TestComputeAverages_PointRoundsToHalf(t *testing.T) {
	tests := []struct {
		points []float64
		want   float64
	}{
		{[]float64{-3, -3.5, -4}, -3.5},
		{[]float64{7, 7.5}, 7.5},
		{[]float64{2.1, 2.1, 2.1}, 2},
		{[]float64{10.3}, 10.5},
	}

	for _, tt := range tests {
		quotes := make([]domain.BookmakerQuote, 0, len(tt.points))
		for i, p := range tt.points {
			point := p
			quotes = append(quotes, domain.BookmakerQuote{
				BookKey: string(rune('a' + i)),
				Markets: []domain.Market{{
					Key:      domain.MarketTotals,
					Outcomes: []domain.Outcome{{Name: "Over", Point: &point}},
				}},
			})
		}
		ev := domain.Event{Quotes: quotes}
		ComputeAverages(&ev)

		got := ev.Averages[domain.MarketTotals][0].AvgPoint
		if got == nil || *got != tt.want {
			t.Errorf("avg point of %v = %v, want %v", tt.points, got, tt.want)
		}
	}
}

func TestComputeAverages_NoContributorsLeavesNil(t *testing.T) {
	// Outcomes with names but no numeric fields must yield nil averages,
	// never zero values.
	ev := domain.Event{
		Quotes: []domain.BookmakerQuote{
			{BookKey: "pinnacle", Markets: []domain.Market{{
				Key:      domain.MarketH2H,
				Outcomes: []domain.Outcome{{Name: "Lakers"}},
			}}},
		},
	}

	ComputeAverages(&ev)

	h2h := ev.Averages[domain.MarketH2H]
	if len(h2h) != 1 {
		t.Fatalf("got %d averaged outcomes, want 1", len(h2h))
	}
	if h2h[0].AvgPoint != nil || h2h[0].AvgPrice != nil {
		t.Errorf("averages = %+v/%+v, want nil/nil", h2h[0].AvgPoint, h2h[0].AvgPrice)
	}
}

func TestComputeAverages_NoQuotesClearsAverages(t *testing.T) {
	ev := domain.Event{
		Averages: map[string][]domain.AverageOutcome{
			domain.MarketH2H: {{Name: "stale"}},
		},
	}

	ComputeAverages(&ev)

	if ev.Averages != nil {
		t.Errorf("Averages = %+v, want nil", ev.Averages)
	}
}

func TestCanonicalSportKey(t *testing.T) {
	tests := []struct {
		external string
		want     string
		ok       bool
	}{
		{"NBA", "basketball_nba", true},
		{"NFL", "americanfootball_nfl", true},
		{"SHUFFLEBOARD", "", false},
	}

	for _, tt := range tests {
		got, ok := CanonicalSportKey(tt.external)
		if ok != tt.ok || got != tt.want {
			t.Errorf("CanonicalSportKey(%q) = %q, %v, want %q, %v", tt.external, got, ok, tt.want, tt.ok)
		}
	}
}
