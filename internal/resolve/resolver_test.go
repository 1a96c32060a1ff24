package resolve

import (
	"testing"

	"github.com/sportfeed/oddsgate/internal/domain"
)

func testEvents() []domain.Event {
	return []domain.Event{
		{EventID: "ev-lakers", HomeTeam: "Los Angeles Lakers", AwayTeam: "Boston Celtics"},
		{EventID: "", HomeTeam: "St John's Red Storm", AwayTeam: "UConn Huskies"},
		{EventID: "ev-chiefs", HomeTeam: "Kansas City Chiefs", AwayTeam: "Buffalo Bills"},
	}
}

func TestResolve_ExactEventID(t *testing.T) {
	r := New(DefaultAliases)

	update := domain.ScoreUpdate{
		EventID:  "ev-chiefs",
		HomeTeam: "Totally Different",
		AwayTeam: "Names Entirely",
	}
	m, ok := r.Resolve(update, testEvents())
	if !ok {
		t.Fatal("Resolve() = no match, want exact id match")
	}
	if m.Index != 2 || m.Flipped {
		t.Errorf("match = %+v, want index 2 unflipped", m)
	}
}

func TestResolve_AliasPairKey(t *testing.T) {
	r := New(DefaultAliases)

	// Score feed uses short school names; the odds event carries mascots.
	// Both sides resolve through the alias table to the same pair key.
	update := domain.ScoreUpdate{
		HomeTeam: "Saint John's",
		AwayTeam: "Connecticut",
	}
	m, ok := r.Resolve(update, testEvents())
	if !ok {
		t.Fatal("Resolve() = no match, want alias pair match")
	}
	if m.Index != 1 || m.Flipped {
		t.Errorf("match = %+v, want index 1 unflipped", m)
	}
}

func TestResolve_FuzzyBothSides(t *testing.T) {
	r := New(nil)

	events := []domain.Event{
		{HomeTeam: "Milwaukee Bucks", AwayTeam: "Denver Nuggets"},
	}
	update := domain.ScoreUpdate{
		HomeTeam: "Milwaukee",
		AwayTeam: "Denver",
	}
	m, ok := r.Resolve(update, events)
	if !ok {
		t.Fatal("Resolve() = no match, want fuzzy both-sides match")
	}
	if m.Index != 0 || m.Flipped {
		t.Errorf("match = %+v, want index 0 unflipped", m)
	}
}

func TestResolve_FuzzySwappedOrientationFlips(t *testing.T) {
	r := New(nil)

	events := []domain.Event{
		{HomeTeam: "Milwaukee Bucks", AwayTeam: "Denver Nuggets"},
	}
	// Score feed reports the sides the other way around.
	update := domain.ScoreUpdate{
		HomeTeam: "Denver",
		AwayTeam: "Milwaukee",
	}
	m, ok := r.Resolve(update, events)
	if !ok {
		t.Fatal("Resolve() = no match, want swapped fuzzy match")
	}
	if !m.Flipped {
		t.Error("match.Flipped = false, want true for swapped orientation")
	}
}

func TestResolve_SingleSideMatchRejected(t *testing.T) {
	r := New(nil)

	events := []domain.Event{
		{HomeTeam: "Milwaukee Bucks", AwayTeam: "Denver Nuggets"},
	}
	update := domain.ScoreUpdate{
		HomeTeam: "Milwaukee",
		AwayTeam: "Phoenix",
	}
	if _, ok := r.Resolve(update, events); ok {
		t.Error("Resolve() matched on one side only, want rejection")
	}
}

func TestResolve_EmptyTeamNamesNeverMatch(t *testing.T) {
	r := New(nil)

	events := []domain.Event{{HomeTeam: "", AwayTeam: ""}}
	update := domain.ScoreUpdate{HomeTeam: "", AwayTeam: ""}
	if _, ok := r.Resolve(update, events); ok {
		t.Error("Resolve() matched empty names, want rejection")
	}
}

func TestResolve_FirstMatchWinsIsDeterministic(t *testing.T) {
	r := New(nil)

	// Two events both fuzzy-match; the earlier one must win every time.
	events := []domain.Event{
		{HomeTeam: "Miami Heat", AwayTeam: "Orlando Magic"},
		{HomeTeam: "Miami Heat Reserves", AwayTeam: "Orlando Magic Reserves"},
	}
	update := domain.ScoreUpdate{HomeTeam: "Miami", AwayTeam: "Orlando"}

	for i := 0; i < 10; i++ {
		m, ok := r.Resolve(update, events)
		if !ok || m.Index != 0 {
			t.Fatalf("iteration %d: match = %+v ok=%v, want stable index 0", i, m, ok)
		}
	}
}

func TestTeamKey(t *testing.T) {
	r := New(DefaultAliases)

	tests := []struct {
		name string
		want string
	}{
		{"St John's Red Storm", "stjohns"},
		{"UCONN HUSKIES", "uconn"},
		{"Kansas City", "kansascitychiefs"},
		{"Denver Nuggets", "denvernuggets"},
	}

	for _, tt := range tests {
		if got := r.TeamKey(tt.name); got != tt.want {
			t.Errorf("TeamKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPairKey(t *testing.T) {
	r := New(nil)
	if got := r.PairKey("Boston Celtics", "Los Angeles Lakers"); got != "bostonceltics@losangeleslakers" {
		t.Errorf("PairKey() = %q", got)
	}
}
