package domain

// PropEntry is one player/category proposition quoted by one bookmaker for
// one event.
type PropEntry struct {
	PlayerName string   `json:"player_name"`
	Category   string   `json:"category"`
	Line       *float64 `json:"line,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	BookKey    string   `json:"book_key"`
}

// PropEvent groups a bookmaker's prop entries under one event. Props are
// stored verbatim per book; cross-book merging happens at the read boundary,
// not in the store.
type PropEvent struct {
	EventID  string      `json:"id,omitempty"`
	SportKey string      `json:"sport_key"`
	HomeTeam string      `json:"home_team,omitempty"`
	AwayTeam string      `json:"away_team,omitempty"`
	Props    []PropEntry `json:"props"`
}
