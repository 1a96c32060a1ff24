package domain

import "time"

// ScoreSnapshot is the live score state for one event. It is ephemeral:
// each new score message for the same resolved event overwrites the previous
// snapshot wholesale, never field-by-field.
type ScoreSnapshot struct {
	HomeScore    int       `json:"home_score"`
	AwayScore    int       `json:"away_score"`
	Period       string    `json:"period,omitempty"`
	Clock        string    `json:"clock,omitempty"`
	StatusDetail string    `json:"status_detail,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ScoreUpdate is one entry of an inbound scores message: team identifiers as
// the score source spells them, plus the snapshot itself. EventID is set only
// when the source happens to share ids with the odds feed.
type ScoreUpdate struct {
	EventID  string        `json:"id,omitempty"`
	SportKey string        `json:"sport_key"`
	HomeTeam string        `json:"home_team"`
	AwayTeam string        `json:"away_team"`
	Score    ScoreSnapshot `json:"score"`
}

// Flipped returns the update with home and away sides swapped. Used when the
// resolver matches a score to an odds event with the sides reversed.
func (u ScoreUpdate) Flipped() ScoreUpdate {
	out := u
	out.HomeTeam, out.AwayTeam = u.AwayTeam, u.HomeTeam
	out.Score.HomeScore, out.Score.AwayScore = u.Score.AwayScore, u.Score.HomeScore
	return out
}
