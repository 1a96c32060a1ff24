package linefeed

import (
	"context"
	"encoding/json"
	"strings"
)

// Well-known upstream event names. The primary odds event name is
// configurable; the rest are fixed by the feed contract.
const (
	EventScores      = "scores-update"
	EventSubscribed  = "subscription-confirmed"
	propsEventSuffix = "-props-update"
	responseSuffix   = "-response"
	defaultOddsEvent = "odds-update"
)

// envelope is the wire frame used in both directions:
// {"event": "...", "data": ...}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// authData is the message-level credential sent right after connect, for
// upstream implementations that ignore the query parameter and header.
type authData struct {
	APIKey string `json:"apiKey"`
}

// subscribeData is the payload of the subscribe message issued on connect.
type subscribeData struct {
	Sports     []string `json:"sports"`
	Bookmakers []string `json:"bookmakers"`
}

// Handler receives every classified inbound message. Implementations must not
// block; a slow handler stalls the read loop.
type Handler interface {
	// HandleOdds receives the primary odds event and any configured extra
	// odds event names.
	HandleOdds(ctx context.Context, event string, payload json.RawMessage)

	// HandleScores receives scores-update payloads.
	HandleScores(ctx context.Context, payload json.RawMessage)

	// HandleProps receives one bookmaker's props payload.
	HandleProps(ctx context.Context, bookKey string, payload json.RawMessage)

	// HandleResponse receives correlated <query>-response payloads.
	HandleResponse(ctx context.Context, event string, payload json.RawMessage)
}

// propsBook extracts the bookmaker key from a "<book>-props-update" event
// name. ok is false for any other event.
func propsBook(event string) (string, bool) {
	if !strings.HasSuffix(event, propsEventSuffix) {
		return "", false
	}
	book := strings.TrimSuffix(event, propsEventSuffix)
	return book, book != ""
}
