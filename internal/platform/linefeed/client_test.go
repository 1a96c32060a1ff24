package linefeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sportfeed/oddsgate/internal/domain"
)

type recordingHandler struct {
	odds      []string
	scores    int
	props     []string
	responses []string
}

func (h *recordingHandler) HandleOdds(ctx context.Context, event string, payload json.RawMessage) {
	h.odds = append(h.odds, event)
}

func (h *recordingHandler) HandleScores(ctx context.Context, payload json.RawMessage) {
	h.scores++
}

func (h *recordingHandler) HandleProps(ctx context.Context, bookKey string, payload json.RawMessage) {
	h.props = append(h.props, bookKey)
}

func (h *recordingHandler) HandleResponse(ctx context.Context, event string, payload json.RawMessage) {
	h.responses = append(h.responses, event)
}

var _ Handler = (*recordingHandler)(nil)

func newTestClient(cfg Config, h Handler) *Client {
	return New(cfg, h, nil, slog.New(slog.DiscardHandler))
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, maxReconnectDelay},
		{50, maxReconnectDelay},
	}

	for _, tt := range tests {
		if got := backoff(2*time.Second, tt.attempt); got != tt.want {
			t.Errorf("backoff(2s, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestSend_WithoutConnection(t *testing.T) {
	c := newTestClient(Config{}, &recordingHandler{})

	err := c.Send("request-player-stats", map[string]string{"requestId": "req-1"})
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		message string
		check   func(t *testing.T, h *recordingHandler)
	}{
		{
			name:    "primary odds event",
			message: `{"event": "odds-update", "data": {}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.odds) != 1 || h.odds[0] != "odds-update" {
					t.Errorf("odds = %v, want [odds-update]", h.odds)
				}
			},
		},
		{
			name:    "extra odds event",
			message: `{"event": "odds-refresh", "data": {}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.odds) != 1 || h.odds[0] != "odds-refresh" {
					t.Errorf("odds = %v, want [odds-refresh]", h.odds)
				}
			},
		},
		{
			name:    "scores event",
			message: `{"event": "scores-update", "data": []}`,
			check: func(t *testing.T, h *recordingHandler) {
				if h.scores != 1 {
					t.Errorf("scores = %d, want 1", h.scores)
				}
			},
		},
		{
			name:    "props for a subscribed book",
			message: `{"event": "fanduel-props-update", "data": {}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.props) != 1 || h.props[0] != "fanduel" {
					t.Errorf("props = %v, want [fanduel]", h.props)
				}
			},
		},
		{
			name:    "props for an unsubscribed book dropped",
			message: `{"event": "bovada-props-update", "data": {}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.props) != 0 {
					t.Errorf("props = %v, want none for an unsubscribed book", h.props)
				}
			},
		},
		{
			name:    "correlated response",
			message: `{"event": "player-stats-response", "data": {"requestId": "req-1"}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.responses) != 1 || h.responses[0] != "player-stats-response" {
					t.Errorf("responses = %v, want [player-stats-response]", h.responses)
				}
			},
		},
		{
			name:    "subscription confirmation is informational",
			message: `{"event": "subscription-confirmed", "data": {}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.odds)+h.scores+len(h.props)+len(h.responses) != 0 {
					t.Error("subscription-confirmed reached a handler")
				}
			},
		},
		{
			name:    "unknown event ignored",
			message: `{"event": "maintenance-notice", "data": {}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.odds)+h.scores+len(h.props)+len(h.responses) != 0 {
					t.Error("unknown event reached a handler")
				}
			},
		},
		{
			name:    "malformed frame dropped",
			message: `not json at all`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.odds)+h.scores+len(h.props)+len(h.responses) != 0 {
					t.Error("malformed frame reached a handler")
				}
			},
		},
		{
			name:    "frame without event name dropped",
			message: `{"data": {}}`,
			check: func(t *testing.T, h *recordingHandler) {
				if len(h.odds)+h.scores+len(h.props)+len(h.responses) != 0 {
					t.Error("nameless frame reached a handler")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			c := newTestClient(Config{
				ExtraOddsEvents: []string{"odds-refresh"},
				PropsBookmakers: []string{"fanduel"},
			}, h)

			c.dispatch(context.Background(), []byte(tt.message))
			tt.check(t, h)
		})
	}
}

func TestPropsBook(t *testing.T) {
	tests := []struct {
		event string
		book  string
		ok    bool
	}{
		{"fanduel-props-update", "fanduel", true},
		{"draftkings-props-update", "draftkings", true},
		{"-props-update", "", false},
		{"odds-update", "", false},
		{"scores-update", "", false},
	}

	for _, tt := range tests {
		book, ok := propsBook(tt.event)
		if book != tt.book || ok != tt.ok {
			t.Errorf("propsBook(%q) = %q, %v, want %q, %v", tt.event, book, ok, tt.book, tt.ok)
		}
	}
}

func TestIsResponse(t *testing.T) {
	tests := []struct {
		event string
		want  bool
	}{
		{"player-stats-response", true},
		{"odds-response", true},
		{"-response", false},
		{"response", false},
		{"odds-update", false},
	}

	for _, tt := range tests {
		if got := isResponse(tt.event); got != tt.want {
			t.Errorf("isResponse(%q) = %v, want %v", tt.event, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	if got := cfg.primaryEvent(); got != "odds-update" {
		t.Errorf("primaryEvent() = %q, want odds-update", got)
	}
	if got := cfg.reconnectDelay(); got != 2*time.Second {
		t.Errorf("reconnectDelay() = %v, want 2s", got)
	}
	if got := cfg.maxAttempts(); got != 10 {
		t.Errorf("maxAttempts() = %d, want 10", got)
	}
}

func TestStatus_InitiallyDisconnected(t *testing.T) {
	c := newTestClient(Config{}, &recordingHandler{})

	st := c.Status()
	if st.Connected || st.Fatal || st.Attempts != 0 {
		t.Errorf("Status() = %+v, want disconnected zero state", st)
	}
}
