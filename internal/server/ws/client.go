package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// client is a single downstream WebSocket consumer.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id  string
	ent domain.Entitlement

	// ctx covers the connection's lifetime; cancelling it stops every
	// watch goroutine.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]context.CancelFunc
}

// readPump reads consumer messages and dispatches them. It exits on any read
// error, which unregisters the consumer.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("consumer_id", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			c.sendError("", "malformed message")
			continue
		}
		c.handleMessage(env)
	}
}

// handleMessage dispatches one consumer message. Replay queries are served
// from the local snapshot store; anything else under request- goes through
// the correlator as an on-demand upstream query.
func (c *client) handleMessage(env envelope) {
	switch {
	case strings.HasPrefix(env.Event, "watch-"):
		c.startWatch(strings.TrimPrefix(env.Event, "watch-"))
	case strings.HasPrefix(env.Event, "unwatch-"):
		c.stopWatch(strings.TrimPrefix(env.Event, "unwatch-"))
	case strings.HasPrefix(env.Event, "request-"):
		query := strings.TrimPrefix(env.Event, "request-")
		if c.isReplayQuery(query) {
			c.replay(query)
			return
		}
		c.submitOnDemand(query, env.Data)
	default:
		c.sendError(env.Event, "unknown event")
	}
}

// isReplayQuery reports whether a query is served from the snapshot store.
func (c *client) isReplayQuery(query string) bool {
	return query == "odds" || query == "scores" || strings.HasSuffix(query, "-props")
}

// replay sends the latest stored snapshot for a query to this consumer.
func (c *client) replay(query string) {
	switch {
	case query == "odds":
		c.sendEvent(domain.ChannelOdds, c.hub.store.AllOdds())
	case query == "scores":
		c.sendEvent(domain.ChannelScores, c.hub.store.AllScores())
	case strings.HasSuffix(query, "-props"):
		if !c.ent.CanProps {
			c.sendError("request-"+query, "props not included in your plan")
			return
		}
		book := strings.TrimSuffix(query, "-props")
		c.sendEvent(domain.PropsChannel(book), c.hub.store.PropsView(book))
	}
}

// startWatch begins a recurring refresh of a replay query, tied to the
// connection's lifetime. Watching the same query twice restarts its timer.
func (c *client) startWatch(query string) {
	if !c.isReplayQuery(query) {
		c.sendError("watch-"+query, "unknown query")
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)

	c.mu.Lock()
	if prev, ok := c.watches[query]; ok {
		prev()
	}
	c.watches[query] = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.hub.watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.replay(query)
			}
		}
	}()

	// Immediate snapshot so the watcher does not wait a full interval.
	c.replay(query)
}

// stopWatch cancels a recurring refresh. Unwatching an unknown query is a
// no-op.
func (c *client) stopWatch(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.watches[query]; ok {
		cancel()
		delete(c.watches, query)
	}
}

// submitOnDemand forwards a one-shot query upstream via the correlator. The
// response arrives later as <query>-response; every rejection is surfaced as
// an explicit error event.
func (c *client) submitOnDemand(query string, data json.RawMessage) {
	if c.hub.correlator == nil {
		c.sendError("request-"+query, "on-demand queries are disabled")
		return
	}

	var params map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &params); err != nil {
			c.sendError("request-"+query, "malformed request data")
			return
		}
	}

	ctx, cancelTimeout := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancelTimeout()

	if _, err := c.hub.correlator.Submit(ctx, c.id, c.ent, query, params); err != nil {
		c.sendError("request-"+query, submitErrorMessage(err))
		return
	}
}

// submitErrorMessage maps correlator rejections to consumer-facing text.
func submitErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return "on-demand queries not included in your plan"
	case errors.Is(err, domain.ErrMissingFields):
		return "missing required fields"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate limit exceeded"
	case errors.Is(err, domain.ErrCapacity):
		return "too many pending requests, try again later"
	case errors.Is(err, domain.ErrNotConnected):
		return "upstream feed unavailable"
	default:
		return "request failed"
	}
}

// sendEvent marshals a payload and queues it as a named event.
func (c *client) sendEvent(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.hub.logger.Error("ws: marshal event payload failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		c.hub.logger.Warn("ws: dropping event for slow consumer",
			slog.String("consumer_id", c.id),
			slog.String("event", event),
		)
	}
}

// errorData is the payload of an error event.
type errorData struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// sendError queues an error event referencing the consumer message that
// triggered it.
func (c *client) sendError(event, message string) {
	c.sendEvent("error", errorData{Event: event, Message: message})
}

// writePump pumps queued frames to the WebSocket connection and sends
// periodic pings for keepalive. It exits when the connection context is
// cancelled; the send channel is never closed, so late senders can at worst
// fill the buffer, never panic.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
