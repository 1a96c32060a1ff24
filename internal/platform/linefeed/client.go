// Package linefeed implements the supervised WebSocket connection to the
// upstream odds/scores/props feed: connect, authenticate, subscribe,
// reconnect with backoff up to a bounded attempt budget, classify inbound
// messages for the pipeline, and relay outbound on-demand requests.
package linefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sportfeed/oddsgate/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxReconnectDelay caps the exponential backoff between attempts.
	maxReconnectDelay = 60 * time.Second
)

// Config holds the upstream connection parameters.
type Config struct {
	URL    string
	APIKey string

	// Sports and Bookmakers are sent in the subscribe message at connect
	// time. PropsBookmakers additionally get one subscribe-<book>-props
	// message each and have their inbound props events accepted.
	Sports          []string
	Bookmakers      []string
	PropsBookmakers []string

	// PrimaryOddsEvent is the main inbound odds event name. Defaults to
	// "odds-update". ExtraOddsEvents are additional names routed the same way.
	PrimaryOddsEvent string
	ExtraOddsEvents  []string

	// ReconnectDelay is the base delay between reconnect attempts; the
	// actual delay doubles per consecutive failure up to maxReconnectDelay.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts bounds consecutive failed attempts. Exceeding it
	// halts retries and surfaces a fatal connectivity state.
	MaxReconnectAttempts int
}

func (c Config) primaryEvent() string {
	if c.PrimaryOddsEvent != "" {
		return c.PrimaryOddsEvent
	}
	return defaultOddsEvent
}

func (c Config) reconnectDelay() time.Duration {
	if c.ReconnectDelay > 0 {
		return c.ReconnectDelay
	}
	return 2 * time.Second
}

func (c Config) maxAttempts() int {
	if c.MaxReconnectAttempts > 0 {
		return c.MaxReconnectAttempts
	}
	return 10
}

// StatusFunc is invoked on every connectivity state change.
type StatusFunc func(domain.FeedStatus)

// Client owns the single logical upstream connection.
type Client struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	onStatus StatusFunc

	mu     sync.RWMutex
	conn   *websocket.Conn
	status domain.FeedStatus
}

// New creates a Client. The handler receives every classified inbound
// message; onStatus may be nil.
func New(cfg Config, handler Handler, onStatus StatusFunc, logger *slog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		handler:  handler,
		onStatus: onStatus,
		logger:   logger.With(slog.String("component", "linefeed")),
		status:   domain.FeedStatus{Since: time.Now().UTC()},
	}
}

// Status returns the current connectivity state.
func (c *Client) Status() domain.FeedStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) setStatus(mutate func(*domain.FeedStatus)) {
	c.mu.Lock()
	mutate(&c.status)
	c.status.Since = time.Now().UTC()
	snapshot := c.status
	c.mu.Unlock()

	if c.onStatus != nil {
		c.onStatus(snapshot)
	}
}

// Run connects and listens until ctx is cancelled or the reconnect budget is
// exhausted. Exhausting the budget is fatal to the connection, not to the
// process: Run returns an error and the gateway keeps serving its last good
// snapshot while the health endpoint reports unhealthy.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.connectAndListen(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		attempts++
		c.setStatus(func(st *domain.FeedStatus) {
			st.Connected = false
			st.Attempts = attempts
			st.LastError = err.Error()
		})

		if attempts > c.cfg.maxAttempts() {
			c.setStatus(func(st *domain.FeedStatus) { st.Fatal = true })
			c.logger.Error("reconnect budget exhausted, halting retries",
				slog.Int("attempts", attempts-1),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("linefeed: reconnect budget exhausted: %w", err)
		}

		delay := backoff(c.cfg.reconnectDelay(), attempts)
		c.logger.Warn("upstream disconnected, reconnecting",
			slog.Int("attempt", attempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff doubles the base delay per consecutive failed attempt, capped.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}

// connectAndListen dials, authenticates, subscribes, and processes inbound
// messages until the connection drops or ctx is cancelled.
func (c *Client) connectAndListen(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	// A successful connection resets the failure counter.
	c.setStatus(func(st *domain.FeedStatus) {
		st.Connected = true
		st.Attempts = 0
		st.Fatal = false
		st.LastError = ""
	})
	c.logger.Info("connected to upstream", slog.String("url", c.cfg.URL))

	if err := c.authenticateAndSubscribe(); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx, conn)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("linefeed: upstream closed: %w", err)
			}
			return fmt.Errorf("linefeed: read: %w", err)
		}
		c.dispatch(ctx, message)
	}
}

// dial attaches credentials as a query parameter and as a header, for
// compatibility with varying upstream implementations.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("linefeed: parse url: %w", err)
	}
	header := http.Header{}
	if c.cfg.APIKey != "" {
		q := u.Query()
		q.Set("apiKey", c.cfg.APIKey)
		u.RawQuery = q.Encode()
		header.Set("X-API-Key", c.cfg.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("linefeed: connect: %w", err)
	}
	return conn, nil
}

// authenticateAndSubscribe sends the message-level credential, the odds
// subscription for the configured sports and bookmakers, and one props
// subscription per props-capable bookmaker.
func (c *Client) authenticateAndSubscribe() error {
	if c.cfg.APIKey != "" {
		if err := c.Send("auth", authData{APIKey: c.cfg.APIKey}); err != nil {
			return err
		}
	}

	sub := subscribeData{Sports: c.cfg.Sports, Bookmakers: c.cfg.Bookmakers}
	if err := c.Send("subscribe", sub); err != nil {
		return err
	}

	for _, book := range c.cfg.PropsBookmakers {
		if err := c.Send("subscribe-"+book+"-props", nil); err != nil {
			return err
		}
	}
	return nil
}

// dispatch classifies one inbound frame and forwards it. A malformed frame is
// logged and dropped; it never crashes the pipeline or blocks later messages.
func (c *Client) dispatch(ctx context.Context, message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
		c.logger.Warn("dropping malformed upstream message",
			slog.Int("bytes", len(message)),
		)
		return
	}

	switch {
	case env.Event == c.cfg.primaryEvent() || contains(c.cfg.ExtraOddsEvents, env.Event):
		c.handler.HandleOdds(ctx, env.Event, env.Data)
	case env.Event == EventScores:
		c.handler.HandleScores(ctx, env.Data)
	case env.Event == EventSubscribed:
		c.logger.Debug("subscription confirmed", slog.String("data", string(env.Data)))
	default:
		if book, ok := propsBook(env.Event); ok {
			if contains(c.cfg.PropsBookmakers, book) {
				c.handler.HandleProps(ctx, book, env.Data)
			}
			return
		}
		if isResponse(env.Event) {
			c.handler.HandleResponse(ctx, env.Event, env.Data)
			return
		}
		c.logger.Debug("ignoring unknown upstream event", slog.String("event", env.Event))
	}
}

// Send relays one message upstream, best effort. It returns
// domain.ErrNotConnected when no connection is currently established; callers
// must treat that as a signal, not silently drop.
func (c *Client) Send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return domain.ErrNotConnected
	}

	env := envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("linefeed: marshal %s: %w", event, err)
		}
		env.Data = raw
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("linefeed: send %s: %w", event, err)
	}
	return nil
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func isResponse(event string) bool {
	return len(event) > len(responseSuffix) &&
		event[len(event)-len(responseSuffix):] == responseSuffix
}
