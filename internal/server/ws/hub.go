// Package ws is the downstream broadcast engine. The hub bridges the signal
// bus to connected WebSocket consumers, filtering props traffic by
// entitlement, and gives the rest of the gateway a way to address one
// consumer directly for correlated responses.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/snapshot"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the consumer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per
	// consumer. A consumer that cannot drain it loses messages rather than
	// stalling the hub.
	sendBufferSize = 256

	// defaultWatchInterval is the refresh period for watch-<query>
	// subscriptions when the config does not set one.
	defaultWatchInterval = 15 * time.Second
)

// busChannels are the signal bus channels the hub fans out downstream. The
// channel name doubles as the downstream event name.
var busChannels = []string{
	domain.ChannelOdds,
	domain.ChannelScores,
	domain.PropsChannelPattern,
}

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Correlator is the slice of the request correlator the hub needs: submit
// on-demand queries and purge a consumer's pending state on disconnect.
type Correlator interface {
	Submit(ctx context.Context, consumerID string, ent domain.Entitlement, query string, params map[string]any) (string, error)
	DropConsumer(ctx context.Context, consumerID string)
}

// Config holds the hub's tunables.
type Config struct {
	// WatchInterval is the refresh period for watch-<query> subscriptions.
	WatchInterval time.Duration
}

// envelope is the wire format in both directions: a named event plus its
// JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// broadcastMsg carries a bus message into the hub's fan-out loop.
type broadcastMsg struct {
	channel string
	data    []byte
}

// Hub manages the set of connected consumers and broadcasts snapshot updates
// from the signal bus to all of them, subject to entitlement.
type Hub struct {
	store        *snapshot.Store
	bus          domain.SignalBus
	entitlements domain.EntitlementResolver
	correlator   Correlator
	logger       *slog.Logger

	watchInterval time.Duration

	clients    map[*client]bool
	byID       map[string]*client
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

// NewHub creates a hub reading replay state from store, live updates from
// bus, and consumer identities from entitlements. correlator may be nil when
// on-demand queries are disabled.
func NewHub(store *snapshot.Store, bus domain.SignalBus, entitlements domain.EntitlementResolver, correlator Correlator, logger *slog.Logger, cfg Config) *Hub {
	interval := cfg.WatchInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}

	return &Hub{
		store:         store,
		bus:           bus,
		entitlements:  entitlements,
		correlator:    correlator,
		logger:        logger,
		watchInterval: interval,
		clients:       make(map[*client]bool),
		byID:          make(map[string]*client),
		broadcast:     make(chan broadcastMsg, 256),
		register:      make(chan *client),
		unregister:    make(chan *client),
	}
}

// Run starts the hub's main event loop. It handles consumer registration,
// unregistration, and fan-out of bus messages. The loop exits when the
// provided context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range busChannels {
		go h.subscribeToChannel(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.cancel()
				delete(h.clients, c)
				delete(h.byID, c.id)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.byID[c.id] = c
			h.mu.Unlock()
			h.logger.Info("ws: consumer connected",
				slog.String("consumer_id", c.id),
				slog.String("tier", string(c.ent.Tier)),
				slog.Int("total_consumers", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				delete(h.byID, c.id)
				// The send channel is never closed: watch goroutines and the
				// pipeline may still hold the client. Cancelling the context
				// stops the pumps; buffered frames are simply dropped.
				c.cancel()
			}
			h.mu.Unlock()
			if h.correlator != nil {
				h.correlator.DropConsumer(ctx, c.id)
			}
			h.logger.Info("ws: consumer disconnected",
				slog.String("consumer_id", c.id),
				slog.Int("total_consumers", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut delivers one bus message to every eligible consumer. Props channels
// reach only consumers whose entitlement grants props.
func (h *Hub) fanOut(msg broadcastMsg) {
	frame, err := json.Marshal(envelope{Event: msg.channel, Data: msg.data})
	if err != nil {
		h.logger.Error("ws: marshal broadcast frame failed", slog.String("error", err.Error()))
		return
	}
	propsOnly := domain.IsPropsChannel(msg.channel)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if propsOnly && !c.ent.CanProps {
			continue
		}
		select {
		case c.send <- frame:
		default:
			// Consumer's send buffer is full; drop the message.
			h.logger.Warn("ws: dropping message for slow consumer",
				slog.String("consumer_id", c.id),
			)
		}
	}
}

// subscribeToChannel subscribes to a single bus channel (or pattern) and
// forwards received messages to the hub's broadcast loop.
func (h *Hub) subscribeToChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.Info("ws: subscribed to channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", channel),
				)
				return
			}
			h.broadcast <- broadcastMsg{channel: msg.Channel, data: msg.Payload}
		}
	}
}

// SendTo queues an event for exactly one consumer. It reports false when the
// consumer is no longer connected or its send buffer is full.
func (h *Hub) SendTo(consumerID, event string, payload json.RawMessage) bool {
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("ws: marshal direct frame failed", slog.String("error", err.Error()))
		return false
	}

	h.mu.RLock()
	c, ok := h.byID[consumerID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		h.logger.Warn("ws: dropping direct message for slow consumer",
			slog.String("consumer_id", c.id),
		)
		return false
	}
}

// HandleWS authenticates the consumer, upgrades the HTTP request to a
// WebSocket connection, and registers the consumer with the hub. The latest
// odds snapshot is replayed immediately after registration.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("apiKey")
	if apiKey == "" {
		apiKey = r.Header.Get("X-API-Key")
	}

	ent, err := h.entitlements.Resolve(r.Context(), apiKey)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		id:      uuid.NewString(),
		ent:     ent,
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[string]context.CancelFunc),
	}

	h.register <- c
	c.replay("odds")

	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected consumers.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
