package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	// Allow reports whether a request for the given key is permitted under a
	// window of the given size and count. An allowed request is counted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Reset discards all counted requests for the given key, e.g. when the
	// consumer that owns the key disconnects.
	Reset(ctx context.Context, key string) error
}

// BusMessage is one published payload together with the concrete channel it
// arrived on. The channel matters on wildcard subscriptions, where the
// subscribed pattern covers many channels.
type BusMessage struct {
	Channel string
	Payload []byte
}

// SignalBus provides pub/sub fan-in from the feed pipeline to the broadcast
// hub. Channel names may contain glob-style wildcards on the subscribe side.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan BusMessage, error)
}
