package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/sportfeed/oddsgate/internal/blob/s3"
	"github.com/sportfeed/oddsgate/internal/cache/redis"
	"github.com/sportfeed/oddsgate/internal/config"
	"github.com/sportfeed/oddsgate/internal/correlate"
	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/feed"
	"github.com/sportfeed/oddsgate/internal/normalize"
	"github.com/sportfeed/oddsgate/internal/notify"
	"github.com/sportfeed/oddsgate/internal/platform/linefeed"
	"github.com/sportfeed/oddsgate/internal/resolve"
	"github.com/sportfeed/oddsgate/internal/server"
	"github.com/sportfeed/oddsgate/internal/server/handler"
	"github.com/sportfeed/oddsgate/internal/server/ws"
	"github.com/sportfeed/oddsgate/internal/service"
	"github.com/sportfeed/oddsgate/internal/snapshot"
	"github.com/sportfeed/oddsgate/internal/store/postgres"
)

// Dependencies bundles everything the application run loop needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store      *snapshot.Store
	FeedClient *linefeed.Client
	Correlator *correlate.Correlator
	Hub        *ws.Hub
	Server     *server.Server
	Archiver   *s3blob.Archiver
	Notifier   *notify.Notifier

	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
}

// feedSender adapts the upstream client to correlate.Sender. The client is
// bound after construction because the client itself depends on the pipeline,
// which depends on the correlator.
type feedSender struct {
	client *linefeed.Client
}

func (s *feedSender) Send(event string, data any) error {
	if s.client == nil {
		return domain.ErrNotConnected
	}
	return s.client.Send(event, data)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (required: signal bus, rate limiting, entitlement cache) ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Entitlements (Postgres optional; missing config means every
	//     consumer gets the default entitlement) ---
	var entStore domain.EntitlementStore
	var entCache domain.EntitlementCache
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		entStore = postgres.NewEntitlementStore(pgClient.Pool())
		entCache = redis.NewEntitlementCache(redisClient)
	} else {
		logger.Warn("no entitlement store configured, all consumers get the default tier",
			slog.String("default_tier", cfg.Entitlements.DefaultTier),
		)
	}

	fallback := domain.Entitlement{
		Tier:         domain.Tier(cfg.Entitlements.DefaultTier),
		CanProps:     cfg.Entitlements.DefaultCanProps,
		CanOnDemand:  cfg.Entitlements.DefaultCanOnDemand,
		RequestQuota: cfg.Entitlements.DefaultRequestQuota,
	}
	entitlements := service.NewEntitlementService(entStore, entCache, cfg.Entitlements.CacheTTL.Duration, fallback, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, nil, logger)

	// --- Core pipeline ---
	resolver := resolve.New(resolve.DefaultAliases)
	deps.Store = snapshot.New(resolver)

	// The correlator's sender is bound to the upstream client below; the
	// client cannot exist yet because it needs the pipeline as its handler.
	sender := &feedSender{}
	deps.Correlator = correlate.New(correlate.Config{
		TTL:        cfg.OnDemand.TTL.Duration,
		MaxPending: cfg.OnDemand.MaxPending,
		RateLimit:  cfg.OnDemand.RateLimit,
		RateWindow: cfg.OnDemand.RateWindow.Duration,
	}, sender, deps.RateLimiter, logger)

	deps.Hub = ws.NewHub(deps.Store, deps.SignalBus, entitlements, deps.Correlator, logger, ws.Config{
		WatchInterval: cfg.Server.WatchInterval.Duration,
	})

	pipeline := feed.New(deps.Store, resolver, deps.SignalBus, deps.Correlator, deps.Hub, logger)

	if cfg.Upstream.URL == "" {
		logger.Warn("no upstream url configured, feed disabled; serving cached snapshots only")
	} else {
		deps.FeedClient = linefeed.New(linefeed.Config{
			URL:                  cfg.Upstream.URL,
			APIKey:               cfg.Upstream.APIKey,
			Sports:               normalizeSportKeys(cfg.Upstream.Sports),
			Bookmakers:           cfg.Upstream.Bookmakers,
			PropsBookmakers:      cfg.Upstream.PropsBookmakers,
			PrimaryOddsEvent:     cfg.Upstream.PrimaryOddsEvent,
			ExtraOddsEvents:      cfg.Upstream.ExtraOddsEvents,
			ReconnectDelay:       cfg.Upstream.ReconnectDelay.Duration,
			MaxReconnectAttempts: cfg.Upstream.MaxReconnectAttempts,
		}, pipeline, feedStatusNotifier(deps.Notifier, logger), logger)
		sender.client = deps.FeedClient
	}

	// --- HTTP server ---
	if cfg.Server.Enabled {
		feedStatus := func() domain.FeedStatus { return domain.FeedStatus{} }
		if deps.FeedClient != nil {
			feedStatus = deps.FeedClient.Status
		}
		handlers := server.Handlers{
			Health: handler.NewHealthHandler(logger, feedStatus),
			Odds:   handler.NewOddsHandler(deps.Store, logger),
			Scores: handler.NewScoresHandler(deps.Store, logger),
			Props:  handler.NewPropsHandler(deps.Store, logger),
		}
		deps.Server = server.NewServer(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			RateLimit:   cfg.Server.RateLimit,
			RateWindow:  cfg.Server.RateWindow.Duration,
		}, handlers, deps.Hub, entitlements, deps.RateLimiter, logger)
	}

	// --- Snapshot archiver (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Store,
			cfg.Archive.Interval.Duration,
			cfg.Archive.Prefix,
			logger,
		)
	}

	return deps, cleanup, nil
}

// normalizeSportKeys maps configured sport names to canonical sport keys so
// operators can write either "NBA" or "basketball_nba".
func normalizeSportKeys(sports []string) []string {
	out := make([]string, 0, len(sports))
	for _, s := range sports {
		if key, ok := normalize.CanonicalSportKey(s); ok {
			out = append(out, key)
			continue
		}
		out = append(out, s)
	}
	return out
}

// feedStatusNotifier alerts operators when the upstream retry budget is
// exhausted and when connectivity comes back afterwards.
func feedStatusNotifier(notifier *notify.Notifier, logger *slog.Logger) linefeed.StatusFunc {
	var wasFatal bool
	return func(st domain.FeedStatus) {
		switch {
		case st.Fatal && !wasFatal:
			wasFatal = true
			if err := notifier.NotifyAll(context.Background(), "upstream feed down",
				fmt.Sprintf("retry budget exhausted after %d attempts: %s", st.Attempts, st.LastError)); err != nil {
				logger.Warn("feed-down notification failed", slog.String("error", err.Error()))
			}
		case st.Connected && wasFatal:
			wasFatal = false
			if err := notifier.NotifyAll(context.Background(), "upstream feed recovered", "connection re-established"); err != nil {
				logger.Warn("feed-recovery notification failed", slog.String("error", err.Error()))
			}
		}
	}
}
