// Command trustd runs the trust and safety service: automated content
// moderation with a human review queue, a security audit trail with
// suspicious-activity detection, IP blocking, and rate limiting, all exposed
// over HTTP.
//
// Redis, PostgreSQL, and NATS are optional collaborators. Leaving their
// environment variables unset degrades the service to in-memory-only
// operation; nothing fails at startup because an external store is absent.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/subosito/gotenv"

	"github.com/aegis/trust-service/internal/actions"
	"github.com/aegis/trust-service/internal/api"
	"github.com/aegis/trust-service/internal/archive"
	"github.com/aegis/trust-service/internal/blocklist"
	"github.com/aegis/trust-service/internal/logging"
	"github.com/aegis/trust-service/internal/messaging"
	"github.com/aegis/trust-service/internal/moderation"
	"github.com/aegis/trust-service/internal/ratelimit"
	"github.com/aegis/trust-service/internal/security"
	"github.com/aegis/trust-service/internal/session"
)

func main() {
	_ = gotenv.Load() // optional .env for local development

	logging.Init(os.Getenv("LOG_LEVEL"))

	listenAddr := envOr("LISTEN_ADDR", ":8080")
	redisAddr := os.Getenv("REDIS_ADDR")
	dbDSN := os.Getenv("TRUST_DB_DSN")
	natsURL := os.Getenv("NATS_URL")

	slog.Info("starting trustd",
		"listen_addr", listenAddr,
		"redis", redisAddr != "",
		"postgres", dbDSN != "",
		"nats", natsURL != "")

	// NATS fan-out for moderation decisions and critical security alerts.
	var (
		publisher actions.Publisher
		alerts    security.AlertPublisher
	)
	if natsURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = natsURL
		nc, err := messaging.NewNATSClient(natsConfig)
		if err != nil {
			slog.Error("nats connect failed", "url", natsURL, "err", err)
			os.Exit(1)
		}
		defer nc.Close()
		publisher = nc
		alerts = nc
	}

	// Postgres archive for durable action and event history.
	var archiver actions.Archiver
	var pg *archive.Store
	if dbDSN != "" {
		store, err := archive.Open(dbDSN)
		if err != nil {
			slog.Error("postgres connect failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		archiver = store
		pg = store
	}

	// Redis-backed blocklist, session store, and cross-replica rate limiter.
	var (
		blocks   *blocklist.Store
		sessions *session.Store
		limiter  ratelimit.Checker
	)
	memLimiter := ratelimit.NewMemoryLimiter()
	defer memLimiter.Stop()
	limiter = memLimiter

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			slog.Error("redis connect failed", "addr", redisAddr, "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		blocks = blocklist.NewStore(rdb)
		sessions = session.NewStore(rdb)
		limiter = ratelimit.NewLimiter(rdb)
	}

	events := security.NewEventLog(alerts)
	if pg != nil {
		// Archive every event best-effort off the logging path.
		events.Subscribe(func(ev security.Event) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := pg.SaveEvent(ctx, ev); err != nil {
					slog.Warn("event archive failed", "event", string(ev.Type), "err", err)
				}
			}()
		})
	}

	service := actions.NewService(moderation.NewModerator(), actions.NewStore(), archiver, publisher)

	// A typed-nil *archive.Store must not end up in the interface, or the
	// handlers would treat the absent archive as configured.
	var counter api.EventCounter
	if pg != nil {
		counter = pg
	}
	server := api.NewServer(service, events, blocks, sessions, counter, limiter)
	defer server.Close()

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}

	slog.Info("trustd stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
