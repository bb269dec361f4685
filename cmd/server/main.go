package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/arhteh596/granovskicrm-sub002/internal/announce"
	"github.com/arhteh596/granovskicrm-sub002/internal/application"
	"github.com/arhteh596/granovskicrm-sub002/internal/config"
	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/crmapi"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/fcm"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/kv"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/postgres"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/redis"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/sqlite"
	kafkaconsumer "github.com/arhteh596/granovskicrm-sub002/internal/kafka"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
	"github.com/arhteh596/granovskicrm-sub002/internal/poller"
	"github.com/arhteh596/granovskicrm-sub002/internal/push"
	transporthttp "github.com/arhteh596/granovskicrm-sub002/internal/transport/http"
)

// crmSource reads clients and announcements from the CRM.
type crmSource interface {
	domain.ClientSource
	domain.AnnouncementSource
}

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting crm-notify")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database (lazy: only when storage or CRM source needs it) ────────────
	var pool *pgxpool.Pool
	if cfg.Storage.Backend == "postgres" || cfg.CRM.Source == "postgres" {
		pool, err = pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	// ── Storage ──────────────────────────────────────────────────────────────
	var base domain.KV
	switch cfg.Storage.Backend {
	case "memory":
		base = kv.NewMemory()
		log.Warn().Msg("using in-memory storage, notifications will not survive restarts")
	case "postgres":
		store := postgres.NewKV(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare postgres storage")
		}
		base = store
	case "redis":
		store, err := redis.New(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer store.Close()
		base = store
	default:
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite storage")
		}
		defer store.Close()
		base = store
	}
	log.Info().Str("backend", cfg.Storage.Backend).Msg("storage ready")

	// ── SSE Hub & Push ───────────────────────────────────────────────────────
	hub := transporthttp.NewHub()
	subs := push.NewSubscriptions(func(userID string) domain.KV {
		return kv.Namespace(base, kv.UserNamespace(userID))
	})

	effects := notify.Effects{Toaster: hub, Sound: hub, Presence: hub}
	if cfg.Push.Enabled {
		sender, err := fcm.New(ctx, cfg.Push.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init firebase messaging")
		}
		effects.OS = push.NewDispatcher(subs, sender, cfg.Push.RateEvery, cfg.Push.RateBurst)
		log.Info().Msg("push notifications enabled")
	}

	// ── Application Service ───────────────────────────────────────────────────
	svc := application.NewService(base, effects, application.Options{
		LedgerRetention: cfg.Ledger.Retention(),
	})

	// ── CRM Source ───────────────────────────────────────────────────────────
	var source crmSource
	if cfg.CRM.Source == "api" {
		source = crmapi.New(cfg.CRM.BaseURL, cfg.Auth.JWTSecret, hub.Principals)
	} else {
		loc, err := cfg.CRM.Location()
		if err != nil {
			log.Fatal().Err(err).Str("timezone", cfg.CRM.Timezone).Msg("invalid crm timezone")
		}
		source = postgres.NewCRM(pool, loc)
	}
	board := announce.NewBoard(source, cfg.Poller.AnnouncementCacheTTL)

	// ── HTTP Server ───────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(svc, hub, board, subs, effects.OS)
	router := transporthttp.NewRouter(handler, cfg.Auth.JWTSecret, cfg.Server.AllowOrigins)

	g, gctx := errgroup.WithContext(ctx)

	// ── Pollers ──────────────────────────────────────────────────────────────
	g.Go(func() error {
		return poller.Run(gctx, poller.NewCallback(source, svc, notify.SystemClock), cfg.Poller.CallbackInterval)
	})
	g.Go(func() error {
		return poller.Run(gctx, poller.NewTransfer(source, svc), cfg.Poller.TransferInterval)
	})

	// ── Kafka Consumer ────────────────────────────────────────────────────────
	if cfg.Kafka.Enabled {
		consumer, err := kafkaconsumer.New(
			cfg.Kafka.Brokers,
			cfg.Kafka.ConsumerGroupID,
			cfg.Kafka.Topics,
			svc,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka consumer")
		}
		g.Go(func() error { return consumer.Start(gctx) })
		log.Info().Strs("topics", cfg.Kafka.Topics).Msg("kafka consumer started")
	}

	// ── Ledger Prune Job ──────────────────────────────────────────────────────
	g.Go(func() error {
		svc.PruneLedgers(gctx)
		ticker := time.NewTicker(cfg.Ledger.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				svc.PruneLedgers(gctx)
			case <-gctx.Done():
				return nil
			}
		}
	})

	// ── Start HTTP Server ─────────────────────────────────────────────────────
	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := router.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info().Msg("HTTP server stopped")
		return nil
	})

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return router.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("crm-notify exited with error")
	}
	log.Info().Msg("crm-notify stopped")
}
