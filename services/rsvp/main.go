package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/cache"
	"github.com/diagnosis/luxsuv-invites/pkg/config"
	"github.com/diagnosis/luxsuv-invites/pkg/database"
	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	mw "github.com/diagnosis/luxsuv-invites/pkg/middleware"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/handlers"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository/memstore"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("RSVP service error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var bus events.EventBus
	if cfg.NATS.URL != "" {
		bus, err = events.NewNATSEventBus(cfg.NATS.URL, "rsvp")
		if err != nil {
			return err
		}
	} else {
		logger.Warn("NATS_URL not set, events stay in process")
		bus = events.NewLocalBus()
	}
	defer bus.Close()

	clock := service.SystemClock{}
	quota := quotaSource(cfg, rdb)
	links := service.NewLinkStateMachine(store, clock)
	issuer := service.NewTokenIssuer(store, quota, links, clock, bus)
	invitations := service.NewInvitationService(store, issuer, clock, bus, nil, cfg.Server.PublicBaseURL)
	rsvps := service.NewRSVPRecorder(store, links, clock, bus, cfg.Server.PublicBaseURL)
	gateway := service.NewAccessGateway(store, links)

	sweeper := service.NewSweeper(store, clock, cfg.Links.StaleAfter, bus)
	if rdb != nil {
		sweeper.WithLocker(service.NewRedisLocker(rdb), cfg.Links.SweepLockTTL)
	}

	limiter := mw.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	if err := limiter.TrustProxies(cfg.RateLimit.TrustedProxies...); err != nil {
		return err
	}
	opts := handlers.Options{
		JWTSecret:     cfg.Auth.JWTSecret,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Limiter:       limiter,
	}
	if rdb != nil {
		opts.Idempotency = cache.NewIdempotencyStore(rdb)
	}
	h := handlers.New(invitations, issuer, rsvps, gateway, opts)

	scheduler := cron.New()
	if _, err := sweeper.Schedule(ctx, scheduler, cfg.Links.SweepSchedule); err != nil {
		return err
	}
	if _, err := scheduler.AddFunc("@every 5m", func() {
		if n := limiter.Cleanup(); n > 0 {
			logger.Debug("rate limiter cleanup", "removed", n)
		}
	}); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("rsvp"))
	r.Use(mw.Logging)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Mount("/", h.Routes())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting RSVP service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down RSVP service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.URL); err != nil {
			return nil, nil, err
		}
	}
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPGStore(pool), pool.Close, nil
}

func quotaSource(cfg *config.Config, rdb *redis.Client) service.QuotaSource {
	var quota service.QuotaSource = service.StaticQuota{Max: cfg.Quota.DefaultMaxGuests}
	if cfg.Stripe.SecretKey != "" {
		api := service.NewStripeClient(cfg.Stripe.SecretKey, "")
		quota = service.NewStripeQuota(api, cfg.Stripe.MaxGuestsKey, cfg.Quota.DefaultMaxGuests)
	}
	if rdb != nil {
		quota = service.NewCachedQuota(quota, rdb, cfg.Quota.CacheTTL)
	}
	return quota
}
