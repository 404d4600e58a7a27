package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"vendry/internal/events"
	identityhandler "vendry/internal/identity/handler"
	"vendry/internal/identity/service"
	"vendry/internal/identity/store"
	"vendry/internal/identity/token"
	"vendry/internal/notify"
	"vendry/internal/onboarding/catalog"
	onboardinghandler "vendry/internal/onboarding/handler"
	"vendry/internal/platform/config"
	"vendry/internal/platform/httpserver"
	"vendry/internal/platform/logger"
	"vendry/internal/platform/metrics"
	"vendry/internal/platform/middleware"
	platformredis "vendry/internal/platform/redis"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages; storage and messaging degrade to
// in-process fallbacks when their backends are not configured, so a bare
// `go run ./cmd/server` works.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable, using in-memory stores", "error", err.Error())
	}

	var (
		profiles store.ProfileStore
		sessions store.SessionStore
		modes    store.ActiveModeStore
		otps     store.OTPStore
		notifier notify.Notifier
	)
	if redisClient != nil {
		profiles = store.NewRedisProfileStore(redisClient.Client)
		sessions = store.NewRedisSessionStore(redisClient.Client)
		modes = store.NewRedisActiveModeStore(redisClient.Client)
		otps = store.NewRedisOTPStore(redisClient.Client)
		notifier = notify.NewRedis(redisClient.Client, log)
		defer redisClient.Close()
	} else {
		profiles = store.NewMemoryProfileStore()
		sessions = store.NewMemorySessionStore()
		modes = store.NewMemoryActiveModeStore()
		otps = store.NewMemoryOTPStore()
		notifier = notify.NewMemory()
	}

	if cfg.Postgres.URL != "" {
		db, err := store.NewPostgresDB(cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres unavailable", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		profiles = store.NewPostgresProfileStore(db)
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka unavailable, events disabled", "error", err.Error())
		} else {
			publisher = kafka
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = kafka.Close(closeCtx)
			}()
		}
	}

	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)
	identity := service.New(
		profiles, sessions, modes, otps,
		tokens,
		service.LogSender{Logger: log},
		notifier,
		publisher,
		m,
		log,
		service.Config{
			SessionTTL:     cfg.SessionTTL,
			OTPTTL:         cfg.OTPTTL,
			OTPMaxAttempts: cfg.OTPMaxAttempts,
		},
	)

	notifier.Subscribe(func() {
		log.Debug("profile changed broadcast received")
	})

	authHandler := identityhandler.New(identity, log)
	wizardHandler := onboardinghandler.New(identity, catalog.Default(), log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)

	router.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(tokens))
		r.Use(middleware.Latency(m, "public"))
		authHandler.RegisterPublic(r)
		wizardHandler.Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, log))
		r.Use(middleware.Latency(m, "protected"))
		authHandler.RegisterProtected(r)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting vendry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
