package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"crmhooks/internal/api"
	"crmhooks/internal/api/handlers"
	"crmhooks/internal/api/middleware"
	"crmhooks/internal/engine/events"
	"crmhooks/internal/engine/webhooks"
	"crmhooks/internal/pkg/logger"
	"crmhooks/internal/pkg/metrics"
	"crmhooks/internal/platform/auth"
	"crmhooks/internal/platform/config"
	"crmhooks/internal/platform/database"
	"crmhooks/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(reg)

	// Repositories
	hookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)

	// Delivery pipeline
	sender := webhooks.NewSender(cfg.Webhooks, webhooks.WithTracer(webhooks.NewTracer()))
	recorder := webhooks.NewRecorder(hookRepo, logRepo, webhookMetrics)
	dispatcher := webhooks.NewDispatcher(hookRepo, sender, recorder, webhookMetrics)
	emitter := events.NewEmitter(dispatcher)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	eventLimiter := middleware.NewRateLimiter(cfg.RateLimit.EventsPerMinute)
	go sweepRateLimiter(ctx, eventLimiter)

	deps := &api.Dependencies{
		AuthHandler:    handlers.NewAuthHandler(cfg.Admin, tokenSvc),
		WebhookHandler: handlers.NewWebhookHandler(hookRepo, logRepo, dispatcher, cfg.Webhooks.MaxLogPageSize),
		EventHandler:   handlers.NewEventHandler(emitter),
		HealthHandler:  handlers.NewHealthHandler(db),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		AuthMiddleware: authMiddleware,
		EventLimiter:   eventLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	// let in-flight dispatch rounds record their outcomes before the DB closes
	dispatcher.Wait()
	log.Info().Msg("server stopped")
}

func sweepRateLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup(10 * time.Minute)
		}
	}
}
