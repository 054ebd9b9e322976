// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"shortlet-payments/internal/config"
	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/adapter"
	provAdapters "shortlet-payments/internal/infra/adapters/provider"
	pg "shortlet-payments/internal/infra/db/postgres"
	"shortlet-payments/internal/infra/events"
	"shortlet-payments/internal/infra/logging"
	"shortlet-payments/internal/infra/metrics"
	red "shortlet-payments/internal/infra/redis"
	"shortlet-payments/internal/infra/sched"
	"shortlet-payments/internal/infra/web"
	"shortlet-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop verifiers allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional; webhook replay dedup) ----
	var dedup red.Deduper = red.NoopDeduper{}
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		dedup = red.NewEventDeduper(redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis not configured; webhook replay dedup disabled")
	}

	// ---- NATS (optional; outcome events) ----
	var publisher adapter.EventPublisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats")
		}
		defer np.Close()
		publisher = np
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	intentRepo := pg.NewPaymentIntentRepo(pool)
	bookingRepo := pg.NewBookingRepo(pool)
	probe := pg.NewSchemaProbe(pool)

	// ---- Provider verifiers ----
	verifiers := map[model.Provider]adapter.ProviderVerifier{}
	if cfg.Providers.Stripe.SecretKey != "" {
		verifiers[model.ProviderStripe] = provAdapters.NewStripeVerifier(cfg.Providers.Stripe.SecretKey)
	}
	if cfg.Providers.Paystack.SecretKey != "" {
		verifiers[model.ProviderPaystack] = provAdapters.NewPaystackVerifier(cfg.Providers.Paystack.SecretKey, cfg.Providers.Paystack.BaseURL)
	}
	if len(verifiers) == 0 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no payment provider configured: set providers.stripe.secret_key or providers.paystack.secret_key")
		}
		logger.Warn().Msg("no provider keys set; wiring noop verifiers")
		verifiers[model.ProviderStripe] = provAdapters.NewNoopVerifier(model.ProviderStripe)
		verifiers[model.ProviderPaystack] = provAdapters.NewNoopVerifier(model.ProviderPaystack)
	}

	// ---- Use cases ----
	paymentSvc := usecase.NewPaymentService(tm, intentRepo, bookingRepo, cfg.Reconcile.RetryBackoff, logger)
	reconcileUC := usecase.NewReconcileUseCase(intentRepo, bookingRepo, paymentSvc, probe, verifiers, publisher,
		usecase.ReconcileOptions{
			StaleAfter:    cfg.Reconcile.StaleAfter,
			DefaultLimit:  cfg.Reconcile.DefaultLimit,
			MaxLimit:      cfg.Reconcile.MaxLimit,
			ActiveLockTTL: cfg.Reconcile.ActiveLockTTL,
			RetryBackoff:  cfg.Reconcile.RetryBackoff,
		}, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	metrics.MustRegister()
	srv := web.NewServer(reconcileUC, paymentSvc, probe, dedup, auth, cfg, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTP.Port), Handler: srv.Handler()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- In-process reconcile worker (optional) ----
	worker := sched.NewReconcileWorker(reconcileUC, cfg.Reconcile.Interval, logger)
	go worker.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	_ = server.Shutdown(context.Background())
}
