package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"owners-billing/internal/adapters/notify"
	webAdapter "owners-billing/internal/adapters/web"
	"owners-billing/internal/config"
	"owners-billing/internal/core"
	"owners-billing/internal/db"
	"owners-billing/internal/jobs"
	"owners-billing/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "json")
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	var notifier core.Notifier = core.NopNotifier{}
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewPublisher(cfg.AMQPURL, logger.WithComponent(log, "notify"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer publisher.Close()
		notifier = publisher
	} else {
		log.Warn().Msg("AMQP_URL not set, invoice events will not be published")
	}

	settingsService := core.NewSettingsService(pool)
	contractService := core.NewContractService(pool)
	invoiceService := core.NewInvoiceService(pool, settingsService, notifier)
	generator := core.NewGenerator(contractService, invoiceService, settingsService, logger.WithComponent(log, "generator"))
	overdueChecker := core.NewOverdueChecker(pool, logger.WithComponent(log, "overdue"))

	scheduler := jobs.NewScheduler(generator, overdueChecker, logger.WithComponent(log, "scheduler"))
	scheduler.Start(cfg.GenerateJobSchedule, cfg.OverdueJobSchedule)
	defer func() { <-scheduler.Stop().Done() }()

	handler := webAdapter.NewHandler(
		contractService, invoiceService, settingsService,
		generator, overdueChecker,
		cfg.JWTSecret, logger.WithComponent(log, "web"),
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
