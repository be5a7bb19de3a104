package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tair/pos-ledger/internal/pos"
	"github.com/tair/pos-ledger/internal/pos/config"
	"github.com/tair/pos-ledger/internal/pos/reconciler"
	"github.com/tair/pos-ledger/internal/pos/repository"
	"github.com/tair/pos-ledger/kafka"
	"github.com/tair/pos-ledger/pkg/database"
	"github.com/tair/pos-ledger/pkg/logger"
	"github.com/tair/pos-ledger/pkg/tracing"
)

func main() {
	cfg := config.Load()
	cfg.ServiceName = getEnv("OTEL_SERVICE_NAME", "pos-reconciler")

	// Initialize logger
	logger.Init(logger.Config{
		Service:     cfg.ServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})

	logger.Logger.Info().
		Str("service", cfg.ServiceName).
		Strs("brokers", cfg.KafkaBrokers).
		Str("group_id", cfg.KafkaGroupID).
		Dur("sweep_interval", cfg.ReconcileInterval).
		Int("max_tracked", cfg.ReconcileMaxTracked).
		Msg("Starting POS reconciler")

	// Initialize tracer
	tp, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.ServiceName,
		JaegerEndpoint: cfg.JaegerEndpoint,
		SampleRatio:    cfg.TraceSample,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	// The reconciler reads the service's database; it never writes
	db, err := database.NewGormConnection(cfg.Database)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	store := repository.NewStoreWithTracing(repository.NewGormStore(db), "postgres")

	checker, err := pos.InitializeReconciler(store)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize reconciler")
	}
	auditor := reconciler.NewAuditor(checker, reconciler.WithMaxTracked(cfg.ReconcileMaxTracked))

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	for _, eventType := range reconciler.EventTypes() {
		consumer.RegisterHandler(eventType, auditor.HandleEvent)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
	}

	go auditor.Run(ctx, cfg.ReconcileInterval)

	// Prometheus metrics endpoint
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := sqlDB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	metricsPort := getEnv("METRICS_PORT", "9184")
	server := &http.Server{
		Addr:              ":" + metricsPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Logger.Info().
			Str("port", metricsPort).
			Str("metrics_endpoint", "/metrics").
			Msg("Metrics server started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down reconciler...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("Metrics server forced to shutdown")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
