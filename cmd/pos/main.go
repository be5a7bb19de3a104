package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	_ "github.com/tair/pos-ledger/cmd/pos/docs"
	"github.com/tair/pos-ledger/internal/operator"
	operatorDomain "github.com/tair/pos-ledger/internal/operator/domain"
	operatorHTTP "github.com/tair/pos-ledger/internal/operator/delivery/http"
	operatorRepository "github.com/tair/pos-ledger/internal/operator/repository"
	operatorCommand "github.com/tair/pos-ledger/internal/operator/usecase/command"
	"github.com/tair/pos-ledger/internal/pos"
	"github.com/tair/pos-ledger/internal/pos/config"
	grpcDelivery "github.com/tair/pos-ledger/internal/pos/delivery/grpc"
	httpDelivery "github.com/tair/pos-ledger/internal/pos/delivery/http"
	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/repository"
	"github.com/tair/pos-ledger/kafka"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/database"
	"github.com/tair/pos-ledger/pkg/lock"
	"github.com/tair/pos-ledger/pkg/logger"
	"github.com/tair/pos-ledger/pkg/tracing"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	logger.Init(logger.Config{
		Service:     cfg.ServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})

	logger.Logger.Info().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Str("store", string(cfg.Store)).
		Msg("Starting POS ledger service")

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

	store, operators, pinger, closeStore := openStore(cfg)
	defer closeStore()

	redisClient := openRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	locker := newLocker(cfg, redisClient)

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	// Initialize handlers with Wire DI
	ledgerHandler, err := pos.InitializeHTTPHandler(store, locker, publisher)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
	}

	stockServer, err := pos.InitializeGRPCServer(store)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize gRPC server")
	}

	manager := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	limiter := httpDelivery.NewRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)

	operatorHandler, err := operator.InitializeHTTPHandler(operators, manager)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize operator handler")
	}

	created, err := operatorCommand.NewRegisterOperatorHandler(operators).
		EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to bootstrap administrator")
	}
	if created {
		logger.Logger.Info().Str("username", cfg.AdminUsername).Msg("Administrator created")
	}

	httpServer := newHTTPServer(cfg, ledgerHandler, operatorHandler, manager, limiter, pinger)
	go func() {
		logger.Logger.Info().
			Str("port", cfg.HTTPPort).
			Str("metrics_endpoint", "/metrics").
			Msg("HTTP server started")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	grpcServer := grpc.NewServer(grpcDelivery.ServerOptions(manager, cfg.AuthRequired)...)
	grpcDelivery.RegisterStockServiceServer(grpcServer, stockServer)
	// Register reflection service (for grpcurl and grpc tools)
	reflection.Register(grpcServer)
	go startGRPCServer(grpcServer, cfg.GRPCPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP server forced to shutdown")
	}
	grpcServer.GracefulStop()

	logger.Logger.Info().Msg("Server exited")
}

// openStore returns the configured store wrapped with tracing, the operator
// repository on the same backend, the pinger used by /health and a close func.
func openStore(cfg *config.Config) (domain.Store, operatorDomain.OperatorRepository, httpDelivery.Pinger, func()) {
	if cfg.Store == config.StoreMemory {
		logger.Logger.Warn().Msg("Using in-memory store, data is lost on restart")
		return repository.NewStoreWithTracing(repository.NewMemoryStore(), "memory"),
			operatorRepository.NewMemoryOperatorRepository(), nil, func() {}
	}

	db, err := database.NewGormConnection(cfg.Database)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}

	gormStore := repository.NewGormStore(db)
	if err := gormStore.AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	operators := operatorRepository.NewGormOperatorRepository(db)
	if err := operators.AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run operator migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	return repository.NewStoreWithTracing(gormStore, "postgres"), operators, sqlDB, func() { sqlDB.Close() }
}

func openRedis(cfg *config.Config) *redis.Client {
	if cfg.Lock != config.LockRedis {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Logger.Warn().
			Err(err).
			Str("addr", cfg.RedisAddr).
			Msg("Redis unavailable, falling back to process-local locks")
		client.Close()
		return nil
	}

	logger.Logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	return client
}

func newLocker(cfg *config.Config, client *redis.Client) lock.Locker {
	if client == nil {
		return lock.NewLocalLocker()
	}
	return lock.NewRedisLocker(client, cfg.LockRetries, cfg.LockBackoff)
}

func newPublisher(cfg *config.Config) (domain.EventPublisher, func()) {
	if !cfg.KafkaEnabled {
		return domain.NoopPublisher{}, func() {}
	}

	publisher, err := kafka.NewPublisher(cfg.KafkaBrokers)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Kafka unavailable, ledger events will not be published")
		return domain.NoopPublisher{}, func() {}
	}

	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close Kafka publisher")
		}
	}
}

func newHTTPServer(cfg *config.Config, ledgerHandler *httpDelivery.LedgerHandler, operatorHandler *operatorHTTP.OperatorHandler, manager *auth.Manager, limiter *httpDelivery.RateLimiter, pinger httpDelivery.Pinger) *http.Server {
	// Setup router
	router := mux.NewRouter()

	middlewareConfig := httpDelivery.DefaultMiddlewareConfig(cfg.RequestTimeout)
	httpDelivery.RegisterMiddlewares(router, middlewareConfig)

	// Register routes
	authn := httpDelivery.NewAuthenticator(manager, cfg.AuthRequired)
	api := ledgerHandler.RegisterRoutes(router, authn, limiter)
	operatorHandler.RegisterRoutes(router, api, authn, limiter)

	// Health check endpoint
	ledgerHandler.RegisterHealthCheck(router, pinger)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Swagger UI
	httpDelivery.RegisterSwaggerDocs(router, httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpDelivery.SetupCORS(middlewareConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startGRPCServer(server *grpc.Server, port string) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		logger.Logger.Fatal().Err(err).Str("port", port).Msg("Failed to listen for gRPC")
	}

	logger.Logger.Info().
		Str("port", port).
		Str("service", grpcDelivery.StockServiceName).
		Msg("gRPC server started")

	if err := server.Serve(lis); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to serve gRPC")
	}
}
