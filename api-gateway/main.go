package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/tair/pos-ledger/api-gateway/config"
	"github.com/tair/pos-ledger/api-gateway/health"
	"github.com/tair/pos-ledger/api-gateway/middleware"
	"github.com/tair/pos-ledger/api-gateway/proxy"
	"github.com/tair/pos-ledger/api-gateway/routes"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
	"github.com/tair/pos-ledger/pkg/tracing"
)

func main() {
	serviceName := getEnv("OTEL_SERVICE_NAME", "pos-gateway")
	environment := getEnv("ENVIRONMENT", "development")
	logger.Init(logger.Config{
		Service:     serviceName,
		Environment: environment,
		Level:       getEnv("LOG_LEVEL", "info"),
	})

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", environment).
		Msg("Starting POS gateway")

	sampleRatio, err := strconv.ParseFloat(getEnv("TRACE_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		sampleRatio = 1
	}
	tp, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		SampleRatio:    sampleRatio,
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

	cfg := config.LoadConfig()
	app, gw := newApp(cfg)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go gw.Health.Run(ctx, cfg.HealthInterval)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		for name, svc := range cfg.Services {
			logger.Logger.Info().
				Str("service", name).
				Strs("instances", svc.Instances).
				Msg("Routing to upstream")
		}
		logger.Logger.Info().Str("addr", addr).Msg("POS gateway listening")

		if err := app.Listen(addr); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down POS gateway...")
	stop()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Logger.Info().Msg("POS gateway stopped")
}

// newApp builds the fiber app with its global middleware and routes
func newApp(cfg *config.GatewayConfig) (*fiber.App, routes.Gateway) {
	reverseProxy := proxy.NewReverseProxy(cfg)
	gw := routes.Gateway{
		Proxy:    reverseProxy,
		Health:   health.NewHealthChecker(cfg, reverseProxy.LoadBalancers()),
		Auth:     middleware.NewAuthenticator(auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, 12*time.Hour), cfg.AuthRequired),
		Breakers: middleware.NewCircuitBreakerManager(cfg.BreakerMaxFailures, cfg.BreakerTimeout),
	}

	app := fiber.New(fiber.Config{
		AppName:      "POS Gateway",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  30 * time.Second,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.StructuredLoggingMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  "GET,POST,PUT,DELETE,PATCH,OPTIONS,HEAD",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-Id, traceparent, tracestate",
		ExposeHeaders: "X-Request-Id, X-Trace-Id, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After",
		MaxAge:        86400,
	}))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	routes.SetupRoutes(app, gw)
	return app, gw
}

// errorHandler renders errors in the ledger service's response envelope
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"success":    false,
		"error":      err.Error(),
		"path":       c.Path(),
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
