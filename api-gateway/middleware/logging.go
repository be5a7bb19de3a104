package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/pkg/logger"
)

// StructuredLoggingMiddleware logs one line per request once it completes
func StructuredLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		statusCode := c.Response().StatusCode()

		l := logger.WithContext(c.UserContext())
		logEvent := l.Info()
		switch {
		case err != nil || statusCode >= fiber.StatusInternalServerError:
			logEvent = l.Error().Err(err)
		case statusCode >= fiber.StatusBadRequest:
			logEvent = l.Warn()
		}

		if span := trace.SpanFromContext(c.UserContext()); !span.SpanContext().IsValid() {
			logEvent = logEvent.Str("trace_id", "no-trace")
		}
		if username, ok := c.Locals("username").(string); ok {
			logEvent = logEvent.Str("username", username)
		}
		if upstream, ok := c.Locals("upstream").(string); ok {
			logEvent = logEvent.Str("upstream", upstream)
		}

		logEvent.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Int("status", statusCode).
			Int64("duration_ms", duration.Milliseconds()).
			Int("response_size", len(c.Response().Body())).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("idempotency_key", c.Get("Idempotency-Key")).
			Msg("Gateway request completed")

		return err
	}
}
