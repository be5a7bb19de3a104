package middleware

import (
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens the server span for a gateway request. The proxy
// transport injects the span context into the upstream call.
func TracingMiddleware() fiber.Handler {
	tracer := otel.Tracer("pos-gateway")

	return func(c *fiber.Ctx) error {
		ctx, span := tracer.Start(
			c.UserContext(),
			c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.Path()),
				attribute.String("http.client_ip", c.IP()),
				attribute.Bool("pos.idempotent", c.Get("Idempotency-Key") != ""),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)

		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-Id", span.SpanContext().TraceID().String())
		}

		err := c.Next()

		statusCode := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
		if upstream, ok := c.Locals("upstream").(string); ok {
			span.SetAttributes(attribute.String("pos.upstream", upstream))
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case statusCode >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, "Server Error")
		default:
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
