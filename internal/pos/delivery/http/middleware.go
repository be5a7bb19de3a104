package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
	RoleKey     contextKey = "role"
)

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "Total number of HTTP requests to the POS ledger",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(requestCounter, requestLatency)
}

// Authenticator validates bearer tokens. With a nil manager every request
// passes and the actor comes from the request body.
type Authenticator struct {
	manager  *auth.Manager
	required bool
}

// NewAuthenticator creates an authenticator. When required is false a
// request without a token is let through, but a bad token is still refused.
func NewAuthenticator(manager *auth.Manager, required bool) *Authenticator {
	return &Authenticator{manager: manager, required: required}
}

// Middleware validates JWT token and stores its claims in the context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil || a.manager == nil {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if a.required {
				unauthorized(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := a.manager.ValidateToken(parts[1])
		if err != nil {
			unauthorized(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole restricts a route to the given roles. It only applies when a
// token was presented or is required.
func (a *Authenticator) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if a == nil || a.manager == nil {
				next(w, r)
				return
			}

			role, ok := r.Context().Value(RoleKey).(string)
			if !ok {
				if a.required {
					unauthorized(w, http.StatusUnauthorized, "Authorization header required")
					return
				}
				next(w, r)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next(w, r)
					return
				}
			}
			unauthorized(w, http.StatusForbidden, "Insufficient role")
		}
	}
}

// Username returns the authenticated operator, or "" without a token
func Username(r *http.Request) string {
	username, _ := r.Context().Value(UsernameKey).(string)
	return username
}

// actorFrom returns the token's username, or fallback without a token
func actorFrom(r *http.Request, fallback string) string {
	if username := Username(r); username != "" {
		return username
	}
	return fallback
}

func unauthorized(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Response{Success: false, Error: message})
}

// metricsMiddleware records request count and latency per endpoint
func metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(requestLatency.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		ww := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(ww, r)

		requestCounter.WithLabelValues(r.Method, endpoint, http.StatusText(ww.statusCode)).Inc()
	}
}

// LoggingMiddleware logs HTTP requests with structured logging
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		ctx := r.Context()
		span := trace.SpanFromContext(ctx)
		traceID := "no-trace"
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		}

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		logEvent := logger.Info(ctx)
		if ww.statusCode >= 500 {
			logEvent = logger.Error(ctx)
		} else if ww.statusCode >= 400 {
			logEvent = logger.Warn(ctx)
		}

		logEvent.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Int("status", ww.statusCode).
			Int64("duration_ms", duration.Milliseconds()).
			Str("trace_id", traceID).
			Msg("HTTP request completed")
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
