package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

var grpcTracer = otel.Tracer("grpc-pos-stock-server")

type contextKey string

const UsernameKey contextKey = "username"

// gRPC Prometheus metrics
var (
	grpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status_code"},
	)

	grpcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(grpcRequestsTotal)
	prometheus.MustRegister(grpcRequestDuration)
}

// TracingInterceptor adds distributed tracing to gRPC calls
func TracingInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	ctx, span := grpcTracer.Start(ctx, info.FullMethod,
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", StockServiceName),
			attribute.String("rpc.method", info.FullMethod),
		),
	)
	defer span.End()

	resp, err := handler(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if st, ok := status.FromError(err); ok {
			span.SetAttributes(attribute.String("rpc.grpc.status_code", st.Code().String()))
		}
	} else {
		span.SetStatus(codes.Ok, "success")
	}

	return resp, err
}

// MetricsInterceptor collects Prometheus metrics for gRPC calls
func MetricsInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	grpcRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	grpcRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())

	return resp, err
}

// LoggingInterceptor logs gRPC requests with structured logging
func LoggingInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()

	traceID := "no-trace"
	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
	}

	resp, err := handler(ctx, req)
	duration := time.Since(start)

	if err != nil {
		logger.Warn(ctx).
			Str("method", info.FullMethod).
			Str("protocol", "grpc").
			Int64("duration_ms", duration.Milliseconds()).
			Str("trace_id", traceID).
			Str("grpc_status", status.Code(err).String()).
			Err(err).
			Msg("gRPC request failed")
	} else {
		logger.Info(ctx).
			Str("method", info.FullMethod).
			Str("protocol", "grpc").
			Int64("duration_ms", duration.Milliseconds()).
			Str("trace_id", traceID).
			Msg("gRPC request completed")
	}

	return resp, err
}

// AuthInterceptor validates bearer tokens from the authorization metadata.
// A nil manager disables it; when required is false a call without a token
// is let through.
func AuthInterceptor(manager *auth.Manager, required bool) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if manager == nil {
			return handler(ctx, req)
		}

		var token string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if tokens := md.Get("authorization"); len(tokens) > 0 {
				token = strings.TrimPrefix(tokens[0], "Bearer ")
			}
		}
		if token == "" {
			if required {
				return nil, status.Error(grpccodes.Unauthenticated, "authorization token not provided")
			}
			return handler(ctx, req)
		}

		claims, err := manager.ValidateToken(token)
		if err != nil {
			return nil, status.Errorf(grpccodes.Unauthenticated, "invalid token: %v", err)
		}

		ctx = context.WithValue(ctx, UsernameKey, claims.Username)
		return handler(ctx, req)
	}
}

// ServerOptions chains the interceptors in the order the server applies them
func ServerOptions(manager *auth.Manager, authRequired bool) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			TracingInterceptor,
			MetricsInterceptor,
			LoggingInterceptor,
			AuthInterceptor(manager, authRequired),
		),
	}
}
