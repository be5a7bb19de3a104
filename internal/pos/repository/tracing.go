package repository

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

var tracer = otel.Tracer("pos-repository")

// StoreWithTracing wraps a domain.Store with a span per unit of work.
// Individual statements are traced by the otelgorm plugin.
type StoreWithTracing struct {
	next    domain.Store
	backend string
}

// NewStoreWithTracing creates a new store with tracing
func NewStoreWithTracing(next domain.Store, backend string) *StoreWithTracing {
	return &StoreWithTracing{next: next, backend: backend}
}

// WithinTransaction with tracing
func (s *StoreWithTracing) WithinTransaction(ctx context.Context, fn func(tx domain.Tx) error) error {
	ctx, span := tracer.Start(ctx, "repository.WithinTransaction",
		trace.WithAttributes(attribute.String("db.backend", s.backend)),
	)
	defer span.End()

	err := s.next.WithinTransaction(ctx, fn)
	addDBErrorToSpan(span, err)
	if err == nil {
		span.SetAttributes(attribute.Bool("db.committed", true))
	}
	return err
}

// Read with tracing
func (s *StoreWithTracing) Read(ctx context.Context, fn func(tx domain.Tx) error) error {
	ctx, span := tracer.Start(ctx, "repository.Read",
		trace.WithAttributes(attribute.String("db.backend", s.backend)),
	)
	defer span.End()

	err := s.next.Read(ctx, fn)
	addDBErrorToSpan(span, err)
	return err
}

// NextInvoiceNumber with tracing
func (s *StoreWithTracing) NextInvoiceNumber(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "repository.NextInvoiceNumber",
		trace.WithAttributes(attribute.String("db.backend", s.backend)),
	)
	defer span.End()

	seq, err := s.next.NextInvoiceNumber(ctx)
	if err != nil {
		addDBErrorToSpan(span, err)
		return 0, err
	}

	span.SetAttributes(attribute.Int64("invoice.number", seq))
	return seq, nil
}

// Helper function to add database error details to span
func addDBErrorToSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("database error: %v", err))
	}
}
