package command

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// NextInvoiceHandler issues invoice numbers from the shared counter
type NextInvoiceHandler struct {
	store domain.Store
}

// NewNextInvoiceHandler creates a new invoice number handler
func NewNextInvoiceHandler(store domain.Store) *NextInvoiceHandler {
	return &NextInvoiceHandler{store: store}
}

// Handle reserves the next invoice number. A reserved number is never handed
// out again, even when the sale that asked for it fails.
func (h *NextInvoiceHandler) Handle(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "command.NextInvoiceNumber")
	defer span.End()

	number, err := h.store.NextInvoiceNumber(ctx)
	if err != nil {
		return 0, fail(span, "next_invoice", fmt.Errorf("failed to reserve invoice number: %w", err))
	}

	span.SetAttributes(attribute.Int64("invoice.number", number))
	return number, nil
}
