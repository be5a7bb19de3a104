package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/pkg/logger"
)

// RecordAdjustmentCommand corrects a customer balance by hand. A credit note
// only ever reduces what the customer owes.
type RecordAdjustmentCommand struct {
	CustomerID uint                      `json:"customer_id" validate:"required"`
	Kind       domain.CustomerLedgerKind `json:"kind" validate:"required,oneof=adjustment credit_note"`
	Debit      decimal.Decimal           `json:"debit"`
	Credit     decimal.Decimal           `json:"credit"`
	Reason     string                    `json:"reason" validate:"required,max=255"`
	Actor      string                    `json:"actor" validate:"max=100"`
}

// RecordAdjustmentHandler handles record adjustment command
type RecordAdjustmentHandler struct {
	store     domain.Store
	publisher domain.EventPublisher
}

// NewRecordAdjustmentHandler creates a new record adjustment handler
func NewRecordAdjustmentHandler(store domain.Store, publisher domain.EventPublisher) *RecordAdjustmentHandler {
	return &RecordAdjustmentHandler{store: store, publisher: publisher}
}

// Handle executes the record adjustment command
func (h *RecordAdjustmentHandler) Handle(ctx context.Context, cmd RecordAdjustmentCommand) (*domain.CustomerLedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "command.RecordAdjustment",
		trace.WithAttributes(
			attribute.Int64("customer.id", int64(cmd.CustomerID)),
			attribute.String("adjustment.kind", string(cmd.Kind)),
		),
	)
	defer span.End()

	cmd.Reason = strings.TrimSpace(cmd.Reason)
	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "record_adjustment", err)
	}

	switch {
	case cmd.Debit.IsNegative() || cmd.Credit.IsNegative():
		return nil, fail(span, "record_adjustment", domain.ValidationError("debit and credit must not be negative"))
	case cmd.Debit.IsZero() && cmd.Credit.IsZero():
		return nil, fail(span, "record_adjustment", domain.ValidationError("adjustment moves no money"))
	case cmd.Kind == domain.CustomerLedgerCreditNote && !cmd.Debit.IsZero():
		return nil, fail(span, "record_adjustment", domain.ValidationError("a credit note cannot debit the customer"))
	}

	var entry *domain.CustomerLedgerEntry
	err := h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		var err error
		entry, err = PostCustomerLedger(tx, CustomerPosting{
			CustomerID:    cmd.CustomerID,
			Kind:          cmd.Kind,
			Debit:         cmd.Debit,
			Credit:        cmd.Credit,
			ReferenceType: domain.ReferenceManual,
			Note:          cmd.Reason,
			Actor:         cmd.Actor,
		})
		return err
	})
	if err != nil {
		return nil, fail(span, "record_adjustment", fmt.Errorf("failed to record adjustment: %w", err))
	}

	logger.Info(ctx).
		Uint("customer_id", cmd.CustomerID).
		Str("kind", string(cmd.Kind)).
		Str("debit", cmd.Debit.StringFixed(2)).
		Str("credit", cmd.Credit.StringFixed(2)).
		Str("balance", entry.Balance.StringFixed(2)).
		Msg("Customer adjustment recorded")

	customerID := cmd.CustomerID
	publishEvent(ctx, h.publisher, domain.LedgerEvent{
		EventType:  domain.EventCustomerAdjusted,
		CustomerID: &customerID,
		Amount:     cmd.Debit.Sub(cmd.Credit),
		Actor:      cmd.Actor,
	})

	return entry, nil
}
