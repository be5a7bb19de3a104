package command

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/pkg/logger"
)

// RecordPaymentCommand represents money received from a customer on account
type RecordPaymentCommand struct {
	CustomerID uint            `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Mode       string          `json:"mode" validate:"required,oneof=cash card mobile bank_transfer cheque"`
	Reference  string          `json:"reference" validate:"max=100"`
	Actor      string          `json:"actor" validate:"max=100"`
}

// RecordPaymentResult holds the new balance and the appended entry
type RecordPaymentResult struct {
	NewBalance  decimal.Decimal            `json:"new_balance"`
	LedgerEntry domain.CustomerLedgerEntry `json:"ledger_entry"`
}

// RecordPaymentHandler handles record payment command
type RecordPaymentHandler struct {
	store     domain.Store
	publisher domain.EventPublisher
}

// NewRecordPaymentHandler creates a new record payment handler
func NewRecordPaymentHandler(store domain.Store, publisher domain.EventPublisher) *RecordPaymentHandler {
	return &RecordPaymentHandler{store: store, publisher: publisher}
}

// Handle executes the record payment command. Paying more than is owed is
// allowed and leaves the customer in credit (negative balance).
func (h *RecordPaymentHandler) Handle(ctx context.Context, cmd RecordPaymentCommand) (*RecordPaymentResult, error) {
	ctx, span := tracer.Start(ctx, "command.RecordPayment",
		trace.WithAttributes(
			attribute.Int64("customer.id", int64(cmd.CustomerID)),
			attribute.String("payment.mode", cmd.Mode),
		),
	)
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "record_payment", err)
	}
	if !cmd.Amount.IsPositive() {
		return nil, fail(span, "record_payment", domain.ValidationError("amount must be positive"))
	}

	var entry *domain.CustomerLedgerEntry
	err := h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		var err error
		entry, err = PostCustomerLedger(tx, CustomerPosting{
			CustomerID:    cmd.CustomerID,
			Kind:          domain.CustomerLedgerPayment,
			Debit:         decimal.Zero,
			Credit:        cmd.Amount,
			ReferenceType: domain.ReferencePayment,
			Reference:     cmd.Reference,
			Mode:          cmd.Mode,
			Actor:         cmd.Actor,
		})
		return err
	})
	if err != nil {
		return nil, fail(span, "record_payment", fmt.Errorf("failed to record payment: %w", err))
	}

	logger.Info(ctx).
		Uint("customer_id", cmd.CustomerID).
		Str("amount", cmd.Amount.StringFixed(2)).
		Str("balance", entry.Balance.StringFixed(2)).
		Int64("seq", entry.Seq).
		Msg("Customer payment recorded")

	customerID := cmd.CustomerID
	publishEvent(ctx, h.publisher, domain.LedgerEvent{
		EventType:  domain.EventPaymentRecorded,
		CustomerID: &customerID,
		Amount:     cmd.Amount,
		Actor:      cmd.Actor,
	})

	return &RecordPaymentResult{NewBalance: entry.Balance, LedgerEntry: *entry}, nil
}
