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

// RecordStockInCommand represents goods received into stock
type RecordStockInCommand struct {
	ProductID uint            `json:"product_id" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reference string          `json:"reference" validate:"max=64"`
	Actor     string          `json:"actor" validate:"max=100"`
}

// RecordStockInResult holds the ledger entry and the new on-hand quantity
type RecordStockInResult struct {
	Entry        domain.ProductLedgerEntry `json:"entry"`
	CurrentStock int64                     `json:"current_stock"`
}

// RecordStockInHandler handles record stock in command
type RecordStockInHandler struct {
	store     domain.Store
	publisher domain.EventPublisher
}

// NewRecordStockInHandler creates a new record stock in handler
func NewRecordStockInHandler(store domain.Store, publisher domain.EventPublisher) *RecordStockInHandler {
	return &RecordStockInHandler{store: store, publisher: publisher}
}

// Handle executes the record stock in command
func (h *RecordStockInHandler) Handle(ctx context.Context, cmd RecordStockInCommand) (*RecordStockInResult, error) {
	ctx, span := tracer.Start(ctx, "command.RecordStockIn",
		trace.WithAttributes(
			attribute.Int64("product.id", int64(cmd.ProductID)),
			attribute.Int64("stock.quantity", cmd.Quantity),
		),
	)
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "record_stock_in", err)
	}
	if cmd.UnitCost.IsNegative() {
		return nil, fail(span, "record_stock_in", domain.ValidationError("unit cost must not be negative"))
	}

	var entry domain.ProductLedgerEntry
	err := h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		if _, err := tx.FindProduct(cmd.ProductID); err != nil {
			return err
		}

		balance, err := tx.IncrementStock(cmd.ProductID, cmd.Quantity, cmd.Reference)
		if err != nil {
			return err
		}

		entry = domain.ProductLedgerEntry{
			ProductID:     cmd.ProductID,
			Kind:          domain.ProductLedgerStockIn,
			QuantityDelta: cmd.Quantity,
			BalanceAfter:  balance,
			UnitPrice:     cmd.UnitCost,
			Amount:        cmd.UnitCost.Mul(decimal.NewFromInt(cmd.Quantity)),
			ReferenceType: domain.ReferenceStockIn,
			ReferenceID:   cmd.ProductID,
			Reference:     cmd.Reference,
			Actor:         cmd.Actor,
		}
		if err := tx.AppendProductLedger(&entry); err != nil {
			return fmt.Errorf("failed to append product ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, "record_stock_in", fmt.Errorf("failed to record stock in: %w", err))
	}

	stockMovementsTotal.WithLabelValues("in").Inc()

	logger.Info(ctx).
		Uint("product_id", cmd.ProductID).
		Int64("quantity", cmd.Quantity).
		Int64("balance_after", entry.BalanceAfter).
		Str("reference", cmd.Reference).
		Msg("Stock in recorded")

	publishEvent(ctx, h.publisher, domain.LedgerEvent{
		EventType:  domain.EventStockInRecorded,
		ProductIDs: []uint{cmd.ProductID},
		Amount:     entry.Amount,
		Actor:      cmd.Actor,
	})

	return &RecordStockInResult{Entry: entry, CurrentStock: entry.BalanceAfter}, nil
}
