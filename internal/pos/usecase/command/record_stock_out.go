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

// RecordStockOutCommand represents a manual, non-sale outflow (damage,
// consumption, issue to a department)
type RecordStockOutCommand struct {
	ProductID uint   `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
	Reason    string `json:"reason" validate:"required,max=255"`
	Actor     string `json:"actor" validate:"max=100"`
}

// RecordStockOutResult holds the audit entry and the new on-hand quantity
type RecordStockOutResult struct {
	Movement     domain.StockMovement `json:"movement"`
	CurrentStock int64                `json:"current_stock"`
}

// RecordStockOutHandler handles record stock out command
type RecordStockOutHandler struct {
	store     domain.Store
	publisher domain.EventPublisher
}

// NewRecordStockOutHandler creates a new record stock out handler
func NewRecordStockOutHandler(store domain.Store, publisher domain.EventPublisher) *RecordStockOutHandler {
	return &RecordStockOutHandler{store: store, publisher: publisher}
}

// Handle executes the record stock out command. The movement is audited in
// the stock movement trail only, never in the product ledger.
func (h *RecordStockOutHandler) Handle(ctx context.Context, cmd RecordStockOutCommand) (*RecordStockOutResult, error) {
	ctx, span := tracer.Start(ctx, "command.RecordStockOut",
		trace.WithAttributes(
			attribute.Int64("product.id", int64(cmd.ProductID)),
			attribute.Int64("stock.quantity", cmd.Quantity),
		),
	)
	defer span.End()

	cmd.Reason = strings.TrimSpace(cmd.Reason)
	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "record_stock_out", err)
	}

	var movement domain.StockMovement
	err := h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		if _, err := tx.FindProduct(cmd.ProductID); err != nil {
			return err
		}

		balance, err := tx.DecrementStock(cmd.ProductID, cmd.Quantity, "STOCK-OUT")
		if err != nil {
			return err
		}

		movement = domain.StockMovement{
			ProductID:    cmd.ProductID,
			Direction:    domain.DirectionOut,
			Quantity:     cmd.Quantity,
			Reason:       cmd.Reason,
			BalanceAfter: balance,
			Actor:        cmd.Actor,
		}
		if err := tx.AppendStockMovement(&movement); err != nil {
			return fmt.Errorf("failed to append stock movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, "record_stock_out", fmt.Errorf("failed to record stock out: %w", err))
	}

	stockMovementsTotal.WithLabelValues("out").Inc()
	span.SetAttributes(attribute.Int64("stock.balance_after", movement.BalanceAfter))

	logger.Info(ctx).
		Uint("product_id", cmd.ProductID).
		Int64("quantity", cmd.Quantity).
		Int64("balance_after", movement.BalanceAfter).
		Str("reason", cmd.Reason).
		Msg("Stock out recorded")

	publishEvent(ctx, h.publisher, domain.LedgerEvent{
		EventType:  domain.EventStockOutRecorded,
		ProductIDs: []uint{cmd.ProductID},
		Amount:     decimal.Zero,
		Actor:      cmd.Actor,
	})

	return &RecordStockOutResult{Movement: movement, CurrentStock: movement.BalanceAfter}, nil
}
