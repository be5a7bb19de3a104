package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// GetProductLedgerQuery represents the query to load a product's audit trails
type GetProductLedgerQuery struct {
	ProductID uint
}

// ProductLedgerView shows both audit trails of a product. Entries carry the
// on-hand balance recorded when they were written; manual outflows live in
// Movements and are never repeated in Entries.
type ProductLedgerView struct {
	Product      domain.Product              `json:"product"`
	CurrentStock int64                       `json:"current_stock"`
	Entries      []domain.ProductLedgerEntry `json:"entries"`
	Movements    []domain.StockMovement      `json:"movements"`
}

// GetProductLedgerHandler handles get product ledger query
type GetProductLedgerHandler struct {
	store domain.Store
}

// NewGetProductLedgerHandler creates a new get product ledger handler
func NewGetProductLedgerHandler(store domain.Store) *GetProductLedgerHandler {
	return &GetProductLedgerHandler{store: store}
}

// Handle executes the get product ledger query
func (h *GetProductLedgerHandler) Handle(ctx context.Context, query GetProductLedgerQuery) (*ProductLedgerView, error) {
	ctx, span := tracer.Start(ctx, "query.GetProductLedger",
		trace.WithAttributes(attribute.Int64("product.id", int64(query.ProductID))),
	)
	defer span.End()

	if query.ProductID == 0 {
		return nil, failQuery(span, domain.ValidationError("product_id is required"))
	}

	view := &ProductLedgerView{}
	err := h.store.Read(ctx, func(tx domain.Tx) error {
		product, err := tx.FindProduct(query.ProductID)
		if err != nil {
			return err
		}
		view.Product = *product

		stock, err := tx.FindStockRecord(query.ProductID)
		if err != nil {
			return err
		}
		view.CurrentStock = stock.Quantity

		if view.Entries, err = tx.ListProductLedger(query.ProductID); err != nil {
			return err
		}
		view.Movements, err = tx.ListStockMovements(query.ProductID)
		return err
	})
	if err != nil {
		return nil, failQuery(span, fmt.Errorf("failed to load product ledger: %w", err))
	}

	if view.Entries == nil {
		view.Entries = []domain.ProductLedgerEntry{}
	}
	if view.Movements == nil {
		view.Movements = []domain.StockMovement{}
	}
	span.SetAttributes(attribute.Int("ledger.entries", len(view.Entries)))
	return view, nil
}
