package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// GetStockQuery represents the query to read a product's on-hand quantity
type GetStockQuery struct {
	ProductID uint
}

// StockLevel is the current on-hand quantity of a product
type StockLevel struct {
	ProductID     uint   `json:"product_id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Quantity      int64  `json:"quantity"`
	LastReference string `json:"last_reference"`
}

// GetStockHandler handles get stock query
type GetStockHandler struct {
	store domain.Store
}

// NewGetStockHandler creates a new get stock handler
func NewGetStockHandler(store domain.Store) *GetStockHandler {
	return &GetStockHandler{store: store}
}

// Handle executes the get stock query
func (h *GetStockHandler) Handle(ctx context.Context, query GetStockQuery) (*StockLevel, error) {
	ctx, span := tracer.Start(ctx, "query.GetStock",
		trace.WithAttributes(attribute.Int64("product.id", int64(query.ProductID))),
	)
	defer span.End()

	if query.ProductID == 0 {
		return nil, failQuery(span, domain.ValidationError("product_id is required"))
	}

	var level *StockLevel
	err := h.store.Read(ctx, func(tx domain.Tx) error {
		product, err := tx.FindProduct(query.ProductID)
		if err != nil {
			return err
		}
		stock, err := tx.FindStockRecord(query.ProductID)
		if err != nil {
			return err
		}
		level = &StockLevel{
			ProductID:     product.ID,
			SKU:           product.SKU,
			Name:          product.Name,
			Quantity:      stock.Quantity,
			LastReference: stock.LastReference,
		}
		return nil
	})
	if err != nil {
		return nil, failQuery(span, fmt.Errorf("failed to load stock: %w", err))
	}
	return level, nil
}

// CheckAvailabilityQuery asks whether a quantity could be sold right now
type CheckAvailabilityQuery struct {
	ProductID uint
	Quantity  int64
}

// Availability answers a CheckAvailabilityQuery. It is advisory only; the
// sale itself re-checks atomically when it decrements.
type Availability struct {
	ProductID  uint  `json:"product_id"`
	Requested  int64 `json:"requested"`
	Available  int64 `json:"available"`
	Sufficient bool  `json:"sufficient"`
}

// CheckAvailabilityHandler handles check availability query
type CheckAvailabilityHandler struct {
	stock *GetStockHandler
}

// NewCheckAvailabilityHandler creates a new check availability handler
func NewCheckAvailabilityHandler(stock *GetStockHandler) *CheckAvailabilityHandler {
	return &CheckAvailabilityHandler{stock: stock}
}

// Handle executes the check availability query
func (h *CheckAvailabilityHandler) Handle(ctx context.Context, query CheckAvailabilityQuery) (*Availability, error) {
	if query.Quantity <= 0 {
		return nil, domain.ValidationError("quantity must be positive")
	}

	level, err := h.stock.Handle(ctx, GetStockQuery{ProductID: query.ProductID})
	if err != nil {
		return nil, err
	}

	return &Availability{
		ProductID:  level.ProductID,
		Requested:  query.Quantity,
		Available:  level.Quantity,
		Sufficient: level.Quantity >= query.Quantity,
	}, nil
}
