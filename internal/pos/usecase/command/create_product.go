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

// CreateProductCommand represents the command to create a product with its
// stock record
type CreateProductCommand struct {
	SKU                 string          `json:"sku" validate:"required,max=64"`
	Name                string          `json:"name" validate:"required,max=255"`
	CostPrice           decimal.Decimal `json:"cost_price"`
	SellingPrice        decimal.Decimal `json:"selling_price"`
	WholesalePrice      decimal.Decimal `json:"wholesale_price"`
	WholesalePackSize   int64           `json:"wholesale_pack_size" validate:"gte=0"`
	WholesalePiecePrice decimal.Decimal `json:"wholesale_piece_price"`
	OpeningQuantity     int64           `json:"opening_quantity" validate:"gte=0"`
	Actor               string          `json:"actor" validate:"max=100"`
}

// CreateProductResult holds the new product and its stock record
type CreateProductResult struct {
	Product domain.Product     `json:"product"`
	Stock   domain.StockRecord `json:"stock"`
}

// CreateProductHandler handles create product command
type CreateProductHandler struct {
	store domain.Store
}

// NewCreateProductHandler creates a new create product handler
func NewCreateProductHandler(store domain.Store) *CreateProductHandler {
	return &CreateProductHandler{store: store}
}

// Handle executes the create product command. A positive opening quantity is
// recorded as the first product ledger entry.
func (h *CreateProductHandler) Handle(ctx context.Context, cmd CreateProductCommand) (*CreateProductResult, error) {
	ctx, span := tracer.Start(ctx, "command.CreateProduct",
		trace.WithAttributes(attribute.String("product.sku", cmd.SKU)),
	)
	defer span.End()

	cmd.SKU = strings.TrimSpace(cmd.SKU)
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "create_product", err)
	}
	for name, price := range map[string]decimal.Decimal{
		"cost_price":            cmd.CostPrice,
		"selling_price":         cmd.SellingPrice,
		"wholesale_price":       cmd.WholesalePrice,
		"wholesale_piece_price": cmd.WholesalePiecePrice,
	} {
		if price.IsNegative() {
			return nil, fail(span, "create_product", domain.ValidationError("%s must not be negative", name))
		}
	}

	product := domain.Product{
		SKU:                 cmd.SKU,
		Name:                cmd.Name,
		CostPrice:           cmd.CostPrice,
		SellingPrice:        cmd.SellingPrice,
		WholesalePrice:      cmd.WholesalePrice,
		WholesalePackSize:   cmd.WholesalePackSize,
		WholesalePiecePrice: cmd.WholesalePiecePrice,
		IsActive:            true,
	}
	var stock domain.StockRecord

	err := h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		if err := tx.CreateProduct(&product); err != nil {
			return err
		}

		stock = domain.StockRecord{
			ProductID:     product.ID,
			Quantity:      cmd.OpeningQuantity,
			LastReference: "OPENING",
		}
		if err := tx.CreateStockRecord(&stock); err != nil {
			return fmt.Errorf("failed to create stock record: %w", err)
		}

		if cmd.OpeningQuantity == 0 {
			return nil
		}
		return tx.AppendProductLedger(&domain.ProductLedgerEntry{
			ProductID:     product.ID,
			Kind:          domain.ProductLedgerOpening,
			QuantityDelta: cmd.OpeningQuantity,
			BalanceAfter:  cmd.OpeningQuantity,
			UnitPrice:     cmd.CostPrice,
			Amount:        cmd.CostPrice.Mul(decimal.NewFromInt(cmd.OpeningQuantity)),
			ReferenceType: domain.ReferenceProduct,
			ReferenceID:   product.ID,
			Reference:     "OPENING",
			Actor:         cmd.Actor,
		})
	})
	if err != nil {
		return nil, fail(span, "create_product", fmt.Errorf("failed to create product: %w", err))
	}

	if cmd.OpeningQuantity > 0 {
		stockMovementsTotal.WithLabelValues("opening").Inc()
	}

	logger.Info(ctx).
		Uint("product_id", product.ID).
		Str("sku", product.SKU).
		Int64("opening_quantity", cmd.OpeningQuantity).
		Msg("Product created")

	return &CreateProductResult{Product: product, Stock: stock}, nil
}
