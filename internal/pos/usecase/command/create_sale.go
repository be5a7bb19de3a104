package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/pkg/logger"
)

// SaleItemInput is one requested line of a sale
type SaleItemInput struct {
	ProductID   uint               `json:"product_id" validate:"required"`
	Quantity    int64              `json:"quantity" validate:"gt=0"`
	PricingMode domain.PricingMode `json:"pricing_mode" validate:"required,oneof=retail wholesale"`
	PackCount   int64              `json:"pack_count" validate:"gte=0"`
}

// CreateSaleCommand represents the command to ring up a sale
type CreateSaleCommand struct {
	Cashier         string             `json:"cashier" validate:"required,max=100"`
	PaymentMode     domain.PaymentMode `json:"payment_mode" validate:"required,oneof=cash card mobile bank_transfer credit"`
	Items           []SaleItemInput    `json:"items" validate:"required,min=1,dive"`
	CustomerID      *uint              `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	ClientReference *string            `json:"client_reference,omitempty" validate:"omitempty,min=1,max=64"`
}

// CreateSaleResult is returned for a new sale or a replayed one
type CreateSaleResult struct {
	SaleID        uint            `json:"sale_id"`
	InvoiceNumber int64           `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	Replayed      bool            `json:"replayed"`
}

// CreateSaleHandler handles create sale command
type CreateSaleHandler struct {
	store     domain.Store
	invoices  *NextInvoiceHandler
	publisher domain.EventPublisher
}

// NewCreateSaleHandler creates a new create sale handler
func NewCreateSaleHandler(store domain.Store, invoices *NextInvoiceHandler, publisher domain.EventPublisher) *CreateSaleHandler {
	return &CreateSaleHandler{store: store, invoices: invoices, publisher: publisher}
}

// Handle executes the create sale command. Stock decrements, ledger entries
// and the sale itself commit together; an oversold line fails the whole sale.
func (h *CreateSaleHandler) Handle(ctx context.Context, cmd CreateSaleCommand) (*CreateSaleResult, error) {
	ctx, span := tracer.Start(ctx, "command.CreateSale",
		trace.WithAttributes(
			attribute.String("sale.cashier", cmd.Cashier),
			attribute.String("sale.payment_mode", string(cmd.PaymentMode)),
			attribute.Int("sale.items", len(cmd.Items)),
		),
	)
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "create_sale", err)
	}
	if cmd.PaymentMode == domain.PaymentCredit && cmd.CustomerID == nil {
		return nil, fail(span, "create_sale", domain.ValidationError("credit sales require a customer"))
	}

	if cmd.ClientReference != nil {
		existing, err := h.findReplay(ctx, *cmd.ClientReference, cmd.Cashier)
		if err != nil {
			return nil, fail(span, "create_sale", err)
		}
		if existing != nil {
			span.SetAttributes(attribute.Bool("sale.replayed", true))
			return existing, nil
		}
	}

	lines, total, err := h.priceSale(ctx, cmd)
	if err != nil {
		return nil, fail(span, "create_sale", err)
	}

	number, err := h.invoices.Handle(ctx)
	if err != nil {
		return nil, fail(span, "create_sale", err)
	}
	span.SetAttributes(attribute.Int64("sale.invoice_number", number))

	sale := &domain.Sale{
		InvoiceNumber:   number,
		ClientReference: cmd.ClientReference,
		Items:           lines,
		Total:           total,
		RefundedTotal:   decimal.Zero,
		PaymentMode:     cmd.PaymentMode,
		Cashier:         cmd.Cashier,
		CustomerID:      cmd.CustomerID,
		Status:          domain.SaleStatusCompleted,
	}

	err = h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		return h.persist(tx, sale)
	})
	if err != nil {
		var dup *domain.DuplicateClientReferenceError
		if errors.As(err, &dup) {
			existing, findErr := h.findReplay(ctx, dup.Reference, cmd.Cashier)
			if errors.Is(findErr, domain.ErrConflict) {
				return nil, fail(span, "create_sale", findErr)
			}
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		logger.Warn(ctx).
			Err(err).
			Int64("invoice_number", number).
			Str("cashier", cmd.Cashier).
			Msg("Sale rolled back")
		return nil, fail(span, "create_sale", fmt.Errorf("failed to create sale: %w", err))
	}

	salesTotal.WithLabelValues(string(sale.PaymentMode)).Inc()
	salesAmountTotal.Add(sale.Total.InexactFloat64())

	logger.Info(ctx).
		Uint("sale_id", sale.ID).
		Int64("invoice_number", sale.InvoiceNumber).
		Str("total", sale.Total.StringFixed(2)).
		Str("cashier", sale.Cashier).
		Int("lines", len(sale.Items)).
		Msg("Sale completed")

	productIDs := make([]uint, 0, len(sale.Items))
	for _, item := range sale.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	publishEvent(ctx, h.publisher, domain.LedgerEvent{
		EventType:     domain.EventSaleCompleted,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		ProductIDs:    productIDs,
		CustomerID:    sale.CustomerID,
		Amount:        sale.Total,
		Actor:         sale.Cashier,
	})

	return &CreateSaleResult{
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		Total:         sale.Total,
	}, nil
}

// priceSale validates every referenced entity and prices the lines before an
// invoice number is reserved, so rejected requests leave no trace.
func (h *CreateSaleHandler) priceSale(ctx context.Context, cmd CreateSaleCommand) ([]domain.SaleLineItem, decimal.Decimal, error) {
	lines := make([]domain.SaleLineItem, 0, len(cmd.Items))
	total := decimal.Zero

	err := h.store.Read(ctx, func(tx domain.Tx) error {
		if cmd.CustomerID != nil {
			if _, err := tx.FindCustomer(*cmd.CustomerID); err != nil {
				return err
			}
		}

		for i, item := range cmd.Items {
			product, err := tx.FindProduct(item.ProductID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return domain.ValidationError("product %d is not active", product.ID)
			}

			line, err := priceLine(product, item, i+1)
			if err != nil {
				return err
			}
			lines = append(lines, line)
			total = total.Add(line.Subtotal)
		}
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to price sale: %w", err)
	}
	return lines, total, nil
}

func (h *CreateSaleHandler) persist(tx domain.Tx, sale *domain.Sale) error {
	if err := tx.CreateSale(sale); err != nil {
		return err
	}

	reference := invoiceReference(sale.InvoiceNumber)
	balances := make([]int64, len(sale.Items))
	for _, i := range stockLockOrder(len(sale.Items), func(i int) uint { return sale.Items[i].ProductID }) {
		balance, err := tx.DecrementStock(sale.Items[i].ProductID, sale.Items[i].Quantity, reference)
		if err != nil {
			return err
		}
		balances[i] = balance
	}

	for i, item := range sale.Items {
		err := tx.AppendProductLedger(&domain.ProductLedgerEntry{
			ProductID:     item.ProductID,
			Kind:          domain.ProductLedgerSale,
			QuantityDelta: -item.Quantity,
			BalanceAfter:  balances[i],
			UnitPrice:     item.UnitPrice,
			Amount:        item.Subtotal,
			ReferenceType: domain.ReferenceSale,
			ReferenceID:   sale.ID,
			Reference:     reference,
			Actor:         sale.Cashier,
		})
		if err != nil {
			return fmt.Errorf("failed to append product ledger entry: %w", err)
		}
	}

	if sale.CustomerID == nil {
		return nil
	}
	_, err := PostCustomerLedger(tx, CustomerPosting{
		CustomerID:    *sale.CustomerID,
		Kind:          domain.CustomerLedgerSale,
		Debit:         sale.Total,
		Credit:        decimal.Zero,
		ReferenceType: domain.ReferenceSale,
		ReferenceID:   sale.ID,
		Reference:     reference,
		Mode:          string(sale.PaymentMode),
		Actor:         sale.Cashier,
	})
	return err
}

// findReplay returns the sale already stored under reference. A reference is
// only replayed for the cashier that created it; anyone else gets a conflict
// instead of another terminal's sale.
func (h *CreateSaleHandler) findReplay(ctx context.Context, reference, cashier string) (*CreateSaleResult, error) {
	var result *CreateSaleResult
	err := h.store.Read(ctx, func(tx domain.Tx) error {
		sale, err := tx.FindSaleByClientReference(reference)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sale.Cashier != cashier {
			return &domain.ClientReferenceTakenError{Reference: reference}
		}
		result = &CreateSaleResult{
			SaleID:        sale.ID,
			InvoiceNumber: sale.InvoiceNumber,
			Total:         sale.Total,
			Replayed:      true,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up client reference: %w", err)
	}
	return result, nil
}
