package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

var tracer = otel.Tracer("pos-query")

// GetSaleByInvoiceQuery represents the query to load a sale by invoice number
type GetSaleByInvoiceQuery struct {
	InvoiceNumber int64
}

// SaleLineView is a sale line with what has come back against it
type SaleLineView struct {
	domain.SaleLineItem
	ReturnedQuantity   int64           `json:"returned_quantity"`
	ReturnableQuantity int64           `json:"returnable_quantity"`
	RefundedAmount     decimal.Decimal `json:"refunded_amount"`
}

// SaleView is a sale rebuilt from its persisted lines and returns. Totals are
// recomputed on every read and never taken from the stored header.
type SaleView struct {
	ID              uint               `json:"id"`
	InvoiceNumber   int64              `json:"invoice_number"`
	ClientReference *string            `json:"client_reference,omitempty"`
	PaymentMode     domain.PaymentMode `json:"payment_mode"`
	Cashier         string             `json:"cashier"`
	CustomerID      *uint              `json:"customer_id,omitempty"`
	Status          domain.SaleStatus  `json:"status"`
	Lines           []SaleLineView     `json:"lines"`
	Returns         []domain.Return    `json:"returns"`
	Total           decimal.Decimal    `json:"total"`
	RefundedTotal   decimal.Decimal    `json:"refunded_total"`
	NetTotal        decimal.Decimal    `json:"net_total"`
	CreatedAt       time.Time          `json:"created_at"`
}

// GetSaleByInvoiceHandler handles get sale by invoice query
type GetSaleByInvoiceHandler struct {
	store domain.Store
}

// NewGetSaleByInvoiceHandler creates a new get sale by invoice handler
func NewGetSaleByInvoiceHandler(store domain.Store) *GetSaleByInvoiceHandler {
	return &GetSaleByInvoiceHandler{store: store}
}

// Handle executes the get sale by invoice query
func (h *GetSaleByInvoiceHandler) Handle(ctx context.Context, query GetSaleByInvoiceQuery) (*SaleView, error) {
	ctx, span := tracer.Start(ctx, "query.GetSaleByInvoice",
		trace.WithAttributes(attribute.Int64("sale.invoice_number", query.InvoiceNumber)),
	)
	defer span.End()

	if query.InvoiceNumber <= 0 {
		return nil, failQuery(span, domain.ValidationError("invoice number must be positive"))
	}

	var view *SaleView
	err := h.store.Read(ctx, func(tx domain.Tx) error {
		sale, err := tx.FindSaleByInvoice(query.InvoiceNumber)
		if err != nil {
			return err
		}
		returns, err := tx.ListReturnsBySale(sale.ID)
		if err != nil {
			return err
		}
		view = BuildSaleView(sale, returns)
		return nil
	})
	if err != nil {
		return nil, failQuery(span, fmt.Errorf("failed to load sale: %w", err))
	}

	return view, nil
}

// BuildSaleView reconstructs the sale totals from lines and returns
func BuildSaleView(sale *domain.Sale, returns []domain.Return) *SaleView {
	tally := domain.TallyReturns(returns)

	view := &SaleView{
		ID:              sale.ID,
		InvoiceNumber:   sale.InvoiceNumber,
		ClientReference: sale.ClientReference,
		PaymentMode:     sale.PaymentMode,
		Cashier:         sale.Cashier,
		CustomerID:      sale.CustomerID,
		Status:          sale.Status,
		Lines:           make([]SaleLineView, 0, len(sale.Items)),
		Returns:         returns,
		Total:           sale.LineTotal(),
		RefundedTotal:   decimal.Zero,
		CreatedAt:       sale.CreatedAt,
	}
	if view.Returns == nil {
		view.Returns = []domain.Return{}
	}

	for _, item := range sale.Items {
		returned := tally.Quantity[item.ID]
		refunded := tally.Refunded[item.ID]
		view.Lines = append(view.Lines, SaleLineView{
			SaleLineItem:       item,
			ReturnedQuantity:   returned,
			ReturnableQuantity: item.Quantity - returned,
			RefundedAmount:     refunded,
		})
		view.RefundedTotal = view.RefundedTotal.Add(refunded)
	}
	view.NetTotal = view.Total.Sub(view.RefundedTotal)
	return view
}

func failQuery(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
