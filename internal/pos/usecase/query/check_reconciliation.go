package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// CheckReconciliationQuery names the products, customers and sales to audit
type CheckReconciliationQuery struct {
	ProductIDs  []uint
	CustomerIDs []uint
	SaleIDs     []uint
}

// ProductReconciliation compares a stock record with its two audit trails
type ProductReconciliation struct {
	ProductID      uint     `json:"product_id"`
	StockQuantity  int64    `json:"stock_quantity"`
	LedgerQuantity int64    `json:"ledger_quantity"`
	MovementIn     int64    `json:"movement_in"`
	MovementOut    int64    `json:"movement_out"`
	Expected       int64    `json:"expected"`
	Consistent     bool     `json:"consistent"`
	Problems       []string `json:"problems,omitempty"`
}

// CustomerReconciliation compares a customer balance with its ledger chain
type CustomerReconciliation struct {
	CustomerID      uint            `json:"customer_id"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	Entries         int             `json:"entries"`
	Consistent      bool            `json:"consistent"`
	Problems        []string        `json:"problems,omitempty"`
}

// SaleReconciliation checks a sale header and its returns
type SaleReconciliation struct {
	SaleID     uint     `json:"sale_id"`
	Consistent bool     `json:"consistent"`
	Problems   []string `json:"problems,omitempty"`
}

// ReconciliationReport is the outcome of one audit run
type ReconciliationReport struct {
	Products   []ProductReconciliation  `json:"products"`
	Customers  []CustomerReconciliation `json:"customers"`
	Sales      []SaleReconciliation     `json:"sales"`
	Consistent bool                     `json:"consistent"`
}

// Violations counts the audited records that failed a check
func (r *ReconciliationReport) Violations() int {
	n := 0
	for _, p := range r.Products {
		if !p.Consistent {
			n++
		}
	}
	for _, c := range r.Customers {
		if !c.Consistent {
			n++
		}
	}
	for _, s := range r.Sales {
		if !s.Consistent {
			n++
		}
	}
	return n
}

// CheckReconciliationHandler handles check reconciliation query
type CheckReconciliationHandler struct {
	store domain.Store
}

// NewCheckReconciliationHandler creates a new check reconciliation handler
func NewCheckReconciliationHandler(store domain.Store) *CheckReconciliationHandler {
	return &CheckReconciliationHandler{store: store}
}

// Handle executes the check reconciliation query. Every check reads committed
// data only and writes nothing.
func (h *CheckReconciliationHandler) Handle(ctx context.Context, query CheckReconciliationQuery) (*ReconciliationReport, error) {
	ctx, span := tracer.Start(ctx, "query.CheckReconciliation",
		trace.WithAttributes(
			attribute.Int("reconcile.products", len(query.ProductIDs)),
			attribute.Int("reconcile.customers", len(query.CustomerIDs)),
			attribute.Int("reconcile.sales", len(query.SaleIDs)),
		),
	)
	defer span.End()

	if len(query.ProductIDs)+len(query.CustomerIDs)+len(query.SaleIDs) == 0 {
		return nil, failQuery(span, domain.ValidationError("nothing to reconcile"))
	}

	report := &ReconciliationReport{
		Products:  []ProductReconciliation{},
		Customers: []CustomerReconciliation{},
		Sales:     []SaleReconciliation{},
	}
	err := h.store.Read(ctx, func(tx domain.Tx) error {
		for _, id := range query.ProductIDs {
			result, err := reconcileProduct(tx, id)
			if err != nil {
				return err
			}
			report.Products = append(report.Products, *result)
		}
		for _, id := range query.CustomerIDs {
			result, err := reconcileCustomer(tx, id)
			if err != nil {
				return err
			}
			report.Customers = append(report.Customers, *result)
		}
		for _, id := range query.SaleIDs {
			result, err := reconcileSale(tx, id)
			if err != nil {
				return err
			}
			report.Sales = append(report.Sales, *result)
		}
		return nil
	})
	if err != nil {
		return nil, failQuery(span, fmt.Errorf("failed to reconcile: %w", err))
	}

	report.Consistent = report.Violations() == 0
	span.SetAttributes(attribute.Int("reconcile.violations", report.Violations()))
	return report, nil
}

// reconcileProduct checks quantity == Σ ledger deltas (opening included)
// + Σ manual in − Σ manual out, and that stock is not negative.
func reconcileProduct(tx domain.Tx, productID uint) (*ProductReconciliation, error) {
	stock, err := tx.FindStockRecord(productID)
	if err != nil {
		return nil, err
	}
	entries, err := tx.ListProductLedger(productID)
	if err != nil {
		return nil, err
	}
	movements, err := tx.ListStockMovements(productID)
	if err != nil {
		return nil, err
	}

	result := &ProductReconciliation{ProductID: productID, StockQuantity: stock.Quantity}
	for _, e := range entries {
		result.LedgerQuantity += e.QuantityDelta
	}
	for _, m := range movements {
		if m.Direction == domain.DirectionIn {
			result.MovementIn += m.Quantity
		} else {
			result.MovementOut += m.Quantity
		}
	}
	result.Expected = result.LedgerQuantity + result.MovementIn - result.MovementOut

	if stock.Quantity < 0 {
		result.Problems = append(result.Problems, fmt.Sprintf("negative stock %d", stock.Quantity))
	}
	if stock.Quantity != result.Expected {
		result.Problems = append(result.Problems,
			fmt.Sprintf("stock %d differs from audit trails %d", stock.Quantity, result.Expected))
	}
	result.Consistent = len(result.Problems) == 0
	return result, nil
}

// reconcileCustomer walks the chain in sequence order and checks every link
// plus current == opening + Σdebit − Σcredit.
func reconcileCustomer(tx domain.Tx, customerID uint) (*CustomerReconciliation, error) {
	customer, err := tx.FindCustomer(customerID)
	if err != nil {
		return nil, err
	}
	entries, err := tx.ListCustomerLedger(customerID)
	if err != nil {
		return nil, err
	}

	result := &CustomerReconciliation{
		CustomerID:     customerID,
		OpeningBalance: customer.OpeningBalance,
		CurrentBalance: customer.CurrentBalance,
		Entries:        len(entries),
	}

	running := customer.OpeningBalance
	var lastSeq int64
	for _, e := range entries {
		if e.Seq <= lastSeq {
			result.Problems = append(result.Problems, fmt.Sprintf("sequence %d does not follow %d", e.Seq, lastSeq))
		}
		lastSeq = e.Seq

		running = running.Add(e.Debit).Sub(e.Credit)
		if !running.Equal(e.Balance) {
			result.Problems = append(result.Problems,
				fmt.Sprintf("entry %d balance %s, expected %s", e.Seq, e.Balance.String(), running.String()))
			running = e.Balance
		}
	}

	result.ExpectedBalance = customer.OpeningBalance
	for _, e := range entries {
		result.ExpectedBalance = result.ExpectedBalance.Add(e.Debit).Sub(e.Credit)
	}
	if !customer.CurrentBalance.Equal(result.ExpectedBalance) {
		result.Problems = append(result.Problems,
			fmt.Sprintf("current balance %s, expected %s", customer.CurrentBalance.String(), result.ExpectedBalance.String()))
	}
	if customer.LedgerSeq != lastSeq {
		result.Problems = append(result.Problems,
			fmt.Sprintf("ledger sequence %d, last entry %d", customer.LedgerSeq, lastSeq))
	}

	result.Consistent = len(result.Problems) == 0
	return result, nil
}

// reconcileSale checks the stored total, the return bound per line and the
// stored refunded total.
func reconcileSale(tx domain.Tx, saleID uint) (*SaleReconciliation, error) {
	sale, err := tx.FindSale(saleID)
	if err != nil {
		return nil, err
	}
	returns, err := tx.ListReturnsBySale(saleID)
	if err != nil {
		return nil, err
	}

	view := BuildSaleView(sale, returns)
	result := &SaleReconciliation{SaleID: saleID}

	if !view.Total.Equal(sale.Total) {
		result.Problems = append(result.Problems,
			fmt.Sprintf("stored total %s, lines sum to %s", sale.Total.String(), view.Total.String()))
	}
	if !view.RefundedTotal.Equal(sale.RefundedTotal) {
		result.Problems = append(result.Problems,
			fmt.Sprintf("stored refunded total %s, returns sum to %s", sale.RefundedTotal.String(), view.RefundedTotal.String()))
	}
	for _, line := range view.Lines {
		if line.ReturnableQuantity < 0 {
			result.Problems = append(result.Problems,
				fmt.Sprintf("line %d returned %d of %d", line.LineNo, line.ReturnedQuantity, line.Quantity))
		}
	}

	result.Consistent = len(result.Problems) == 0
	return result, nil
}
