package query_test

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/repository"
	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
	"github.com/tair/pos-ledger/pkg/lock"
	"github.com/tair/pos-ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}

type seeded struct {
	store      *repository.MemoryStore
	productID  uint
	customerID uint
	saleID     uint
	invoice    int64
}

// seed rings up a 4 unit credit sale at 25, returns one unit, takes a payment
// of 30 and writes off 2 units.
func seed(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	publisher := domain.NoopPublisher{}

	product, err := command.NewCreateProductHandler(store).Handle(ctx, command.CreateProductCommand{
		SKU:             "OIL-1L",
		Name:            "Cooking oil 1L",
		CostPrice:       decimal.NewFromInt(18),
		SellingPrice:    decimal.NewFromInt(25),
		OpeningQuantity: 20,
	})
	require.NoError(t, err)
	productID := product.Product.ID

	customer, err := command.NewCreateCustomerHandler(store).Handle(ctx, command.CreateCustomerCommand{
		Name:           "Ken",
		OpeningBalance: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	customerID := customer.Customer.ID

	sale, err := command.NewCreateSaleHandler(store, command.NewNextInvoiceHandler(store), publisher).Handle(ctx, command.CreateSaleCommand{
		Cashier:     "lena",
		PaymentMode: domain.PaymentCredit,
		CustomerID:  &customerID,
		Items:       []command.SaleItemInput{{ProductID: productID, Quantity: 4, PricingMode: domain.PricingRetail}},
	})
	require.NoError(t, err)

	_, err = command.NewCreateReturnHandler(store, lock.NewLocalLocker(), publisher).Handle(ctx, command.CreateReturnCommand{
		SaleID:       sale.SaleID,
		Items:        []command.ReturnItemInput{{ProductID: productID, Quantity: 1}},
		RefundMethod: "account",
		ProcessedBy:  "lena",
	})
	require.NoError(t, err)

	_, err = command.NewRecordPaymentHandler(store, publisher).Handle(ctx, command.RecordPaymentCommand{
		CustomerID: customerID,
		Amount:     decimal.NewFromInt(30),
		Mode:       "cash",
	})
	require.NoError(t, err)

	_, err = command.NewRecordStockOutHandler(store, publisher).Handle(ctx, command.RecordStockOutCommand{
		ProductID: productID,
		Quantity:  2,
		Reason:    "leaking",
	})
	require.NoError(t, err)

	return seeded{store: store, productID: productID, customerID: customerID, saleID: sale.SaleID, invoice: sale.InvoiceNumber}
}

func TestGetSaleByInvoice(t *testing.T) {
	s := seed(t)
	handler := query.NewGetSaleByInvoiceHandler(s.store)

	view, err := handler.Handle(context.Background(), query.GetSaleByInvoiceQuery{InvoiceNumber: s.invoice})
	require.NoError(t, err)
	assert.Equal(t, s.saleID, view.ID)
	assert.Equal(t, domain.SaleStatusPartiallyReturned, view.Status)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, view.RefundedTotal.Equal(decimal.NewFromInt(25)))
	assert.True(t, view.NetTotal.Equal(decimal.NewFromInt(75)))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(1), view.Lines[0].ReturnedQuantity)
	assert.Equal(t, int64(3), view.Lines[0].ReturnableQuantity)
	require.Len(t, view.Returns, 1)

	_, err = handler.Handle(context.Background(), query.GetSaleByInvoiceQuery{InvoiceNumber: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = handler.Handle(context.Background(), query.GetSaleByInvoiceQuery{InvoiceNumber: 404})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetProductLedger(t *testing.T) {
	s := seed(t)
	handler := query.NewGetProductLedgerHandler(s.store)

	view, err := handler.Handle(context.Background(), query.GetProductLedgerQuery{ProductID: s.productID})
	require.NoError(t, err)
	assert.Equal(t, int64(15), view.CurrentStock)

	kinds := make([]domain.ProductLedgerKind, 0, len(view.Entries))
	for _, e := range view.Entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []domain.ProductLedgerKind{
		domain.ProductLedgerOpening,
		domain.ProductLedgerSale,
		domain.ProductLedgerReturn,
	}, kinds)
	assert.Equal(t, int64(17), view.Entries[2].BalanceAfter)

	require.Len(t, view.Movements, 1)
	assert.Equal(t, int64(15), view.Movements[0].BalanceAfter)

	_, err = handler.Handle(context.Background(), query.GetProductLedgerQuery{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = handler.Handle(context.Background(), query.GetProductLedgerQuery{ProductID: 99})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetCustomerLedger(t *testing.T) {
	s := seed(t)
	handler := query.NewGetCustomerLedgerHandler(s.store)

	view, err := handler.Handle(context.Background(), query.GetCustomerLedgerQuery{CustomerID: s.customerID})
	require.NoError(t, err)
	assert.True(t, view.OpeningBalance.Equal(decimal.NewFromInt(10)))
	// 10 + 100 - 25 - 30
	assert.True(t, view.CurrentBalance.Equal(decimal.NewFromInt(55)), view.CurrentBalance.String())
	require.Len(t, view.Transactions, 4)
	assert.True(t, view.Transactions[3].Balance.Equal(view.CurrentBalance))

	_, err = handler.Handle(context.Background(), query.GetCustomerLedgerQuery{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckAvailability(t *testing.T) {
	s := seed(t)
	stock := query.NewGetStockHandler(s.store)
	availability := query.NewCheckAvailabilityHandler(stock)

	level, err := stock.Handle(context.Background(), query.GetStockQuery{ProductID: s.productID})
	require.NoError(t, err)
	assert.Equal(t, int64(15), level.Quantity)
	assert.Equal(t, "STOCK-OUT", level.LastReference)

	res, err := availability.Handle(context.Background(), query.CheckAvailabilityQuery{ProductID: s.productID, Quantity: 15})
	require.NoError(t, err)
	assert.True(t, res.Sufficient)

	res, err = availability.Handle(context.Background(), query.CheckAvailabilityQuery{ProductID: s.productID, Quantity: 16})
	require.NoError(t, err)
	assert.False(t, res.Sufficient)
	assert.Equal(t, int64(15), res.Available)

	_, err = availability.Handle(context.Background(), query.CheckAvailabilityQuery{ProductID: s.productID})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReconciliationConsistent(t *testing.T) {
	s := seed(t)
	handler := query.NewCheckReconciliationHandler(s.store)

	report, err := handler.Handle(context.Background(), query.CheckReconciliationQuery{
		ProductIDs:  []uint{s.productID},
		CustomerIDs: []uint{s.customerID},
		SaleIDs:     []uint{s.saleID},
	})
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Zero(t, report.Violations())

	product := report.Products[0]
	assert.Equal(t, int64(17), product.LedgerQuantity)
	assert.Equal(t, int64(2), product.MovementOut)
	assert.Equal(t, int64(15), product.Expected)

	customer := report.Customers[0]
	assert.Equal(t, 4, customer.Entries)
	assert.True(t, customer.ExpectedBalance.Equal(customer.CurrentBalance))
}

func TestReconciliationDetectsDrift(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	err := s.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		if _, err := tx.DecrementStock(s.productID, 1, "SHRINK"); err != nil {
			return err
		}
		if _, _, err := tx.AdvanceCustomerBalance(s.customerID, decimal.NewFromInt(5)); err != nil {
			return err
		}
		return tx.UpdateSaleStatus(s.saleID, domain.SaleStatusPartiallyReturned, decimal.NewFromInt(40))
	})
	require.NoError(t, err)

	report, err := query.NewCheckReconciliationHandler(s.store).Handle(ctx, query.CheckReconciliationQuery{
		ProductIDs:  []uint{s.productID},
		CustomerIDs: []uint{s.customerID},
		SaleIDs:     []uint{s.saleID},
	})
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, 3, report.Violations())

	assert.Equal(t, int64(14), report.Products[0].StockQuantity)
	assert.Equal(t, int64(15), report.Products[0].Expected)

	customer := report.Customers[0]
	assert.False(t, customer.Consistent)
	assert.Len(t, customer.Problems, 2)

	assert.Len(t, report.Sales[0].Problems, 1)
	assert.Contains(t, report.Sales[0].Problems[0], "refunded total")
}

func TestReconciliationInput(t *testing.T) {
	handler := query.NewCheckReconciliationHandler(repository.NewMemoryStore())

	_, err := handler.Handle(context.Background(), query.CheckReconciliationQuery{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = handler.Handle(context.Background(), query.CheckReconciliationQuery{ProductIDs: []uint{3}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
