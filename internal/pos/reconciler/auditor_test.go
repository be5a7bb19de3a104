package reconciler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/repository"
	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
	"github.com/tair/pos-ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (p *capturePublisher) PublishLedgerEvent(_ context.Context, event domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type failingChecker struct{}

func (failingChecker) Handle(context.Context, query.CheckReconciliationQuery) (*query.ReconciliationReport, error) {
	return nil, errors.New("database is down")
}

func seedSale(t *testing.T, store domain.Store) (uint, domain.LedgerEvent) {
	t.Helper()
	ctx := context.Background()

	product, err := command.NewCreateProductHandler(store).Handle(ctx, command.CreateProductCommand{
		SKU:             "RICE-1",
		Name:            "Rice 1kg",
		SellingPrice:    decimal.NewFromInt(2),
		OpeningQuantity: 10,
	})
	require.NoError(t, err)

	capture := &capturePublisher{}
	sales := command.NewCreateSaleHandler(store, command.NewNextInvoiceHandler(store), capture)
	_, err = sales.Handle(ctx, command.CreateSaleCommand{
		Cashier:     "dana",
		PaymentMode: domain.PaymentCash,
		Items: []command.SaleItemInput{
			{ProductID: product.Product.ID, Quantity: 3, PricingMode: domain.PricingRetail},
		},
	})
	require.NoError(t, err)
	require.Len(t, capture.events, 1)
	return product.Product.ID, capture.events[0]
}

func TestHandleEventAndSweep(t *testing.T) {
	store := repository.NewMemoryStore()
	productID, event := seedSale(t, store)
	auditor := NewAuditor(query.NewCheckReconciliationHandler(store))

	require.NoError(t, auditor.HandleEvent(context.Background(), event))

	report, err := auditor.Sweep(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Consistent)
	require.Len(t, report.Products, 1)
	assert.Equal(t, productID, report.Products[0].ProductID)
	assert.Equal(t, int64(7), report.Products[0].StockQuantity)
	require.Len(t, report.Sales, 1)
	assert.Equal(t, event.SaleID, report.Sales[0].SaleID)
}

func TestSweepDetectsDrift(t *testing.T) {
	store := repository.NewMemoryStore()
	productID, event := seedSale(t, store)
	auditor := NewAuditor(query.NewCheckReconciliationHandler(store))
	require.NoError(t, auditor.HandleEvent(context.Background(), event))

	// a quantity change with no ledger entry or movement behind it
	err := store.WithinTransaction(context.Background(), func(tx domain.Tx) error {
		_, err := tx.IncrementStock(productID, 5, "GHOST")
		return err
	})
	require.NoError(t, err)

	report, err := auditor.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, 1, report.Violations())
	assert.Equal(t, int64(12), report.Products[0].StockQuantity)
	assert.Equal(t, int64(7), report.Products[0].Expected)
}

type pageChecker struct {
	sizes []int
}

func (c *pageChecker) Handle(_ context.Context, q query.CheckReconciliationQuery) (*query.ReconciliationReport, error) {
	c.sizes = append(c.sizes, len(q.ProductIDs)+len(q.CustomerIDs)+len(q.SaleIDs))
	report := &query.ReconciliationReport{Consistent: true}
	for _, id := range q.ProductIDs {
		report.Products = append(report.Products, query.ProductReconciliation{ProductID: id, Consistent: true})
	}
	return report, nil
}

func TestSweepSkipsMissingRecords(t *testing.T) {
	store := repository.NewMemoryStore()
	productID, event := seedSale(t, store)
	auditor := NewAuditor(query.NewCheckReconciliationHandler(store))
	require.NoError(t, auditor.HandleEvent(context.Background(), event))

	customerID := uint(404)
	auditor.track(query.CheckReconciliationQuery{
		ProductIDs:  []uint{999},
		CustomerIDs: []uint{customerID},
		SaleIDs:     []uint{999},
	})

	report, err := auditor.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	require.Len(t, report.Products, 1)
	assert.Equal(t, productID, report.Products[0].ProductID)
	require.Len(t, report.Sales, 1)
	assert.Equal(t, event.SaleID, report.Sales[0].SaleID)
	assert.Empty(t, report.Customers)

	q := auditor.tracked()
	assert.Equal(t, []uint{productID}, q.ProductIDs)
	assert.Equal(t, []uint{event.SaleID}, q.SaleIDs)
	assert.Empty(t, q.CustomerIDs)
}

func TestSweepChecksInPages(t *testing.T) {
	checker := &pageChecker{}
	auditor := NewAuditor(checker)

	ids := make([]uint, 0, 250)
	for id := uint(1); id <= 250; id++ {
		ids = append(ids, id)
	}
	auditor.track(query.CheckReconciliationQuery{ProductIDs: ids})

	report, err := auditor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, checker.sizes)
	assert.Len(t, report.Products, 250)
	assert.True(t, report.Consistent)
}

func TestTrackedIDsAreCapped(t *testing.T) {
	auditor := NewAuditor(failingChecker{}, WithMaxTracked(2))

	auditor.track(query.CheckReconciliationQuery{ProductIDs: []uint{1, 2, 3}, SaleIDs: []uint{7}})
	assert.Equal(t, []uint{2, 3}, auditor.tracked().ProductIDs)
	assert.Equal(t, []uint{7}, auditor.tracked().SaleIDs)

	// touching 2 again makes 3 the oldest
	auditor.track(query.CheckReconciliationQuery{ProductIDs: []uint{2}})
	auditor.track(query.CheckReconciliationQuery{ProductIDs: []uint{4}})
	assert.Equal(t, []uint{2, 4}, auditor.tracked().ProductIDs)

	assert.Equal(t, defaultMaxTracked, NewAuditor(failingChecker{}, WithMaxTracked(0)).maxTracked)
}

func TestSweepWithNothingTracked(t *testing.T) {
	auditor := NewAuditor(failingChecker{})

	report, err := auditor.Sweep(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, report)
}

func TestHandleEventWithoutRecords(t *testing.T) {
	auditor := NewAuditor(failingChecker{})
	assert.NoError(t, auditor.HandleEvent(context.Background(), domain.LedgerEvent{EventID: "evt"}))
}

func TestHandleEventCheckerError(t *testing.T) {
	auditor := NewAuditor(failingChecker{})
	customerID := uint(4)

	err := auditor.HandleEvent(context.Background(), domain.LedgerEvent{
		EventID:    "evt",
		EventType:  domain.EventPaymentRecorded,
		CustomerID: &customerID,
	})
	assert.EqualError(t, err, "failed to reconcile: database is down")

	q := auditor.tracked()
	assert.Equal(t, []uint{4}, q.CustomerIDs)
	assert.Empty(t, q.ProductIDs)
}

func TestRunStopsOnCancel(t *testing.T) {
	auditor := NewAuditor(failingChecker{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		auditor.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	auditor.Run(context.Background(), 0)
}

func TestEventTypes(t *testing.T) {
	assert.Len(t, EventTypes(), 6)
}
