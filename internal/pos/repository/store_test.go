package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

type storeFactory func(t *testing.T) domain.Store

func newSQLiteStore(t *testing.T) domain.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every statement on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store := NewGormStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func newMemoryStore(t *testing.T) domain.Store {
	return NewMemoryStore()
}

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": newMemoryStore,
		"sqlite": newSQLiteStore,
		"traced": func(t *testing.T) domain.Store {
			return NewStoreWithTracing(NewMemoryStore(), "memory")
		},
	}
}

func seedProduct(t *testing.T, store domain.Store, sku string, quantity int64) uint {
	t.Helper()
	var id uint
	err := store.WithinTransaction(context.Background(), func(tx domain.Tx) error {
		product := &domain.Product{SKU: sku, Name: sku, SellingPrice: decimal.NewFromInt(2), IsActive: true}
		if err := tx.CreateProduct(product); err != nil {
			return err
		}
		id = product.ID
		return tx.CreateStockRecord(&domain.StockRecord{ProductID: product.ID, Quantity: quantity, LastReference: "OPENING"})
	})
	require.NoError(t, err)
	return id
}

func TestNextInvoiceNumber(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			var last int64
			for i := 0; i < 5; i++ {
				n, err := store.NextInvoiceNumber(ctx)
				require.NoError(t, err)
				assert.Greater(t, n, last)
				last = n
			}
			assert.Equal(t, int64(5), last)
		})
	}
}

func TestNextInvoiceNumberConcurrent(t *testing.T) {
	store := NewMemoryStore()

	const workers = 50
	numbers := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.NextInvoiceNumber(context.Background())
			if err == nil {
				numbers <- n
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool)
	for n := range numbers {
		assert.False(t, seen[n], "invoice %d issued twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
}

func TestTransactionRollback(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			productID := seedProduct(t, store, "SKU-RB", 5)

			boom := errors.New("boom")
			err := store.WithinTransaction(ctx, func(tx domain.Tx) error {
				if _, err := tx.DecrementStock(productID, 2, "INV-000001"); err != nil {
					return err
				}
				if err := tx.AppendProductLedger(&domain.ProductLedgerEntry{
					ProductID:     productID,
					Kind:          domain.ProductLedgerSale,
					QuantityDelta: -2,
					BalanceAfter:  3,
					ReferenceType: domain.ReferenceSale,
				}); err != nil {
					return err
				}
				return boom
			})
			assert.ErrorIs(t, err, boom)

			err = store.Read(ctx, func(tx domain.Tx) error {
				stock, err := tx.FindStockRecord(productID)
				require.NoError(t, err)
				assert.Equal(t, int64(5), stock.Quantity)
				assert.Equal(t, "OPENING", stock.LastReference)

				entries, err := tx.ListProductLedger(productID)
				require.NoError(t, err)
				assert.Empty(t, entries)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDecrementStock(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			productID := seedProduct(t, store, "SKU-DEC", 3)

			err := store.WithinTransaction(ctx, func(tx domain.Tx) error {
				balance, err := tx.DecrementStock(productID, 3, "INV-000001")
				require.NoError(t, err)
				assert.Equal(t, int64(0), balance)
				return nil
			})
			require.NoError(t, err)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				_, err := tx.DecrementStock(productID, 1, "INV-000002")
				return err
			})
			var stockErr *domain.InsufficientStockError
			require.ErrorAs(t, err, &stockErr)
			assert.Equal(t, productID, stockErr.ProductID)
			assert.Equal(t, int64(1), stockErr.Requested)
			assert.Equal(t, int64(0), stockErr.Available)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				_, err := tx.DecrementStock(999, 1, "INV-000003")
				return err
			})
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestIncrementStock(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			productID := seedProduct(t, store, "SKU-INC", 4)

			err := store.WithinTransaction(context.Background(), func(tx domain.Tx) error {
				balance, err := tx.IncrementStock(productID, 6, "GRN-1")
				require.NoError(t, err)
				assert.Equal(t, int64(10), balance)
				return nil
			})
			require.NoError(t, err)

			err = store.WithinTransaction(context.Background(), func(tx domain.Tx) error {
				_, err := tx.IncrementStock(productID, math.MaxInt64-9, "GRN-2")
				return err
			})
			assert.ErrorIs(t, err, domain.ErrValidation)

			err = store.Read(context.Background(), func(tx domain.Tx) error {
				record, err := tx.FindStockRecord(productID)
				require.NoError(t, err)
				assert.Equal(t, int64(10), record.Quantity)
				assert.Equal(t, "GRN-1", record.LastReference)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDuplicateSale(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			productID := seedProduct(t, store, "SKU-DUP", 10)
			ref := "till-1-0001"

			newSale := func(invoice int64, clientRef *string) *domain.Sale {
				return &domain.Sale{
					InvoiceNumber:   invoice,
					ClientReference: clientRef,
					Total:           decimal.NewFromInt(2),
					RefundedTotal:   decimal.Zero,
					PaymentMode:     domain.PaymentCash,
					Cashier:         "erin",
					Status:          domain.SaleStatusCompleted,
					Items: []domain.SaleLineItem{{
						LineNo:      1,
						ProductID:   productID,
						Quantity:    1,
						UnitPrice:   decimal.NewFromInt(2),
						Subtotal:    decimal.NewFromInt(2),
						PricingMode: domain.PricingRetail,
					}},
				}
			}

			var saleID uint
			err := store.WithinTransaction(ctx, func(tx domain.Tx) error {
				sale := newSale(1, &ref)
				if err := tx.CreateSale(sale); err != nil {
					return err
				}
				saleID = sale.ID
				return nil
			})
			require.NoError(t, err)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				return tx.CreateSale(newSale(1, nil))
			})
			var dupInvoice *domain.DuplicateInvoiceError
			require.ErrorAs(t, err, &dupInvoice)
			assert.Equal(t, int64(1), dupInvoice.InvoiceNumber)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				return tx.CreateSale(newSale(2, &ref))
			})
			var dupRef *domain.DuplicateClientReferenceError
			require.ErrorAs(t, err, &dupRef)
			assert.Equal(t, ref, dupRef.Reference)

			err = store.Read(ctx, func(tx domain.Tx) error {
				byRef, err := tx.FindSaleByClientReference(ref)
				require.NoError(t, err)
				assert.Equal(t, saleID, byRef.ID)

				byInvoice, err := tx.FindSaleByInvoice(1)
				require.NoError(t, err)
				require.Len(t, byInvoice.Items, 1)
				assert.Equal(t, saleID, byInvoice.Items[0].SaleID)

				_, err = tx.FindSaleByInvoice(2)
				assert.ErrorIs(t, err, domain.ErrNotFound)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestReturnsAndStatus(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			productID := seedProduct(t, store, "SKU-RET", 10)

			var sale *domain.Sale
			err := store.WithinTransaction(ctx, func(tx domain.Tx) error {
				sale = &domain.Sale{
					InvoiceNumber: 7,
					Total:         decimal.NewFromInt(4),
					RefundedTotal: decimal.Zero,
					PaymentMode:   domain.PaymentCard,
					Cashier:       "erin",
					Status:        domain.SaleStatusCompleted,
					Items: []domain.SaleLineItem{{
						LineNo: 1, ProductID: productID, Quantity: 2,
						UnitPrice: decimal.NewFromInt(2), Subtotal: decimal.NewFromInt(4),
						PricingMode: domain.PricingRetail,
					}},
				}
				return tx.CreateSale(sale)
			})
			require.NoError(t, err)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				locked, err := tx.LockSale(sale.ID)
				if err != nil {
					return err
				}
				ret := &domain.Return{
					SaleID:       locked.ID,
					TotalRefund:  decimal.NewFromInt(2),
					RefundMethod: "cash",
					ProcessedBy:  "erin",
					Items: []domain.ReturnLineItem{{
						SaleLineItemID: locked.Items[0].ID, ProductID: productID, Quantity: 1,
						UnitPrice: decimal.NewFromInt(2), Subtotal: decimal.NewFromInt(2),
					}},
				}
				if err := tx.CreateReturn(ret); err != nil {
					return err
				}
				return tx.UpdateSaleStatus(locked.ID, domain.SaleStatusPartiallyReturned, decimal.NewFromInt(2))
			})
			require.NoError(t, err)

			err = store.Read(ctx, func(tx domain.Tx) error {
				returns, err := tx.ListReturnsBySale(sale.ID)
				require.NoError(t, err)
				require.Len(t, returns, 1)
				require.Len(t, returns[0].Items, 1)
				assert.Equal(t, int64(1), returns[0].Items[0].Quantity)

				stored, err := tx.FindSale(sale.ID)
				require.NoError(t, err)
				assert.Equal(t, domain.SaleStatusPartiallyReturned, stored.Status)
				assert.True(t, stored.RefundedTotal.Equal(decimal.NewFromInt(2)))
				return nil
			})
			require.NoError(t, err)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				return tx.UpdateSaleStatus(999, domain.SaleStatusCancelled, decimal.Zero)
			})
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestCustomerLedgerChain(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			var customerID uint
			err := store.WithinTransaction(ctx, func(tx domain.Tx) error {
				customer := &domain.Customer{Name: "Frank", OpeningBalance: decimal.NewFromInt(100), CurrentBalance: decimal.NewFromInt(100)}
				if err := tx.CreateCustomer(customer); err != nil {
					return err
				}
				customerID = customer.ID
				return nil
			})
			require.NoError(t, err)

			deltas := []int64{50, -30}
			for _, d := range deltas {
				err := store.WithinTransaction(ctx, func(tx domain.Tx) error {
					balance, seq, err := tx.AdvanceCustomerBalance(customerID, decimal.NewFromInt(d))
					if err != nil {
						return err
					}
					entry := &domain.CustomerLedgerEntry{
						CustomerID: customerID,
						Seq:        seq,
						Kind:       domain.CustomerLedgerAdjustment,
						Balance:    balance,
						Debit:      decimal.Zero,
						Credit:     decimal.Zero,
					}
					if d > 0 {
						entry.Debit = decimal.NewFromInt(d)
					} else {
						entry.Credit = decimal.NewFromInt(-d)
					}
					return tx.AppendCustomerLedger(entry)
				})
				require.NoError(t, err)
			}

			err = store.Read(ctx, func(tx domain.Tx) error {
				customer, err := tx.FindCustomer(customerID)
				require.NoError(t, err)
				assert.True(t, customer.CurrentBalance.Equal(decimal.NewFromInt(120)), customer.CurrentBalance.String())
				assert.Equal(t, int64(2), customer.LedgerSeq)

				entries, err := tx.ListCustomerLedger(customerID)
				require.NoError(t, err)
				require.Len(t, entries, 2)
				assert.Equal(t, int64(1), entries[0].Seq)
				assert.True(t, entries[0].Balance.Equal(decimal.NewFromInt(150)))
				assert.Equal(t, int64(2), entries[1].Seq)
				assert.True(t, entries[1].Balance.Equal(decimal.NewFromInt(120)))
				return nil
			})
			require.NoError(t, err)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				_, _, err := tx.AdvanceCustomerBalance(999, decimal.NewFromInt(1))
				return err
			})
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestDuplicateSKU(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			seedProduct(t, store, "SKU-SAME", 1)

			err := store.WithinTransaction(context.Background(), func(tx domain.Tx) error {
				return tx.CreateProduct(&domain.Product{SKU: "SKU-SAME", Name: "again"})
			})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestMemoryReadIsolation(t *testing.T) {
	store := NewMemoryStore()
	productID := seedProduct(t, store, "SKU-ISO", 2)

	err := store.Read(context.Background(), func(tx domain.Tx) error {
		_, err := tx.IncrementStock(productID, 100, "IGNORED")
		return err
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx domain.Tx) error {
		stock, err := tx.FindStockRecord(productID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stock.Quantity)
		return nil
	})
	require.NoError(t, err)
}

func TestCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.WithinTransaction(ctx, func(tx domain.Tx) error { return nil }), context.Canceled)
	_, err := store.NextInvoiceNumber(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadTxOptions(t *testing.T) {
	opts := readTxOptions("postgres")
	assert.Equal(t, sql.LevelRepeatableRead, opts.Isolation)
	assert.True(t, opts.ReadOnly)

	opts = readTxOptions("sqlite")
	assert.Equal(t, sql.LevelDefault, opts.Isolation)
	assert.False(t, opts.ReadOnly)
}

func TestReadSeesConsistentStockAndLedger(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			productID := seedProduct(t, store, "SKU-SNAP", 7)

			boom := errors.New("boom")
			err := store.Read(ctx, func(tx domain.Tx) error {
				record, err := tx.FindStockRecord(productID)
				require.NoError(t, err)
				assert.Equal(t, int64(7), record.Quantity)
				return boom
			})
			assert.ErrorIs(t, err, boom)

			err = store.WithinTransaction(ctx, func(tx domain.Tx) error {
				balance, err := tx.DecrementStock(productID, 2, "INV-000001")
				if err != nil {
					return err
				}
				return tx.AppendProductLedger(&domain.ProductLedgerEntry{
					ProductID:     productID,
					Kind:          domain.ProductLedgerSale,
					QuantityDelta: -2,
					BalanceAfter:  balance,
					ReferenceType: domain.ReferenceSale,
				})
			})
			require.NoError(t, err)

			err = store.Read(ctx, func(tx domain.Tx) error {
				record, err := tx.FindStockRecord(productID)
				require.NoError(t, err)
				entries, err := tx.ListProductLedger(productID)
				require.NoError(t, err)
				require.Len(t, entries, 1)
				assert.Equal(t, record.Quantity, entries[0].BalanceAfter)
				return nil
			})
			require.NoError(t, err)
		})
	}
}
