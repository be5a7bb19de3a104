package repository

import (
	"math"
	"time"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

func (t *gormTx) CreateProduct(product *domain.Product) error {
	if err := t.db.Create(product).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ValidationError("sku %q already exists", product.SKU)
		}
		return err
	}
	return nil
}

func (t *gormTx) FindProduct(id uint) (*domain.Product, error) {
	var product domain.Product
	if err := t.db.First(&product, id).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return &product, nil
}

func (t *gormTx) CreateStockRecord(record *domain.StockRecord) error {
	return t.db.Create(record).Error
}

func (t *gormTx) FindStockRecord(productID uint) (*domain.StockRecord, error) {
	var record domain.StockRecord
	if err := t.db.Where("product_id = ?", productID).First(&record).Error; err != nil {
		return nil, notFound(err, "stock record for product", productID)
	}
	return &record, nil
}

// DecrementStock subtracts quantity only when enough is on hand. The check and
// the write are one statement, so two cashiers can never both pass the check
// against the same units.
func (t *gormTx) DecrementStock(productID uint, quantity int64, reference string) (int64, error) {
	var balance int64
	result := t.db.Raw(
		`UPDATE stock_records
		 SET quantity = quantity - ?, last_reference = ?, updated_at = ?
		 WHERE product_id = ? AND quantity >= ?
		 RETURNING quantity`,
		quantity, reference, time.Now(), productID, quantity,
	).Scan(&balance)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		return balance, nil
	}

	record, err := t.FindStockRecord(productID)
	if err != nil {
		return 0, err
	}
	return 0, &domain.InsufficientStockError{
		ProductID: productID,
		Requested: quantity,
		Available: record.Quantity,
	}
}

func (t *gormTx) IncrementStock(productID uint, quantity int64, reference string) (int64, error) {
	now := time.Now()
	var balance int64
	result := t.db.Raw(
		`INSERT INTO stock_records (product_id, quantity, last_reference, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (product_id) DO UPDATE
		 SET quantity = stock_records.quantity + excluded.quantity,
		     last_reference = excluded.last_reference,
		     updated_at = excluded.updated_at
		 WHERE stock_records.quantity <= ?
		 RETURNING quantity`,
		productID, quantity, reference, now, now, math.MaxInt64-quantity,
	).Scan(&balance)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		return balance, nil
	}

	// the upsert skipped the update: the existing balance has no headroom left
	record, err := t.FindStockRecord(productID)
	if err != nil {
		return 0, err
	}
	return 0, domain.StockOverflowError(productID, record.Quantity, quantity)
}

func (t *gormTx) AppendStockMovement(movement *domain.StockMovement) error {
	return t.db.Create(movement).Error
}

func (t *gormTx) ListStockMovements(productID uint) ([]domain.StockMovement, error) {
	var movements []domain.StockMovement
	err := t.db.Where("product_id = ?", productID).Order("id").Find(&movements).Error
	return movements, err
}

func (t *gormTx) AppendProductLedger(entry *domain.ProductLedgerEntry) error {
	return t.db.Create(entry).Error
}

func (t *gormTx) ListProductLedger(productID uint) ([]domain.ProductLedgerEntry, error) {
	var entries []domain.ProductLedgerEntry
	err := t.db.Where("product_id = ?", productID).Order("id").Find(&entries).Error
	return entries, err
}
