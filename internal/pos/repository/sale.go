package repository

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_no")
}

func orderedReturnItems(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (t *gormTx) CreateSale(sale *domain.Sale) error {
	err := t.db.Create(sale).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}
	if sale.ClientReference != nil && strings.Contains(err.Error(), "client_reference") {
		return &domain.DuplicateClientReferenceError{Reference: *sale.ClientReference}
	}
	return &domain.DuplicateInvoiceError{InvoiceNumber: sale.InvoiceNumber}
}

func (t *gormTx) FindSale(id uint) (*domain.Sale, error) {
	var sale domain.Sale
	if err := t.db.Preload("Items", orderedItems).First(&sale, id).Error; err != nil {
		return nil, notFound(err, "sale", id)
	}
	return &sale, nil
}

// LockSale takes the row lock with SELECT ... FOR UPDATE. The sqlite dialect
// drops the locking clause; its transactions are serialized anyway.
func (t *gormTx) LockSale(id uint) (*domain.Sale, error) {
	var sale domain.Sale
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", orderedItems).
		First(&sale, id).Error
	if err != nil {
		return nil, notFound(err, "sale", id)
	}
	return &sale, nil
}

func (t *gormTx) FindSaleByInvoice(invoiceNumber int64) (*domain.Sale, error) {
	var sale domain.Sale
	err := t.db.Preload("Items", orderedItems).
		Where("invoice_number = ?", invoiceNumber).
		First(&sale).Error
	if err != nil {
		return nil, notFound(err, "sale with invoice", invoiceNumber)
	}
	return &sale, nil
}

func (t *gormTx) FindSaleByClientReference(reference string) (*domain.Sale, error) {
	var sale domain.Sale
	err := t.db.Preload("Items", orderedItems).
		Where("client_reference = ?", reference).
		First(&sale).Error
	if err != nil {
		return nil, notFound(err, "sale with client reference", reference)
	}
	return &sale, nil
}

func (t *gormTx) UpdateSaleStatus(id uint, status domain.SaleStatus, refundedTotal decimal.Decimal) error {
	result := t.db.Model(&domain.Sale{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"refunded_total": refundedTotal,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError("sale", id)
	}
	return nil
}

func (t *gormTx) CreateReturn(ret *domain.Return) error {
	return t.db.Create(ret).Error
}

func (t *gormTx) ListReturnsBySale(saleID uint) ([]domain.Return, error) {
	var returns []domain.Return
	err := t.db.Preload("Items", orderedReturnItems).
		Where("sale_id = ?", saleID).
		Order("id").
		Find(&returns).Error
	return returns, err
}
