package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

type customerBalance struct {
	CurrentBalance decimal.Decimal
	LedgerSeq      int64
}

func (t *gormTx) CreateCustomer(customer *domain.Customer) error {
	return t.db.Create(customer).Error
}

func (t *gormTx) FindCustomer(id uint) (*domain.Customer, error) {
	var customer domain.Customer
	if err := t.db.First(&customer, id).Error; err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &customer, nil
}

// AdvanceCustomerBalance moves the balance and the sequence in one UPDATE. The
// row lock it takes orders concurrent appends for the same customer.
func (t *gormTx) AdvanceCustomerBalance(customerID uint, delta decimal.Decimal) (decimal.Decimal, int64, error) {
	var row customerBalance
	result := t.db.Raw(
		`UPDATE customers
		 SET current_balance = current_balance + ?, ledger_seq = ledger_seq + 1, updated_at = ?
		 WHERE id = ?
		 RETURNING current_balance, ledger_seq`,
		delta, time.Now(), customerID,
	).Scan(&row)
	if result.Error != nil {
		return decimal.Zero, 0, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, 0, domain.NotFoundError("customer", customerID)
	}
	return row.CurrentBalance, row.LedgerSeq, nil
}

func (t *gormTx) AppendCustomerLedger(entry *domain.CustomerLedgerEntry) error {
	return t.db.Create(entry).Error
}

func (t *gormTx) ListCustomerLedger(customerID uint) ([]domain.CustomerLedgerEntry, error) {
	var entries []domain.CustomerLedgerEntry
	err := t.db.Where("customer_id = ?", customerID).Order("seq").Find(&entries).Error
	return entries, err
}
