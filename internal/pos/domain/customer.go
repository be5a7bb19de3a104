package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer buys on account. CurrentBalance is what the customer owes and always
// equals OpeningBalance plus ledger debits minus ledger credits.
type Customer struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	Name           string          `json:"name" gorm:"size:255;not null"`
	Phone          string          `json:"phone" gorm:"size:32;index"`
	OpeningBalance decimal.Decimal `json:"opening_balance" gorm:"type:decimal(20,4);not null;default:0"`
	CurrentBalance decimal.Decimal `json:"current_balance" gorm:"type:decimal(20,4);not null;default:0"`
	LedgerSeq      int64           `json:"ledger_seq" gorm:"not null;default:0"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (Customer) TableName() string {
	return "customers"
}

// CustomerLedgerKind classifies a money movement on a customer account
type CustomerLedgerKind string

const (
	CustomerLedgerOpening    CustomerLedgerKind = "opening"
	CustomerLedgerSale       CustomerLedgerKind = "sale"
	CustomerLedgerPayment    CustomerLedgerKind = "payment"
	CustomerLedgerReturn     CustomerLedgerKind = "return"
	CustomerLedgerAdjustment CustomerLedgerKind = "adjustment"
	CustomerLedgerCreditNote CustomerLedgerKind = "credit_note"
)

// CustomerLedgerEntry is one link of a customer's running-balance chain.
// Seq is strictly increasing per customer; Balance is fixed at append time.
type CustomerLedgerEntry struct {
	ID            uint               `json:"id" gorm:"primaryKey"`
	CustomerID    uint               `json:"customer_id" gorm:"not null;uniqueIndex:idx_customer_ledger_seq"`
	Seq           int64              `json:"seq" gorm:"not null;uniqueIndex:idx_customer_ledger_seq"`
	Kind          CustomerLedgerKind `json:"kind" gorm:"size:16;not null"`
	Debit         decimal.Decimal    `json:"debit" gorm:"type:decimal(20,4);not null;default:0"`
	Credit        decimal.Decimal    `json:"credit" gorm:"type:decimal(20,4);not null;default:0"`
	Balance       decimal.Decimal    `json:"balance" gorm:"type:decimal(20,4);not null"`
	ReferenceType string             `json:"reference_type" gorm:"size:32"`
	ReferenceID   uint               `json:"reference_id"`
	Reference     string             `json:"reference,omitempty" gorm:"size:100"`
	Mode          string             `json:"mode,omitempty" gorm:"size:32"`
	Note          string             `json:"note,omitempty" gorm:"size:255"`
	Actor         string             `json:"actor" gorm:"size:100"`
	CreatedAt     time.Time          `json:"created_at"`
}

// TableName specifies the table name
func (CustomerLedgerEntry) TableName() string {
	return "customer_ledger_entries"
}

// CustomerRepository defines customer and customer-ledger data access
type CustomerRepository interface {
	CreateCustomer(customer *Customer) error
	FindCustomer(id uint) (*Customer, error)
	// AdvanceCustomerBalance atomically adds delta to the current balance and
	// bumps the ledger sequence, returning both new values. The row stays
	// locked until the transaction ends.
	AdvanceCustomerBalance(customerID uint, delta decimal.Decimal) (decimal.Decimal, int64, error)
	AppendCustomerLedger(entry *CustomerLedgerEntry) error
	ListCustomerLedger(customerID uint) ([]CustomerLedgerEntry, error)
}
