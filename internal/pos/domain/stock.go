package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord holds a product's on-hand quantity in base units
type StockRecord struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ProductID     uint      `json:"product_id" gorm:"uniqueIndex;not null"`
	Quantity      int64     `json:"quantity" gorm:"not null;default:0;check:chk_stock_records_quantity,quantity >= 0"`
	LastReference string    `json:"last_reference" gorm:"size:64"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (StockRecord) TableName() string {
	return "stock_records"
}

// MovementDirection of a manual stock movement. Only outflows are recorded
// today; inbound stock goes through the product ledger as stock-in.
type MovementDirection string

const (
	DirectionIn  MovementDirection = "in"
	DirectionOut MovementDirection = "out"
)

// StockMovement is the append-only audit entry for non-sale stock changes
// (damage, consumption, issue to a department).
type StockMovement struct {
	ID           uint              `json:"id" gorm:"primaryKey"`
	ProductID    uint              `json:"product_id" gorm:"not null;index"`
	Direction    MovementDirection `json:"direction" gorm:"size:8;not null"`
	Quantity     int64             `json:"quantity" gorm:"not null"`
	Reason       string            `json:"reason" gorm:"size:255;not null"`
	BalanceAfter int64             `json:"balance_after" gorm:"not null"`
	Actor        string            `json:"actor" gorm:"size:100"`
	CreatedAt    time.Time         `json:"created_at"`
}

// TableName specifies the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// ProductLedgerKind classifies a quantity-affecting event
type ProductLedgerKind string

const (
	ProductLedgerOpening ProductLedgerKind = "opening"
	ProductLedgerStockIn ProductLedgerKind = "stock-in"
	ProductLedgerSale    ProductLedgerKind = "sale"
	ProductLedgerReturn  ProductLedgerKind = "return"
)

// Reference types recorded on ledger entries
const (
	ReferenceSale    = "sale"
	ReferenceReturn  = "return"
	ReferenceStockIn = "stock_in"
	ReferenceProduct = "product"
	ReferencePayment = "payment"
	ReferenceManual  = "manual"
)

// ProductLedgerEntry is the append-only record of one quantity change caused
// by a sale, a return, a stock-in or the opening quantity.
type ProductLedgerEntry struct {
	ID            uint              `json:"id" gorm:"primaryKey"`
	ProductID     uint              `json:"product_id" gorm:"not null;index"`
	Kind          ProductLedgerKind `json:"kind" gorm:"size:16;not null"`
	QuantityDelta int64             `json:"quantity_delta" gorm:"not null"`
	BalanceAfter  int64             `json:"balance_after" gorm:"not null"`
	UnitPrice     decimal.Decimal   `json:"unit_price" gorm:"type:decimal(20,4);not null;default:0"`
	Amount        decimal.Decimal   `json:"amount" gorm:"type:decimal(20,4);not null;default:0"`
	ReferenceType string            `json:"reference_type" gorm:"size:32;not null"`
	ReferenceID   uint              `json:"reference_id" gorm:"index"`
	Reference     string            `json:"reference,omitempty" gorm:"size:64"`
	Actor         string            `json:"actor" gorm:"size:100"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TableName specifies the table name
func (ProductLedgerEntry) TableName() string {
	return "product_ledger_entries"
}

// StockRepository defines stock and stock-audit data access. Decrement and
// Increment are single atomic statements and return the balance after the change.
type StockRepository interface {
	CreateStockRecord(record *StockRecord) error
	FindStockRecord(productID uint) (*StockRecord, error)
	// DecrementStock fails with *InsufficientStockError rather than going negative.
	DecrementStock(productID uint, quantity int64, reference string) (int64, error)
	// IncrementStock creates the record when none exists.
	IncrementStock(productID uint, quantity int64, reference string) (int64, error)
	AppendStockMovement(movement *StockMovement) error
	ListStockMovements(productID uint) ([]StockMovement, error)
	AppendProductLedger(entry *ProductLedgerEntry) error
	ListProductLedger(productID uint) ([]ProductLedgerEntry, error)
}
