package domain

import "context"

// InvoiceCounterName is the key of the single shared invoice counter row
const InvoiceCounterName = "invoice"

// InvoiceCounter is the shared invoice sequence
type InvoiceCounter struct {
	Name string `json:"name" gorm:"primaryKey;size:32"`
	Seq  int64  `json:"seq" gorm:"not null;default:0"`
}

// TableName specifies the table name
func (InvoiceCounter) TableName() string {
	return "invoice_counters"
}

// Tx exposes every repository bound to one unit of work
type Tx interface {
	ProductRepository
	StockRepository
	SaleRepository
	CustomerRepository
}

// Store is the storage boundary of the ledger core. A sale, a return, a
// stock movement or a payment runs inside one WithinTransaction call, so all
// of its writes commit together or not at all.
type Store interface {
	WithinTransaction(ctx context.Context, fn func(tx Tx) error) error
	// Read runs fn against committed data without opening a write transaction.
	Read(ctx context.Context, fn func(tx Tx) error) error
	// NextInvoiceNumber atomically increments and returns the shared counter
	// in its own statement. Numbers are never reused, gaps are allowed.
	NextInvoiceNumber(ctx context.Context) (int64, error)
}

// Models lists every persisted type in migration order
func Models() []interface{} {
	return []interface{}{
		&Product{},
		&StockRecord{},
		&StockMovement{},
		&ProductLedgerEntry{},
		&Customer{},
		&CustomerLedgerEntry{},
		&Sale{},
		&SaleLineItem{},
		&Return{},
		&ReturnLineItem{},
		&InvoiceCounter{},
	}
}
