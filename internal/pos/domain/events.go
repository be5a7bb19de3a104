package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEventType names an event emitted after a ledger write commits
type LedgerEventType string

const (
	EventSaleCompleted    LedgerEventType = "sale.completed"
	EventReturnProcessed  LedgerEventType = "return.processed"
	EventStockOutRecorded LedgerEventType = "stock.out_recorded"
	EventStockInRecorded  LedgerEventType = "stock.in_recorded"
	EventPaymentRecorded  LedgerEventType = "payment.recorded"
	EventCustomerAdjusted LedgerEventType = "customer.adjusted"
)

// LedgerEvent carries enough identifiers for a consumer to re-read and
// reconcile the affected products and customer.
type LedgerEvent struct {
	EventID       string          `json:"event_id"`
	EventType     LedgerEventType `json:"event_type"`
	SaleID        uint            `json:"sale_id,omitempty"`
	ReturnID      uint            `json:"return_id,omitempty"`
	InvoiceNumber int64           `json:"invoice_number,omitempty"`
	ProductIDs    []uint          `json:"product_ids,omitempty"`
	CustomerID    *uint           `json:"customer_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Actor         string          `json:"actor"`
	Timestamp     time.Time       `json:"timestamp"`
}

// EventPublisher delivers ledger events to downstream consumers
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event LedgerEvent) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

// PublishLedgerEvent implements EventPublisher
func (NoopPublisher) PublishLedgerEvent(context.Context, LedgerEvent) error { return nil }
