package kafka

import (
	"fmt"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// Kafka topics
const (
	TopicLedgerEvents = "pos-ledger-events"
)

// Message header keys
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)

// messageKey keeps every event of one account on one partition, so a
// consumer sees a customer's postings in commit order.
func messageKey(event domain.LedgerEvent) string {
	switch {
	case event.CustomerID != nil:
		return fmt.Sprintf("customer_%d", *event.CustomerID)
	case event.SaleID != 0:
		return fmt.Sprintf("sale_%d", event.SaleID)
	case len(event.ProductIDs) > 0:
		return fmt.Sprintf("product_%d", event.ProductIDs[0])
	default:
		return event.EventID
	}
}
