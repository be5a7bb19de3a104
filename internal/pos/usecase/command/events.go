package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/pkg/logger"
)

// publishEvent announces a committed write. Delivery is best effort: the
// ledger is already consistent, so a failure is logged and not returned.
func publishEvent(ctx context.Context, publisher domain.EventPublisher, event domain.LedgerEvent) {
	if publisher == nil {
		return
	}

	event.EventID = uuid.NewString()
	event.Timestamp = time.Now()

	if err := publisher.PublishLedgerEvent(ctx, event); err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("event_id", event.EventID).
			Str("event_type", string(event.EventType)).
			Msg("Failed to publish ledger event")
	}
}

func invoiceReference(number int64) string {
	return fmt.Sprintf("INV-%06d", number)
}

func returnReference(saleID, returnID uint) string {
	return fmt.Sprintf("RET-%d-%d", saleID, returnID)
}
