package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}

func TestPublishLedgerEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event domain.LedgerEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.EventType != domain.EventSaleCompleted || event.InvoiceNumber != 12 {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	publisher := NewPublisherWithProducer(producer)
	err := publisher.PublishLedgerEvent(context.Background(), domain.LedgerEvent{
		EventID:       "evt-1",
		EventType:     domain.EventSaleCompleted,
		SaleID:        3,
		InvoiceNumber: 12,
		ProductIDs:    []uint{1, 2},
		Amount:        decimal.RequireFromString("19.50"),
	})
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestPublishLedgerEventFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewPublisherWithProducer(producer)
	err := publisher.PublishLedgerEvent(context.Background(), domain.LedgerEvent{
		EventID:   "evt-2",
		EventType: domain.EventPaymentRecorded,
	})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestMessageKey(t *testing.T) {
	customer := uint(9)

	assert.Equal(t, "customer_9", messageKey(domain.LedgerEvent{CustomerID: &customer, SaleID: 4}))
	assert.Equal(t, "sale_4", messageKey(domain.LedgerEvent{SaleID: 4, ProductIDs: []uint{1}}))
	assert.Equal(t, "product_1", messageKey(domain.LedgerEvent{ProductIDs: []uint{1}}))
	assert.Equal(t, "evt", messageKey(domain.LedgerEvent{EventID: "evt"}))
}

func message(t *testing.T, eventType string, event domain.LedgerEvent) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)

	msg := &sarama.ConsumerMessage{Topic: TopicLedgerEvents, Value: value}
	if eventType != "" {
		msg.Headers = []*sarama.RecordHeader{
			{Key: []byte(HeaderEventType), Value: []byte(eventType)},
			{Key: []byte(HeaderEventID), Value: []byte(event.EventID)},
		}
	}
	return msg
}

func TestDispatch(t *testing.T) {
	consumer := NewDispatcher()

	var got []domain.LedgerEvent
	consumer.RegisterHandler(domain.EventReturnProcessed, func(ctx context.Context, event domain.LedgerEvent) error {
		got = append(got, event)
		return nil
	})
	consumer.RegisterHandler(domain.EventStockOutRecorded, func(ctx context.Context, event domain.LedgerEvent) error {
		return errors.New("boom")
	})

	event := domain.LedgerEvent{EventID: "evt-3", EventType: domain.EventReturnProcessed, SaleID: 5, ReturnID: 2}
	require.NoError(t, consumer.Dispatch(context.Background(), message(t, string(domain.EventReturnProcessed), event)))
	require.Len(t, got, 1)
	assert.Equal(t, uint(2), got[0].ReturnID)

	err := consumer.Dispatch(context.Background(), message(t, "", event))
	assert.ErrorIs(t, err, ErrMissingEventType)

	err = consumer.Dispatch(context.Background(), message(t, string(domain.EventPaymentRecorded), event))
	assert.ErrorIs(t, err, ErrNoHandler)

	err = consumer.Dispatch(context.Background(), message(t, string(domain.EventStockOutRecorded), event))
	assert.EqualError(t, err, "failed to handle stock.out_recorded: boom")

	bad := &sarama.ConsumerMessage{
		Value:   []byte("{"),
		Headers: []*sarama.RecordHeader{{Key: []byte(HeaderEventType), Value: []byte(domain.EventReturnProcessed)}},
	}
	assert.Error(t, consumer.Dispatch(context.Background(), bad))
	assert.Len(t, got, 1)
}

func TestStartWithoutBroker(t *testing.T) {
	assert.Error(t, NewDispatcher().Start(context.Background()))
}
