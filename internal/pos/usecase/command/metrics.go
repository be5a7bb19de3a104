package command

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

var tracer = otel.Tracer("pos-command")

// Ledger Prometheus metrics
var (
	salesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sales_total",
			Help: "Total number of completed sales",
		},
		[]string{"payment_mode"},
	)

	salesAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_sales_amount_total",
			Help: "Sum of completed sale totals",
		},
	)

	returnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_returns_total",
			Help: "Total number of processed returns",
		},
		[]string{"sale_status"},
	)

	refundAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_refund_amount_total",
			Help: "Sum of refunded amounts",
		},
	)

	stockMovementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_stock_movements_total",
			Help: "Quantity-affecting events outside of sales and returns",
		},
		[]string{"kind"},
	)

	customerLedgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_customer_ledger_entries_total",
			Help: "Customer ledger entries appended by kind",
		},
		[]string{"kind"},
	)

	ledgerRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_ledger_rejections_total",
			Help: "Operations rejected before commit by error class",
		},
		[]string{"operation", "class"},
	)
)

func init() {
	prometheus.MustRegister(salesTotal)
	prometheus.MustRegister(salesAmountTotal)
	prometheus.MustRegister(returnsTotal)
	prometheus.MustRegister(refundAmountTotal)
	prometheus.MustRegister(stockMovementsTotal)
	prometheus.MustRegister(customerLedgerEntriesTotal)
	prometheus.MustRegister(ledgerRejectionsTotal)
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// fail records err on the span and the rejection counter and hands it back
func fail(span trace.Span, operation string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	ledgerRejectionsTotal.WithLabelValues(operation, errorClass(err)).Inc()
	return err
}
