package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// GetCustomerLedgerQuery represents the query to load a customer statement
type GetCustomerLedgerQuery struct {
	CustomerID uint
}

// CustomerLedgerView is a customer statement in sequence order
type CustomerLedgerView struct {
	Customer       domain.Customer              `json:"customer"`
	OpeningBalance decimal.Decimal              `json:"opening_balance"`
	CurrentBalance decimal.Decimal              `json:"current_balance"`
	Transactions   []domain.CustomerLedgerEntry `json:"transactions"`
}

// GetCustomerLedgerHandler handles get customer ledger query
type GetCustomerLedgerHandler struct {
	store domain.Store
}

// NewGetCustomerLedgerHandler creates a new get customer ledger handler
func NewGetCustomerLedgerHandler(store domain.Store) *GetCustomerLedgerHandler {
	return &GetCustomerLedgerHandler{store: store}
}

// Handle executes the get customer ledger query
func (h *GetCustomerLedgerHandler) Handle(ctx context.Context, query GetCustomerLedgerQuery) (*CustomerLedgerView, error) {
	ctx, span := tracer.Start(ctx, "query.GetCustomerLedger",
		trace.WithAttributes(attribute.Int64("customer.id", int64(query.CustomerID))),
	)
	defer span.End()

	if query.CustomerID == 0 {
		return nil, failQuery(span, domain.ValidationError("customer_id is required"))
	}

	view := &CustomerLedgerView{}
	err := h.store.Read(ctx, func(tx domain.Tx) error {
		customer, err := tx.FindCustomer(query.CustomerID)
		if err != nil {
			return err
		}
		view.Customer = *customer
		view.OpeningBalance = customer.OpeningBalance
		view.CurrentBalance = customer.CurrentBalance

		view.Transactions, err = tx.ListCustomerLedger(query.CustomerID)
		return err
	})
	if err != nil {
		return nil, failQuery(span, fmt.Errorf("failed to load customer ledger: %w", err))
	}

	if view.Transactions == nil {
		view.Transactions = []domain.CustomerLedgerEntry{}
	}
	return view, nil
}
