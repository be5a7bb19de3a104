package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/pkg/logger"
)

// CreateCustomerCommand represents the command to open a customer account
type CreateCustomerCommand struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Phone          string          `json:"phone" validate:"max=32"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Actor          string          `json:"actor" validate:"max=100"`
}

// CreateCustomerResult holds the customer and the head of its ledger
type CreateCustomerResult struct {
	Customer     domain.Customer            `json:"customer"`
	OpeningEntry domain.CustomerLedgerEntry `json:"opening_entry"`
}

// CreateCustomerHandler handles create customer command
type CreateCustomerHandler struct {
	store domain.Store
}

// NewCreateCustomerHandler creates a new create customer handler
func NewCreateCustomerHandler(store domain.Store) *CreateCustomerHandler {
	return &CreateCustomerHandler{store: store}
}

// Handle executes the create customer command. The opening balance is carried
// on the customer row; the chain starts with an opening entry that moves no
// money and records that balance.
func (h *CreateCustomerHandler) Handle(ctx context.Context, cmd CreateCustomerCommand) (*CreateCustomerResult, error) {
	ctx, span := tracer.Start(ctx, "command.CreateCustomer",
		trace.WithAttributes(attribute.String("customer.name", cmd.Name)),
	)
	defer span.End()

	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "create_customer", err)
	}

	customer := domain.Customer{
		Name:           cmd.Name,
		Phone:          cmd.Phone,
		OpeningBalance: cmd.OpeningBalance,
		CurrentBalance: cmd.OpeningBalance,
	}
	var opening *domain.CustomerLedgerEntry

	err := h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		if err := tx.CreateCustomer(&customer); err != nil {
			return err
		}

		var err error
		opening, err = PostCustomerLedger(tx, CustomerPosting{
			CustomerID:    customer.ID,
			Kind:          domain.CustomerLedgerOpening,
			Debit:         decimal.Zero,
			Credit:        decimal.Zero,
			ReferenceType: domain.ReferenceManual,
			Note:          "opening balance",
			Actor:         cmd.Actor,
		})
		if err != nil {
			return err
		}
		customer.LedgerSeq = opening.Seq
		return nil
	})
	if err != nil {
		return nil, fail(span, "create_customer", fmt.Errorf("failed to create customer: %w", err))
	}

	logger.Info(ctx).
		Uint("customer_id", customer.ID).
		Str("opening_balance", customer.OpeningBalance.StringFixed(2)).
		Msg("Customer created")

	return &CreateCustomerResult{Customer: customer, OpeningEntry: *opening}, nil
}
