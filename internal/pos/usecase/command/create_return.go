package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/pkg/lock"
	"github.com/tair/pos-ledger/pkg/logger"
)

// DefaultReturnLockTTL bounds how long one return may hold its sale's lock
const DefaultReturnLockTTL = 30 * time.Second

// ReturnItemInput is one requested return line. PricingMode narrows the
// allocation to lines sold in that mode when a product was sold both ways.
type ReturnItemInput struct {
	ProductID   uint               `json:"product_id" validate:"required"`
	Quantity    int64              `json:"quantity" validate:"gt=0"`
	PricingMode domain.PricingMode `json:"pricing_mode,omitempty" validate:"omitempty,oneof=retail wholesale"`
}

// CreateReturnCommand represents the command to take goods back against a sale
type CreateReturnCommand struct {
	SaleID       uint              `json:"sale_id" validate:"required"`
	Items        []ReturnItemInput `json:"items" validate:"required,min=1,dive"`
	RefundMethod string            `json:"refund_method" validate:"required,max=32"`
	Reason       string            `json:"reason" validate:"max=255"`
	ProcessedBy  string            `json:"processed_by" validate:"required,max=100"`
}

// CreateReturnResult summarizes a processed return
type CreateReturnResult struct {
	ReturnID    uint              `json:"return_id"`
	TotalRefund decimal.Decimal   `json:"total_refund"`
	SaleStatus  domain.SaleStatus `json:"sale_status"`
}

// CreateReturnHandler handles create return command
type CreateReturnHandler struct {
	store     domain.Store
	locker    lock.Locker
	publisher domain.EventPublisher
	lockTTL   time.Duration
}

// NewCreateReturnHandler creates a new create return handler
func NewCreateReturnHandler(store domain.Store, locker lock.Locker, publisher domain.EventPublisher) *CreateReturnHandler {
	return &CreateReturnHandler{
		store:     store,
		locker:    locker,
		publisher: publisher,
		lockTTL:   DefaultReturnLockTTL,
	}
}

// Handle executes the create return command. Returns for one sale are
// serialized by a named lock across instances and by the sale row lock inside
// the transaction, so the remaining-quantity check always sees prior returns.
func (h *CreateReturnHandler) Handle(ctx context.Context, cmd CreateReturnCommand) (*CreateReturnResult, error) {
	ctx, span := tracer.Start(ctx, "command.CreateReturn",
		trace.WithAttributes(
			attribute.Int64("sale.id", int64(cmd.SaleID)),
			attribute.Int("return.items", len(cmd.Items)),
			attribute.String("return.processed_by", cmd.ProcessedBy),
		),
	)
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, "create_return", err)
	}

	release, err := h.locker.Obtain(ctx, fmt.Sprintf("return:sale:%d", cmd.SaleID), h.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			err = fmt.Errorf("sale %d has a return in progress: %w", cmd.SaleID, domain.ErrConflict)
		}
		return nil, fail(span, "create_return", fmt.Errorf("failed to lock sale: %w", err))
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			logger.Warn(ctx).Err(err).Uint("sale_id", cmd.SaleID).Msg("Failed to release return lock")
		}
	}()

	var (
		ret    *domain.Return
		sale   *domain.Sale
		status domain.SaleStatus
	)
	err = h.store.WithinTransaction(ctx, func(tx domain.Tx) error {
		var err error
		sale, err = tx.LockSale(cmd.SaleID)
		if err != nil {
			return err
		}
		if !sale.Status.AcceptsReturns() {
			return fmt.Errorf("sale %d is %s and accepts no returns: %w", sale.ID, sale.Status, domain.ErrConflict)
		}

		prior, err := tx.ListReturnsBySale(sale.ID)
		if err != nil {
			return fmt.Errorf("failed to load prior returns: %w", err)
		}
		tally := domain.TallyReturns(prior)

		items, total, err := allocateReturn(sale, cmd.Items, tally)
		if err != nil {
			return err
		}

		ret = &domain.Return{
			SaleID:       sale.ID,
			Items:        items,
			TotalRefund:  total,
			RefundMethod: cmd.RefundMethod,
			Reason:       cmd.Reason,
			ProcessedBy:  cmd.ProcessedBy,
		}
		if err := tx.CreateReturn(ret); err != nil {
			return fmt.Errorf("failed to persist return: %w", err)
		}

		if err := restock(tx, sale, ret); err != nil {
			return err
		}

		status = domain.ResolveReturnStatus(sale.Items, tally)
		if err := tx.UpdateSaleStatus(sale.ID, status, sale.RefundedTotal.Add(total)); err != nil {
			return fmt.Errorf("failed to update sale status: %w", err)
		}

		if sale.CustomerID == nil || !total.IsPositive() {
			return nil
		}
		_, err = PostCustomerLedger(tx, CustomerPosting{
			CustomerID:    *sale.CustomerID,
			Kind:          domain.CustomerLedgerReturn,
			Debit:         decimal.Zero,
			Credit:        total,
			ReferenceType: domain.ReferenceReturn,
			ReferenceID:   ret.ID,
			Reference:     returnReference(sale.ID, ret.ID),
			Mode:          cmd.RefundMethod,
			Note:          cmd.Reason,
			Actor:         cmd.ProcessedBy,
		})
		return err
	})
	if err != nil {
		return nil, fail(span, "create_return", fmt.Errorf("failed to create return: %w", err))
	}

	returnsTotal.WithLabelValues(string(status)).Inc()
	refundAmountTotal.Add(ret.TotalRefund.InexactFloat64())

	logger.Info(ctx).
		Uint("return_id", ret.ID).
		Uint("sale_id", sale.ID).
		Int64("invoice_number", sale.InvoiceNumber).
		Str("total_refund", ret.TotalRefund.StringFixed(2)).
		Str("sale_status", string(status)).
		Msg("Return processed")

	productIDs := make([]uint, 0, len(ret.Items))
	for _, item := range ret.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	publishEvent(ctx, h.publisher, domain.LedgerEvent{
		EventType:     domain.EventReturnProcessed,
		SaleID:        sale.ID,
		ReturnID:      ret.ID,
		InvoiceNumber: sale.InvoiceNumber,
		ProductIDs:    productIDs,
		CustomerID:    sale.CustomerID,
		Amount:        ret.TotalRefund,
		Actor:         cmd.ProcessedBy,
	})

	return &CreateReturnResult{
		ReturnID:    ret.ID,
		TotalRefund: ret.TotalRefund,
		SaleStatus:  status,
	}, nil
}

// allocateReturn spreads each requested quantity over the matching sale lines
// in line order and prices it at the original line price. The tally is
// advanced as lines are consumed, so repeated products in one request are
// bounded together.
func allocateReturn(sale *domain.Sale, requested []ReturnItemInput, tally domain.ReturnedTally) ([]domain.ReturnLineItem, decimal.Decimal, error) {
	var items []domain.ReturnLineItem
	total := decimal.Zero

	for _, req := range requested {
		var candidates []domain.SaleLineItem
		remaining := int64(0)
		for _, line := range sale.Items {
			if line.ProductID != req.ProductID {
				continue
			}
			if req.PricingMode != "" && line.PricingMode != req.PricingMode {
				continue
			}
			candidates = append(candidates, line)
			remaining += line.Quantity - tally.Quantity[line.ID]
		}

		if len(candidates) == 0 {
			return nil, decimal.Zero, domain.ValidationError("product %d was not sold on sale %d", req.ProductID, sale.ID)
		}
		if req.Quantity > remaining {
			return nil, decimal.Zero, &domain.ReturnQuantityExceededError{
				SaleID:    sale.ID,
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Remaining: remaining,
			}
		}

		need := req.Quantity
		for _, line := range candidates {
			if need == 0 {
				break
			}
			open := line.Quantity - tally.Quantity[line.ID]
			if open <= 0 {
				continue
			}
			q := open
			if need < q {
				q = need
			}

			unitPrice, subtotal := lineRefund(line, q, tally.Quantity[line.ID], tally.Refunded[line.ID])
			items = append(items, domain.ReturnLineItem{
				SaleLineItemID: line.ID,
				ProductID:      line.ProductID,
				Quantity:       q,
				UnitPrice:      unitPrice,
				Subtotal:       subtotal,
			})
			tally.Quantity[line.ID] += q
			tally.Refunded[line.ID] = tally.Refunded[line.ID].Add(subtotal)
			total = total.Add(subtotal)
			need -= q
		}
	}

	return items, total, nil
}

func restock(tx domain.Tx, sale *domain.Sale, ret *domain.Return) error {
	reference := returnReference(sale.ID, ret.ID)
	balances := make([]int64, len(ret.Items))
	for _, i := range stockLockOrder(len(ret.Items), func(i int) uint { return ret.Items[i].ProductID }) {
		item := ret.Items[i]
		balance, err := tx.IncrementStock(item.ProductID, item.Quantity, reference)
		if err != nil {
			return fmt.Errorf("failed to restock product %d: %w", item.ProductID, err)
		}
		balances[i] = balance
	}

	for i, item := range ret.Items {
		err := tx.AppendProductLedger(&domain.ProductLedgerEntry{
			ProductID:     item.ProductID,
			Kind:          domain.ProductLedgerReturn,
			QuantityDelta: item.Quantity,
			BalanceAfter:  balances[i],
			UnitPrice:     item.UnitPrice,
			Amount:        item.Subtotal,
			ReferenceType: domain.ReferenceReturn,
			ReferenceID:   ret.ID,
			Reference:     reference,
			Actor:         ret.ProcessedBy,
		})
		if err != nil {
			return fmt.Errorf("failed to append product ledger entry: %w", err)
		}
	}
	return nil
}
