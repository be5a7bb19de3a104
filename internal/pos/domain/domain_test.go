package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPiecePrice(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		want    string
	}{
		{
			name: "explicit piece price wins",
			product: Product{
				WholesalePrice:      decimal.NewFromInt(12),
				WholesalePackSize:   12,
				WholesalePiecePrice: decimal.RequireFromString("1.25"),
			},
			want: "1.25",
		},
		{
			name:    "derived from pack price",
			product: Product{WholesalePrice: decimal.NewFromInt(10), WholesalePackSize: 3},
			want:    "3.3333",
		},
		{
			name:    "no pack size",
			product: Product{WholesalePrice: decimal.NewFromInt(10)},
			want:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.product.PiecePrice().String())
		})
	}
}

func TestSupportsWholesale(t *testing.T) {
	assert.True(t, (&Product{WholesalePrice: decimal.NewFromInt(10), WholesalePackSize: 6}).SupportsWholesale())
	assert.False(t, (&Product{WholesalePrice: decimal.NewFromInt(10)}).SupportsWholesale())
	assert.False(t, (&Product{WholesalePackSize: 6}).SupportsWholesale())
}

func TestResolveReturnStatus(t *testing.T) {
	items := []SaleLineItem{
		{ID: 1, Quantity: 2},
		{ID: 2, Quantity: 1},
	}

	tests := []struct {
		name    string
		returns []Return
		want    SaleStatus
	}{
		{name: "nothing returned", want: SaleStatusCompleted},
		{
			name:    "one line partly returned",
			returns: []Return{{Items: []ReturnLineItem{{SaleLineItemID: 1, Quantity: 1}}}},
			want:    SaleStatusPartiallyReturned,
		},
		{
			name:    "one line fully returned",
			returns: []Return{{Items: []ReturnLineItem{{SaleLineItemID: 2, Quantity: 1}}}},
			want:    SaleStatusPartiallyReturned,
		},
		{
			name: "everything returned across two returns",
			returns: []Return{
				{Items: []ReturnLineItem{{SaleLineItemID: 1, Quantity: 1}, {SaleLineItemID: 2, Quantity: 1}}},
				{Items: []ReturnLineItem{{SaleLineItemID: 1, Quantity: 1}}},
			},
			want: SaleStatusFullyRefunded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveReturnStatus(items, TallyReturns(tt.returns)))
		})
	}

	assert.Equal(t, SaleStatusCompleted, ResolveReturnStatus(nil, TallyReturns(nil)))
}

func TestTallyReturns(t *testing.T) {
	tally := TallyReturns([]Return{
		{Items: []ReturnLineItem{{SaleLineItemID: 7, Quantity: 1, Subtotal: decimal.RequireFromString("2.50")}}},
		{Items: []ReturnLineItem{{SaleLineItemID: 7, Quantity: 2, Subtotal: decimal.NewFromInt(5)}}},
	})

	assert.Equal(t, int64(3), tally.Quantity[7])
	assert.Equal(t, "7.5", tally.Refunded[7].String())
	assert.Zero(t, tally.Quantity[8])
}

func TestSaleStatusAcceptsReturns(t *testing.T) {
	assert.True(t, SaleStatusCompleted.AcceptsReturns())
	assert.True(t, SaleStatusPartiallyReturned.AcceptsReturns())
	assert.False(t, SaleStatusFullyRefunded.AcceptsReturns())
	assert.False(t, SaleStatusCancelled.AcceptsReturns())
	assert.False(t, SaleStatusPending.AcceptsReturns())
}

func TestSaleLineTotal(t *testing.T) {
	sale := Sale{Items: []SaleLineItem{
		{Subtotal: decimal.RequireFromString("2.50")},
		{Subtotal: decimal.RequireFromString("4.25")},
	}}
	assert.Equal(t, "6.75", sale.LineTotal().String())
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("failed to create sale: %w", &InsufficientStockError{ProductID: 1, Requested: 5, Available: 2})
	assert.True(t, errors.Is(wrapped, ErrConflict))

	var stockErr *InsufficientStockError
	assert.True(t, errors.As(wrapped, &stockErr))
	assert.Equal(t, int64(2), stockErr.Available)

	assert.ErrorIs(t, &ReturnQuantityExceededError{}, ErrConflict)
	assert.ErrorIs(t, &DuplicateInvoiceError{InvoiceNumber: 3}, ErrConflict)
	assert.ErrorIs(t, &DuplicateClientReferenceError{Reference: "abc"}, ErrConflict)

	assert.ErrorIs(t, NotFoundError("product", 4), ErrNotFound)
	assert.EqualError(t, NotFoundError("product", 4), "product 4: not found")

	err := ValidationError("quantity must be positive, got %d", 0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "quantity must be positive, got 0: validation failed")
}
