package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the use cases matches exactly one of
// them through errors.Is, which is what the delivery layers map to status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// InsufficientStockError is returned when a decrement would take a product's
// on-hand quantity below zero.
type InsufficientStockError struct {
	ProductID uint
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrConflict }

// ReturnQuantityExceededError is returned when a return asks for more than
// was sold minus what has already been returned.
type ReturnQuantityExceededError struct {
	SaleID    uint
	ProductID uint
	Requested int64
	Remaining int64
}

func (e *ReturnQuantityExceededError) Error() string {
	return fmt.Sprintf("return quantity exceeded for product %d on sale %d: requested %d, only %d remaining",
		e.ProductID, e.SaleID, e.Requested, e.Remaining)
}

func (e *ReturnQuantityExceededError) Is(target error) bool { return target == ErrConflict }

// DuplicateInvoiceError is returned when a sale is persisted with an invoice
// number that already exists.
type DuplicateInvoiceError struct {
	InvoiceNumber int64
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("duplicate invoice number %d", e.InvoiceNumber)
}

func (e *DuplicateInvoiceError) Is(target error) bool { return target == ErrConflict }

// DuplicateClientReferenceError is returned when a second sale is persisted
// with a client reference that is already taken.
type DuplicateClientReferenceError struct {
	Reference string
}

func (e *DuplicateClientReferenceError) Error() string {
	return fmt.Sprintf("duplicate client reference %q", e.Reference)
}

func (e *DuplicateClientReferenceError) Is(target error) bool { return target == ErrConflict }

// ClientReferenceTakenError is returned when a client reference is reused by
// a different cashier than the one whose sale it identifies.
type ClientReferenceTakenError struct {
	Reference string
}

func (e *ClientReferenceTakenError) Error() string {
	return fmt.Sprintf("client reference %q belongs to another cashier's sale", e.Reference)
}

func (e *ClientReferenceTakenError) Is(target error) bool { return target == ErrConflict }

// StockOverflowError is returned when an increment would push a product's
// on-hand quantity past the largest representable balance.
func StockOverflowError(productID uint, current, quantity int64) error {
	return ValidationError("adding %d units to product %d would overflow its balance of %d",
		quantity, productID, current)
}

// NotFoundError names the missing entity
func NotFoundError(entity string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// ValidationError wraps a human readable reason in ErrValidation
func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}
