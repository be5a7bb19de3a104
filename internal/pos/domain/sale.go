package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places money is stored and rounded with
const MoneyScale = 4

// SaleStatus of a sale
type SaleStatus string

const (
	SaleStatusPending           SaleStatus = "pending"
	SaleStatusCompleted         SaleStatus = "completed"
	SaleStatusPartiallyReturned SaleStatus = "partially-returned"
	SaleStatusFullyRefunded     SaleStatus = "fully-refunded"
	SaleStatusCancelled         SaleStatus = "cancelled"
)

// AcceptsReturns reports whether more goods can come back against the sale
func (s SaleStatus) AcceptsReturns() bool {
	return s == SaleStatusCompleted || s == SaleStatusPartiallyReturned
}

// PaymentMode of a sale
type PaymentMode string

const (
	PaymentCash         PaymentMode = "cash"
	PaymentCard         PaymentMode = "card"
	PaymentMobile       PaymentMode = "mobile"
	PaymentBankTransfer PaymentMode = "bank_transfer"
	PaymentCredit       PaymentMode = "credit"
)

// PricingMode of a sale line
type PricingMode string

const (
	PricingRetail    PricingMode = "retail"
	PricingWholesale PricingMode = "wholesale"
)

// Sale is created once; afterwards only Status and RefundedTotal change, and
// only through return processing.
type Sale struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	InvoiceNumber   int64           `json:"invoice_number" gorm:"uniqueIndex;not null"`
	ClientReference *string         `json:"client_reference,omitempty" gorm:"size:64;uniqueIndex"`
	Items           []SaleLineItem  `json:"items" gorm:"foreignKey:SaleID"`
	Total           decimal.Decimal `json:"total" gorm:"type:decimal(20,4);not null"`
	RefundedTotal   decimal.Decimal `json:"refunded_total" gorm:"type:decimal(20,4);not null;default:0"`
	PaymentMode     PaymentMode     `json:"payment_mode" gorm:"size:32;not null"`
	Cashier         string          `json:"cashier" gorm:"size:100;not null"`
	CustomerID      *uint           `json:"customer_id,omitempty" gorm:"index"`
	Status          SaleStatus      `json:"status" gorm:"size:32;not null;index"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (Sale) TableName() string {
	return "sales"
}

// LineTotal sums the persisted line subtotals
func (s *Sale) LineTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// SaleLineItem is one product line of a sale. Quantity is in base units.
type SaleLineItem struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	SaleID         uint            `json:"sale_id" gorm:"not null;index"`
	LineNo         int             `json:"line_no" gorm:"not null"`
	ProductID      uint            `json:"product_id" gorm:"not null;index"`
	Quantity       int64           `json:"quantity" gorm:"not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:decimal(20,4);not null"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:decimal(20,4);not null"`
	PricingMode    PricingMode     `json:"pricing_mode" gorm:"size:16;not null"`
	PackCount      int64           `json:"pack_count" gorm:"not null;default:0"`
	PackSize       int64           `json:"pack_size" gorm:"not null;default:0"`
	LeftoverPieces int64           `json:"leftover_pieces" gorm:"not null;default:0"`
	PiecePrice     decimal.Decimal `json:"piece_price" gorm:"type:decimal(20,4);not null;default:0"`
}

// TableName specifies the table name
func (SaleLineItem) TableName() string {
	return "sale_line_items"
}

// Return records goods coming back against a sale
type Return struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	SaleID       uint             `json:"sale_id" gorm:"not null;index"`
	Items        []ReturnLineItem `json:"items" gorm:"foreignKey:ReturnID"`
	TotalRefund  decimal.Decimal  `json:"total_refund" gorm:"type:decimal(20,4);not null"`
	RefundMethod string           `json:"refund_method" gorm:"size:32;not null"`
	Reason       string           `json:"reason" gorm:"size:255"`
	ProcessedBy  string           `json:"processed_by" gorm:"size:100;not null"`
	CreatedAt    time.Time        `json:"created_at"`
}

// TableName specifies the table name
func (Return) TableName() string {
	return "sale_returns"
}

// ReturnLineItem ties a returned quantity to the sale line it came from
type ReturnLineItem struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	ReturnID       uint            `json:"return_id" gorm:"not null;index"`
	SaleLineItemID uint            `json:"sale_line_item_id" gorm:"not null;index"`
	ProductID      uint            `json:"product_id" gorm:"not null"`
	Quantity       int64           `json:"quantity" gorm:"not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:decimal(20,4);not null"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:decimal(20,4);not null"`
}

// TableName specifies the table name
func (ReturnLineItem) TableName() string {
	return "sale_return_items"
}

// ReturnedTally accumulates what has already come back per sale line
type ReturnedTally struct {
	Quantity map[uint]int64
	Refunded map[uint]decimal.Decimal
}

// TallyReturns builds the per-line tally from the returns of one sale
func TallyReturns(returns []Return) ReturnedTally {
	tally := ReturnedTally{
		Quantity: make(map[uint]int64),
		Refunded: make(map[uint]decimal.Decimal),
	}
	for _, ret := range returns {
		for _, item := range ret.Items {
			tally.Quantity[item.SaleLineItemID] += item.Quantity
			tally.Refunded[item.SaleLineItemID] = tally.Refunded[item.SaleLineItemID].Add(item.Subtotal)
		}
	}
	return tally
}

// ResolveReturnStatus derives the status of a sale once returns exist
func ResolveReturnStatus(items []SaleLineItem, tally ReturnedTally) SaleStatus {
	anyReturned := false
	allReturned := true
	for _, item := range items {
		returned := tally.Quantity[item.ID]
		if returned > 0 {
			anyReturned = true
		}
		if returned < item.Quantity {
			allReturned = false
		}
	}
	switch {
	case allReturned && len(items) > 0:
		return SaleStatusFullyRefunded
	case anyReturned:
		return SaleStatusPartiallyReturned
	default:
		return SaleStatusCompleted
	}
}

// SaleRepository defines sale and return data access
type SaleRepository interface {
	// CreateSale persists the sale with its items; an existing invoice number
	// yields *DuplicateInvoiceError.
	CreateSale(sale *Sale) error
	FindSale(id uint) (*Sale, error)
	// LockSale loads the sale and holds a row lock until the transaction ends.
	LockSale(id uint) (*Sale, error)
	FindSaleByInvoice(invoiceNumber int64) (*Sale, error)
	FindSaleByClientReference(reference string) (*Sale, error)
	UpdateSaleStatus(id uint, status SaleStatus, refundedTotal decimal.Decimal) error
	CreateReturn(ret *Return) error
	ListReturnsBySale(saleID uint) ([]Return, error)
}
