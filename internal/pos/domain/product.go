package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable item. Identity is immutable; prices are owned
// by product management.
type Product struct {
	ID                  uint            `json:"id" gorm:"primaryKey"`
	SKU                 string          `json:"sku" gorm:"size:64;uniqueIndex;not null"`
	Name                string          `json:"name" gorm:"size:255;not null"`
	CostPrice           decimal.Decimal `json:"cost_price" gorm:"type:decimal(20,4);not null;default:0"`
	SellingPrice        decimal.Decimal `json:"selling_price" gorm:"type:decimal(20,4);not null;default:0"`
	WholesalePrice      decimal.Decimal `json:"wholesale_price" gorm:"type:decimal(20,4);not null;default:0"`
	WholesalePackSize   int64           `json:"wholesale_pack_size" gorm:"not null;default:0"`
	WholesalePiecePrice decimal.Decimal `json:"wholesale_piece_price" gorm:"type:decimal(20,4);not null;default:0"`
	IsActive            bool            `json:"is_active" gorm:"not null;default:true"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// SupportsWholesale reports whether pack pricing is configured
func (p *Product) SupportsWholesale() bool {
	return p.WholesalePackSize > 0 && p.WholesalePrice.IsPositive()
}

// PiecePrice returns the per-piece price for leftover pieces on a wholesale
// line: the configured price, or the pack price spread over the pack.
func (p *Product) PiecePrice() decimal.Decimal {
	if p.WholesalePiecePrice.IsPositive() {
		return p.WholesalePiecePrice
	}
	if p.WholesalePackSize <= 0 {
		return decimal.Zero
	}
	return p.WholesalePrice.Div(decimal.NewFromInt(p.WholesalePackSize)).Round(MoneyScale)
}

// ProductRepository defines product data access
type ProductRepository interface {
	CreateProduct(product *Product) error
	FindProduct(id uint) (*Product, error)
}
