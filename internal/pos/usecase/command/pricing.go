package command

import (
	"github.com/shopspring/decimal"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// priceLine turns a requested item into a persisted line. Quantities are base
// units; for wholesale lines the quantity splits into whole packs plus
// leftover pieces, and a missing pack count means "as many whole packs as fit".
func priceLine(product *domain.Product, item SaleItemInput, lineNo int) (domain.SaleLineItem, error) {
	line := domain.SaleLineItem{
		LineNo:      lineNo,
		ProductID:   product.ID,
		Quantity:    item.Quantity,
		PricingMode: item.PricingMode,
	}

	switch item.PricingMode {
	case domain.PricingRetail:
		line.UnitPrice = product.SellingPrice
		line.Subtotal = product.SellingPrice.Mul(decimal.NewFromInt(item.Quantity))
		return line, nil

	case domain.PricingWholesale:
		if !product.SupportsWholesale() {
			return line, domain.ValidationError("product %d has no wholesale pack size or price", product.ID)
		}

		packSize := product.WholesalePackSize
		packCount := item.PackCount
		if packCount == 0 {
			packCount = item.Quantity / packSize
		}
		if packCount < 0 || packCount > item.Quantity/packSize {
			return line, domain.ValidationError(
				"line %d: %d packs of %d exceed quantity %d", lineNo, packCount, packSize, item.Quantity)
		}
		leftover := item.Quantity - packCount*packSize
		if leftover < 0 {
			return line, domain.ValidationError(
				"line %d: %d packs of %d exceed quantity %d", lineNo, packCount, packSize, item.Quantity)
		}

		piecePrice := product.PiecePrice()
		line.PackCount = packCount
		line.PackSize = packSize
		line.LeftoverPieces = leftover
		line.PiecePrice = piecePrice
		line.UnitPrice = product.WholesalePrice
		line.Subtotal = product.WholesalePrice.Mul(decimal.NewFromInt(packCount)).
			Add(piecePrice.Mul(decimal.NewFromInt(leftover)))
		return line, nil

	default:
		return line, domain.ValidationError("line %d: unknown pricing mode %q", lineNo, item.PricingMode)
	}
}

// lineRefund prices q returned units of a sale line at the line's original
// price. When the return exhausts the line, the still unrefunded remainder is
// used so the refunds of a line always add up to its subtotal exactly.
func lineRefund(line domain.SaleLineItem, q, alreadyReturned int64, alreadyRefunded decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if alreadyReturned+q >= line.Quantity {
		remaining := line.Subtotal.Sub(alreadyRefunded)
		return remaining.Div(decimal.NewFromInt(q)).Round(domain.MoneyScale), remaining
	}

	if line.PricingMode == domain.PricingRetail {
		return line.UnitPrice, line.UnitPrice.Mul(decimal.NewFromInt(q))
	}

	perUnit := line.Subtotal.Div(decimal.NewFromInt(line.Quantity))
	return perUnit.Round(domain.MoneyScale), perUnit.Mul(decimal.NewFromInt(q)).Round(domain.MoneyScale)
}
