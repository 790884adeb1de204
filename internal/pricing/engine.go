package pricing

import (
	"github.com/shopspring/decimal"
)

// Line is the pricing view of one selected cart line.
type Line struct {
	UniqueID            string
	ProductSlug         string
	SubcategorySlug     string
	Quantity            int
	ListUnitPrice       decimal.Decimal
	DiscountedUnitPrice *decimal.Decimal
}

// EffectiveUnitPrice returns the discounted unit price when it is present
// and strictly below the list price, else the list price.
func (l Line) EffectiveUnitPrice() decimal.Decimal {
	if l.DiscountedUnitPrice != nil && l.DiscountedUnitPrice.LessThan(l.ListUnitPrice) {
		return *l.DiscountedUnitPrice
	}
	return l.ListUnitPrice
}

// LineTotal is quantity times the effective unit price.
func (l Line) LineTotal() decimal.Decimal {
	return l.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals are the derived money figures shown in cart and checkout.
type Totals struct {
	Subtotal             decimal.Decimal `json:"subtotal"`
	PerLineDiscountTotal decimal.Decimal `json:"per_line_discount_total"`
	PromoDiscountTotal   decimal.Decimal `json:"promo_discount_total"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
}

// ComputeTotals derives the cart totals for the given selected lines and an
// optional applied promo discount. The grand total never goes negative.
func ComputeTotals(lines []Line, promo *Discount) Totals {
	subtotal := decimal.Zero
	perLine := decimal.Zero

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.ListUnitPrice.Mul(qty))

		effective := line.EffectiveUnitPrice()
		if effective.LessThan(line.ListUnitPrice) {
			perLine = perLine.Add(line.ListUnitPrice.Sub(effective).Mul(qty))
		}
	}

	promoTotal := decimal.Zero
	if promo != nil {
		promoTotal = promo.Total
	}

	grand := subtotal.Sub(perLine).Sub(promoTotal)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	return Totals{
		Subtotal:             subtotal,
		PerLineDiscountTotal: perLine,
		PromoDiscountTotal:   promoTotal,
		GrandTotal:           grand,
	}
}
