package cart

import (
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/shopspring/decimal"
)

// Line is one cart entry, persisted as JSON in the session's cart blob.
// Lines for the same product in different variants are distinct entries.
type Line struct {
	UniqueID        string           `json:"unique_id"`
	ProductSlug     string           `json:"product_slug"`
	Name            string           `json:"name"`
	VariantSlug     string           `json:"variant_slug,omitempty"`
	VariantName     string           `json:"variant_name,omitempty"`
	Image           string           `json:"image,omitempty"`
	CategorySlug    string           `json:"category_slug,omitempty"`
	SubcategorySlug string           `json:"subcategory_slug,omitempty"`
	ListPrice       decimal.Decimal  `json:"list_price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
	Quantity        int              `json:"quantity"`
	Stock           int              `json:"stock"`
	Selected        bool             `json:"selected"`
	StockError      string           `json:"stock_error,omitempty"`
}

// UniqueID derives the cart line identity for a product and an optional
// variant. A product without variants keys on its slug alone.
func UniqueID(productSlug, variantSlug string) string {
	if variantSlug == "" {
		return productSlug
	}
	return productSlug + "-" + variantSlug
}

func (l Line) pricingLine() pricing.Line {
	return pricing.Line{
		UniqueID:            l.UniqueID,
		ProductSlug:         l.ProductSlug,
		SubcategorySlug:     l.SubcategorySlug,
		Quantity:            l.Quantity,
		ListUnitPrice:       l.ListPrice,
		DiscountedUnitPrice: l.DiscountedPrice,
	}
}
