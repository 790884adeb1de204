package pricing

import (
	"slices"

	"github.com/angelmondragon/storefront-backend/pkg/upstream"
	"github.com/shopspring/decimal"
)

// Rule is a promo discount rule applied against selected cart lines.
type Rule struct {
	Key            string
	DiscountAmount decimal.Decimal
	CategorySlugs  []string
	ProductSlugs   []string
}

// RuleFromUpstream maps the backend promo payload into the pricing model.
func RuleFromUpstream(in *upstream.PromoRule) Rule {
	if in == nil {
		return Rule{}
	}
	return Rule{
		Key:            in.Key,
		DiscountAmount: in.DiscountAmount,
		CategorySlugs:  in.CategorySlugs,
		ProductSlugs:   in.ProductSlugs,
	}
}

// Eligible reports whether the rule applies to the given line: the line's
// subcategory is on the category list, or its product slug is on the product
// list. A rule defining neither list applies to every line.
func (r Rule) Eligible(line Line) bool {
	if len(r.CategorySlugs) == 0 && len(r.ProductSlugs) == 0 {
		return true
	}
	if slices.Contains(r.CategorySlugs, line.SubcategorySlug) {
		return true
	}
	return slices.Contains(r.ProductSlugs, line.ProductSlug)
}

// Discount is an evaluated promo: the aggregate amount plus the per-line
// breakdown keyed by the line's unique id.
type Discount struct {
	Key     string                     `json:"key"`
	Total   decimal.Decimal            `json:"total"`
	PerLine map[string]decimal.Decimal `json:"per_line"`
}

// Evaluate computes the discount the rule yields against the selected lines:
// the flat amount times quantity for each eligible line, floored at zero. An
// empty per-line map (total zero) means the rule does not apply to this cart.
func (r Rule) Evaluate(lines []Line) Discount {
	total := decimal.Zero
	perLine := map[string]decimal.Decimal{}

	for _, line := range lines {
		if line.Quantity <= 0 || !r.Eligible(line) {
			continue
		}
		amount := r.DiscountAmount.Mul(decimal.NewFromInt(int64(line.Quantity)))
		if !amount.IsPositive() {
			continue
		}
		perLine[line.UniqueID] = amount
		total = total.Add(amount)
	}

	return Discount{Key: r.Key, Total: total, PerLine: perLine}
}

// Applicable reports whether the evaluated discount actually reduced
// anything; a zero-effect promo is treated as not applicable.
func (d Discount) Applicable() bool {
	return d.Total.IsPositive()
}
