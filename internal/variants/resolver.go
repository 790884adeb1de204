package variants

import (
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
)

// Variant is one purchasable configuration of a product.
type Variant struct {
	Name       string
	Slug       string
	Images     []string
	StockCount int
}

// FromUpstream maps the backend's variant payload into the resolver's model.
func FromUpstream(in []upstream.Variant) []Variant {
	if len(in) == 0 {
		return nil
	}
	out := make([]Variant, 0, len(in))
	for _, v := range in {
		out = append(out, Variant{
			Name:       v.Name,
			Slug:       v.Slug,
			Images:     v.Images,
			StockCount: v.InStock,
		})
	}
	return out
}

// Resolution is the outcome of resolving a product's active variant.
type Resolution struct {
	// Variant is nil for simple (variant-less) products.
	Variant *Variant
	Slug    string
	Stock   int
	Simple  bool
}

// Resolve picks the active variant for a product. Products with zero or one
// variant are treated as simple and report the product's own stock figure.
// Otherwise the declared default wins when in stock, then the first in-stock
// variant in declared order, then the default again for display with zero
// stock.
func Resolve(list []Variant, defaultSlug string, productStock int) Resolution {
	if len(list) <= 1 {
		return Resolution{Simple: true, Stock: productStock}
	}

	if v := find(list, defaultSlug); v != nil && v.StockCount > 0 {
		return Resolution{Variant: v, Slug: v.Slug, Stock: v.StockCount}
	}

	for i := range list {
		if list[i].StockCount > 0 {
			v := list[i]
			return Resolution{Variant: &v, Slug: v.Slug, Stock: v.StockCount}
		}
	}

	if v := find(list, defaultSlug); v != nil {
		return Resolution{Variant: v, Slug: v.Slug, Stock: 0}
	}

	// Default slug absent from the list entirely; show the first variant.
	v := list[0]
	return Resolution{Variant: &v, Slug: v.Slug, Stock: 0}
}

// Selection holds the active variant for a loaded product and applies
// explicit user switches. A rejected switch leaves the selection untouched.
type Selection struct {
	variants    []Variant
	defaultSlug string
	stock       int
	active      Resolution
}

// NewSelection resolves the initial active variant for the given list.
func NewSelection(list []Variant, defaultSlug string, productStock int) *Selection {
	return &Selection{
		variants:    list,
		defaultSlug: defaultSlug,
		stock:       productStock,
		active:      Resolve(list, defaultSlug, productStock),
	}
}

// Active returns the current resolution.
func (s *Selection) Active() Resolution {
	return s.active
}

// Select switches to the named variant. Unknown or out-of-stock variants are
// rejected with no partial state change.
func (s *Selection) Select(slug string) error {
	if s.active.Simple {
		return pkgerrors.New(pkgerrors.CodeValidation, "product has no variants")
	}
	v := find(s.variants, slug)
	if v == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant not found")
	}
	if v.StockCount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant is out of stock")
	}
	s.active = Resolution{Variant: v, Slug: v.Slug, Stock: v.StockCount}
	return nil
}

// Reset re-resolves only when the variant list actually changed, so callers
// can invoke it on every product refresh without churning the selection.
func (s *Selection) Reset(list []Variant, defaultSlug string, productStock int) {
	if defaultSlug == s.defaultSlug && productStock == s.stock && equalLists(list, s.variants) {
		return
	}
	s.variants = list
	s.defaultSlug = defaultSlug
	s.stock = productStock
	s.active = Resolve(list, defaultSlug, productStock)
}

func find(list []Variant, slug string) *Variant {
	if slug == "" {
		return nil
	}
	for i := range list {
		if list[i].Slug == slug {
			v := list[i]
			return &v
		}
	}
	return nil
}

func equalLists(a, b []Variant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Slug != b[i].Slug || a[i].StockCount != b[i].StockCount {
			return false
		}
	}
	return true
}
