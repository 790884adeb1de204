package upstream

import "github.com/shopspring/decimal"

// Variant is one purchasable configuration of a product (e.g. a color).
type Variant struct {
	Name    string   `json:"name"`
	Slug    string   `json:"slug"`
	Images  []string `json:"images"`
	InStock int      `json:"in_stock"`
}

// VariantGroup is a named characteristic (e.g. "color") with its variants.
type VariantGroup struct {
	Name     string    `json:"name"`
	Variants []Variant `json:"specEnums"`
}

// CategoryRef is one step of a product's category breadcrumb.
type CategoryRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Product is the full product detail payload served by the backend.
type Product struct {
	Name               string           `json:"name"`
	Slug               string           `json:"slug"`
	Image              string           `json:"image_logo"`
	Price              decimal.Decimal  `json:"price"`
	PriceDiscount      *decimal.Decimal `json:"price_discount"`
	DescShort          string           `json:"desc_short"`
	DescLong           string           `json:"desc_long"`
	InStock            int              `json:"in_stock"`
	IsActive           bool             `json:"is_active"`
	DefaultVariant     string           `json:"defaultModel"`
	DefaultVariantSlug string           `json:"defaultModel_slug"`
	Models             []VariantGroup   `json:"models"`
	CategoryPath       []CategoryRef    `json:"category_path"`
}

// Variants returns the variant list of the product's primary characteristic.
func (p *Product) Variants() []Variant {
	if p == nil || len(p.Models) == 0 {
		return nil
	}
	return p.Models[0].Variants
}

// CategorySlug returns the top-level category slug, if present.
func (p *Product) CategorySlug() string {
	if p == nil || len(p.CategoryPath) == 0 {
		return ""
	}
	return p.CategoryPath[0].Slug
}

// SubcategorySlug returns the leaf category slug, if present.
func (p *Product) SubcategorySlug() string {
	if p == nil || len(p.CategoryPath) == 0 {
		return ""
	}
	return p.CategoryPath[len(p.CategoryPath)-1].Slug
}

// ProductSummary is one row of a filtered/paginated product listing.
type ProductSummary struct {
	Name          string           `json:"name"`
	Slug          string           `json:"slug"`
	Image         string           `json:"image_logo"`
	Price         decimal.Decimal  `json:"price"`
	PriceDiscount *decimal.Decimal `json:"price_discount"`
	DescShort     string           `json:"desc_short"`
	CategorySlug  string           `json:"category_slug"`
	InStock       int              `json:"in_stock"`
}

// ProductPage is the filtered listing response.
type ProductPage struct {
	Products []ProductSummary `json:"products"`
	MaxPage  int              `json:"max_page"`
}

// ListRequest is the payload for the filtered product listing endpoint.
// Filters carry arbitrary filter key/value pairs alongside the fixed fields.
type ListRequest struct {
	Slug    string
	Page    int
	OrderBy string
	Filters map[string]string
}

// FilterSpec describes one available filter for a category.
type FilterSpec struct {
	Name   string   `json:"name"`
	Values []string `json:"spec_enums"`
}

// Category is a catalog navigation node.
type Category struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Image     string     `json:"image"`
	Slug      string     `json:"slug"`
	Parent    *int       `json:"parent"`
	HasChilds bool       `json:"has_childs"`
	Children  []Category `json:"children"`
}

// PromoRule is a discount rule fetched by code string.
type PromoRule struct {
	Key            string          `json:"key"`
	DiscountAmount decimal.Decimal `json:"discount"`
	CategorySlugs  []string        `json:"categories_slugs"`
	ProductSlugs   []string        `json:"products_slugs"`
}

// OrderItem is one ordered line in an order submission.
type OrderItem struct {
	Quantity    int    `json:"quantity"`
	Slug        string `json:"slug"`
	VariantSlug string `json:"color"`
}

// OrderRequest is the order submission payload.
type OrderRequest struct {
	Name          string      `json:"name"`
	Phone         string      `json:"phone"`
	Comment       *string     `json:"comment"`
	Promocode     *string     `json:"promocode"`
	SelectedItems []OrderItem `json:"selectedItems"`
}
