package catalog

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/variants"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
)

// Backend is the slice of the commerce API the catalog reads from.
type Backend interface {
	ProductBySlug(ctx context.Context, slug string) (*upstream.Product, error)
	FilteredProducts(ctx context.Context, req upstream.ListRequest) (*upstream.ProductPage, error)
	CategoryFilters(ctx context.Context, categorySlug string) ([]upstream.FilterSpec, error)
	Categories(ctx context.Context) ([]upstream.Category, error)
}

// ProductDetail is a product plus its resolved variant state.
type ProductDetail struct {
	Product    *upstream.Product
	Variants   []variants.Variant
	Resolution variants.Resolution
}

// Service exposes catalog reads: product detail, filtered listings,
// category filters and the category tree.
type Service struct {
	backend Backend
	logg    *logger.Logger
}

func NewService(backend Backend, logg *logger.Logger) (*Service, error) {
	if backend == nil {
		return nil, errors.New(errors.CodeInternal, "catalog backend is required")
	}
	if logg == nil {
		return nil, errors.New(errors.CodeInternal, "logger is required")
	}
	return &Service{backend: backend, logg: logg}, nil
}

// ProductBySlug fetches a product and resolves its default variant.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (*ProductDetail, error) {
	if slug == "" {
		return nil, errors.New(errors.CodeValidation, "product slug is required")
	}
	product, err := s.backend.ProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	list := variants.FromUpstream(product.Variants())
	return &ProductDetail{
		Product:    product,
		Variants:   list,
		Resolution: variants.Resolve(list, product.DefaultVariantSlug, product.InStock),
	}, nil
}

// StockBySlug returns the live stock for a product, or for one of its
// variants when variantSlug is set. A variant the product no longer carries
// reports as not found, same as a discontinued product.
func (s *Service) StockBySlug(ctx context.Context, productSlug, variantSlug string) (int, error) {
	product, err := s.backend.ProductBySlug(ctx, productSlug)
	if err != nil {
		return 0, err
	}
	if variantSlug == "" {
		return product.InStock, nil
	}
	for _, v := range product.Variants() {
		if v.Slug == variantSlug {
			return v.InStock, nil
		}
	}
	return 0, errors.New(errors.CodeNotFound, "variant not found")
}

// ListProducts runs a filtered, paginated listing query.
func (s *Service) ListProducts(ctx context.Context, req upstream.ListRequest) (*upstream.ProductPage, error) {
	if req.Slug == "" {
		return nil, errors.New(errors.CodeValidation, "category slug is required")
	}
	if req.Page < 1 {
		req.Page = 1
	}
	return s.backend.FilteredProducts(ctx, req)
}

// Filters returns the filterable characteristics for a category.
func (s *Service) Filters(ctx context.Context, categorySlug string) ([]upstream.FilterSpec, error) {
	if categorySlug == "" {
		return nil, errors.New(errors.CodeValidation, "category slug is required")
	}
	return s.backend.CategoryFilters(ctx, categorySlug)
}

// Categories returns the catalog navigation tree.
func (s *Service) Categories(ctx context.Context) ([]upstream.Category, error) {
	return s.backend.Categories(ctx)
}
