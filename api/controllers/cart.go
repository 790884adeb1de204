package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type addItemRequest struct {
	ProductSlug string `json:"product_slug" validate:"required"`
	VariantSlug string `json:"variant_slug"`
}

type updateItemRequest struct {
	Quantity *int  `json:"quantity"`
	Selected *bool `json:"selected"`
}

type selectAllRequest struct {
	Selected bool `json:"selected"`
}

// CartFetch returns the session's cart with derived totals.
func CartFetch(repo cart.Repository, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem puts a product/variant into the cart, looking the product up
// so the stored line carries current name, price and stock.
func CartAddItem(repo cart.Repository, catalogSvc *catalog.Service, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := catalogSvc.ProductBySlug(r.Context(), req.ProductSlug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := lineFromProduct(detail, req.VariantSlug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.AddLine(r.Context(), line); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lctx := logg.WithProductSlug(logg.WithSessionID(r.Context(), sessionID), line.ProductSlug)
		logg.Info(lctx, "cart line added")

		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// lineFromProduct builds the cart line for a product and an optional
// variant. Adds are validated here, before the store mutates anything: a
// multi-variant product needs an explicit variant and the resolved stock
// must be positive.
func lineFromProduct(detail *catalog.ProductDetail, variantSlug string) (cart.Line, error) {
	product := detail.Product

	line := cart.Line{
		ProductSlug:     product.Slug,
		Name:            product.Name,
		Image:           product.Image,
		CategorySlug:    product.CategorySlug(),
		SubcategorySlug: product.SubcategorySlug(),
		ListPrice:       product.Price,
		DiscountedPrice: product.PriceDiscount,
		Stock:           product.InStock,
	}

	if variantSlug == "" {
		if len(detail.Variants) > 0 {
			return cart.Line{}, pkgerrors.New(pkgerrors.CodeValidation, "variant selection is required")
		}
		if line.Stock <= 0 {
			return cart.Line{}, pkgerrors.New(pkgerrors.CodeValidation, "product is out of stock")
		}
		return line, nil
	}
	for _, v := range detail.Variants {
		if v.Slug == variantSlug {
			if v.StockCount <= 0 {
				return cart.Line{}, pkgerrors.New(pkgerrors.CodeValidation, "variant is out of stock")
			}
			line.VariantSlug = v.Slug
			line.VariantName = v.Name
			line.Stock = v.StockCount
			if len(v.Images) > 0 {
				line.Image = v.Images[0]
			}
			return line, nil
		}
	}
	return cart.Line{}, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
}

// CartUpdateItem changes a line's quantity and/or selection.
func CartUpdateItem(repo cart.Repository, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uniqueID := chi.URLParam(r, "itemId")

		var req updateItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Quantity == nil && req.Selected == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity or selected is required"))
			return
		}

		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if req.Quantity != nil {
			if err := store.SetQuantity(r.Context(), uniqueID, *req.Quantity); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if req.Selected != nil {
			if err := store.SetSelected(r.Context(), uniqueID, *req.Selected); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartRemoveItem deletes a line from the cart.
func CartRemoveItem(repo cart.Repository, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uniqueID := chi.URLParam(r, "itemId")

		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.RemoveLine(r.Context(), uniqueID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartSelectAll toggles every line's selection.
func CartSelectAll(repo cart.Repository, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectAllRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.SetAllSelected(r.Context(), req.Selected); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartRevalidate refreshes every line against live catalog stock. Lines the
// catalog can no longer vouch for are adjusted but the cart stays usable, so
// partial failures still return the updated view.
func CartRevalidate(repo cart.Repository, fetcher cart.StockFetcher, promos *promo.Service, sweeps *metrics.RevalidationMetrics, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		result, revErr := store.Revalidate(ctx, fetcher)
		if revErr != nil {
			logg.Error(logg.WithSessionID(r.Context(), sessionID), "cart revalidation finished with lookup failures", revErr)
		}
		sweeps.ObserveSweep(len(result.Dropped), len(result.Clamped), len(result.Deselected), len(result.Errored))

		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"cart":       view,
			"dropped":    emptyIfNil(result.Dropped),
			"clamped":    emptyIfNil(result.Clamped),
			"deselected": emptyIfNil(result.Deselected),
			"errored":    emptyIfNil(result.Errored),
		})
	}
}

// CartClear empties the cart.
func CartClear(repo cart.Repository, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
