package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/viewed"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type recordViewedRequest struct {
	ProductSlug string `json:"product_slug" validate:"required"`
}

func sessionID(r *http.Request) (string, error) {
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "session not established")
	}
	return id, nil
}

// ViewedList returns the session's recently viewed products.
func ViewedList(svc *viewed.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.List(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if history == nil {
			history = []viewed.Product{}
		}
		responses.WriteSuccess(w, history)
	}
}

// ViewedRecord remembers a product-page visit. Inactive products are not
// recorded; the call still returns the current history.
func ViewedRecord(svc *viewed.Service, catalogSvc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordViewedRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := catalogSvc.ProductBySlug(r.Context(), req.ProductSlug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var history []viewed.Product
		if detail.Product.IsActive {
			history, err = svc.Record(r.Context(), id, viewedFromDetail(detail))
		} else {
			history, err = svc.List(r.Context(), id)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if detail.Product.IsActive {
			lctx := logg.WithProductSlug(logg.WithSessionID(r.Context(), id), req.ProductSlug)
			logg.Info(lctx, "viewed product recorded")
		}
		if history == nil {
			history = []viewed.Product{}
		}
		responses.WriteSuccess(w, history)
	}
}

func viewedFromDetail(detail *catalog.ProductDetail) viewed.Product {
	product := detail.Product
	return viewed.Product{
		Slug:               product.Slug,
		Name:               product.Name,
		Image:              product.Image,
		CategorySlug:       product.CategorySlug(),
		SubcategorySlug:    product.SubcategorySlug(),
		ListPrice:          product.Price,
		DiscountedPrice:    product.PriceDiscount,
		Stock:              product.InStock,
		DefaultVariantSlug: product.DefaultVariantSlug,
	}
}

// ViewedRemove forgets one product.
func ViewedRemove(svc *viewed.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.Remove(r.Context(), id, chi.URLParam(r, "productSlug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if history == nil {
			history = []viewed.Product{}
		}
		responses.WriteSuccess(w, history)
	}
}

// ViewedClear erases the history.
func ViewedClear(svc *viewed.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, []viewed.Product{})
	}
}
