package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/variants"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
)

type productSearchRequest struct {
	Slug    string            `json:"slug" validate:"required"`
	Page    int               `json:"page"`
	OrderBy string            `json:"order_by"`
	Filters map[string]string `json:"filters"`
}

type viewUpdateRequest struct {
	Slug    string            `json:"slug" validate:"required"`
	Filters map[string]string `json:"filters"`
	OrderBy *string           `json:"order_by"`
	Page    *int              `json:"page"`
}

type productDetailResponse struct {
	Product    *upstream.Product   `json:"product"`
	Variants   []variants.Variant  `json:"variants"`
	Resolution variants.Resolution `json:"resolution"`
}

// CatalogProduct returns a product detail with its resolved variant.
func CatalogProduct(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "productSlug")

		detail, err := svc.ProductBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list := detail.Variants
		if list == nil {
			list = []variants.Variant{}
		}
		responses.WriteSuccess(w, productDetailResponse{
			Product:    detail.Product,
			Variants:   list,
			Resolution: detail.Resolution,
		})
	}
}

// CatalogSearch runs a filtered, sorted, paginated listing query.
func CatalogSearch(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req productSearchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListProducts(r.Context(), upstream.ListRequest{
			Slug:    req.Slug,
			Page:    req.Page,
			OrderBy: req.OrderBy,
			Filters: req.Filters,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CatalogCategoryProducts is the GET flavor of listing: page and sort come
// from query parameters, without filters.
func CatalogCategoryProducts(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "categorySlug")

		pageNum, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListProducts(r.Context(), upstream.ListRequest{
			Slug:    slug,
			Page:    pageNum,
			OrderBy: r.URL.Query().Get("order_by"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CatalogViewUpdate applies interactive listing state to the session's
// category view and waits for the refreshed page. Filter and sort changes
// are debounced by the view, so a burst of updates runs one query and only
// the freshest result is returned; a request with no changes re-runs the
// current query.
func CatalogViewUpdate(registry *catalog.ViewRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req viewUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := registry.ViewFor(id, req.Slug)
		changed := false
		if req.Filters != nil {
			view.SetFilters(req.Filters)
			changed = true
		}
		if req.OrderBy != nil {
			view.SetSort(*req.OrderBy)
			changed = true
		}
		if req.Page != nil {
			view.SetPage(*req.Page)
			changed = true
		}
		if !changed {
			view.Refresh()
		}

		select {
		case res := <-view.Results():
			if res.Err != nil {
				responses.WriteError(r.Context(), logg, w, res.Err)
				return
			}
			responses.WriteSuccess(w, res.Page)
		case <-r.Context().Done():
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "listing refresh was cancelled"))
		}
	}
}

// CatalogViewClose releases the session's listing view.
func CatalogViewClose(registry *catalog.ViewRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		registry.Release(id)
		responses.WriteSuccess(w, map[string]string{"status": "closed"})
	}
}

// CatalogCategories returns the navigation tree.
func CatalogCategories(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tree == nil {
			tree = []upstream.Category{}
		}
		responses.WriteSuccess(w, tree)
	}
}

// CatalogCategoryFilters returns the filterable characteristics of a category.
func CatalogCategoryFilters(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "categorySlug")

		filters, err := svc.Filters(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters == nil {
			filters = []upstream.FilterSpec{}
		}
		responses.WriteSuccess(w, filters)
	}
}
