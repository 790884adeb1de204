package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type applyPromoRequest struct {
	Code string `json:"code" validate:"required"`
}

// PromoApply validates a code against the selected cart lines and applies it.
func PromoApply(repo cart.Repository, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req applyPromoRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := promos.Apply(r.Context(), sessionID, req.Code, store.SelectedPricingLines()); err != nil {
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

// PromoRemove drops the session's applied promo.
func PromoRemove(repo cart.Repository, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := promos.Clear(r.Context(), sessionID); err != nil {
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
