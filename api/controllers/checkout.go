package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type checkoutRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Comment string `json:"comment" validate:"max=200"`
}

// CheckoutSubmit places an order for the selected cart lines. On success the
// ordered lines leave the cart and the applied promo is consumed.
func CheckoutSubmit(repo cart.Repository, ordersSvc *orders.Service, promos *promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, sessionID, err := sessionStore(r, repo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		selected := store.SelectedLines()

		// A failing promo lookup must not block the order; it submits
		// without the code.
		promocode := ""
		discount, promoErr := promos.Current(r.Context(), sessionID, store.SelectedPricingLines())
		switch {
		case promoErr != nil:
			logg.Error(logg.WithSessionID(r.Context(), sessionID), "loading applied promo for checkout", promoErr)
		case discount != nil:
			promocode = discount.Key
		}

		input := orders.Input{
			Name:      validators.SanitizeString(req.Name, 0),
			Phone:     validators.SanitizeString(req.Phone, 0),
			Comment:   validators.SanitizeString(req.Comment, 0),
			Promocode: promocode,
		}
		if err := ordersSvc.Submit(r.Context(), sessionID, input, selected); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		for _, line := range selected {
			if err := store.RemoveLine(r.Context(), line.UniqueID); err != nil {
				logg.Error(logg.WithSessionID(r.Context(), sessionID), "removing ordered line from cart", err)
				break
			}
		}

		view, err := buildCartView(r.Context(), store, promos, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"status": "submitted",
			"cart":   view,
		})
	}
}
