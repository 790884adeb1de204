package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// cartViewResponse is the derived cart state returned after every read or
// mutation: the raw lines plus the totals computed over the selected ones.
type cartViewResponse struct {
	Lines                 []cart.Line       `json:"lines"`
	Totals                pricing.Totals    `json:"totals"`
	Promo                 *pricing.Discount `json:"promo,omitempty"`
	TotalSelectedQuantity int               `json:"total_selected_quantity"`
}

func sessionStore(r *http.Request, repo cart.Repository) (*cart.Store, string, error) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeInternal, "session not established")
	}
	store, err := cart.NewStore(sessionID, repo)
	if err != nil {
		return nil, "", err
	}
	if err := store.Hydrate(r.Context()); err != nil {
		return nil, "", err
	}
	return store, sessionID, nil
}

func buildCartView(ctx context.Context, store *cart.Store, promos *promo.Service, sessionID string) (cartViewResponse, error) {
	pricingLines := store.SelectedPricingLines()

	discount, err := promos.Current(ctx, sessionID, pricingLines)
	if err != nil {
		return cartViewResponse{}, err
	}

	lines := store.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartViewResponse{
		Lines:                 lines,
		Totals:                pricing.ComputeTotals(pricingLines, discount),
		Promo:                 discount,
		TotalSelectedQuantity: store.TotalSelectedQuantity(),
	}, nil
}
