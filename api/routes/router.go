package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	"github.com/angelmondragon/storefront-backend/internal/viewed"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient redis.Pinger,
	metricsRegistry *prometheus.Registry,
	catalogSvc *catalog.Service,
	catalogViews *catalog.ViewRegistry,
	cartRepo cart.Repository,
	promoSvc *promo.Service,
	viewedSvc *viewed.Service,
	ordersSvc *orders.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redisClient))
	})

	var revalSweeps *metrics.RevalidationMetrics
	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
		revalSweeps = metrics.NewRevalidationMetrics(metricsRegistry)
	}

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products/{productSlug}", controllers.CatalogProduct(catalogSvc, logg))
		r.Post("/products/search", controllers.CatalogSearch(catalogSvc, logg))
		r.Get("/categories", controllers.CatalogCategories(catalogSvc, logg))
		r.Get("/categories/{categorySlug}/products", controllers.CatalogCategoryProducts(catalogSvc, logg))
		r.Get("/categories/{categorySlug}/filters", controllers.CatalogCategoryFilters(catalogSvc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))
			r.Put("/view", controllers.CatalogViewUpdate(catalogViews, logg))
			r.Delete("/view", controllers.CatalogViewClose(catalogViews, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartRepo, promoSvc, logg))
			r.Delete("/", controllers.CartClear(cartRepo, promoSvc, logg))
			r.Post("/items", controllers.CartAddItem(cartRepo, catalogSvc, promoSvc, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartRepo, promoSvc, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartRepo, promoSvc, logg))
			r.Post("/select-all", controllers.CartSelectAll(cartRepo, promoSvc, logg))
			r.Post("/revalidate", controllers.CartRevalidate(cartRepo, catalogSvc, promoSvc, revalSweeps, cfg.Cart.RevalidateTimeout, logg))
		})

		r.Route("/promo", func(r chi.Router) {
			r.Post("/", controllers.PromoApply(cartRepo, promoSvc, logg))
			r.Delete("/", controllers.PromoRemove(cartRepo, promoSvc, logg))
		})

		r.Route("/viewed", func(r chi.Router) {
			r.Get("/", controllers.ViewedList(viewedSvc, logg))
			r.Post("/", controllers.ViewedRecord(viewedSvc, catalogSvc, logg))
			r.Delete("/", controllers.ViewedClear(viewedSvc, logg))
			r.Delete("/{productSlug}", controllers.ViewedRemove(viewedSvc, logg))
		})

		r.Post("/checkout", controllers.CheckoutSubmit(cartRepo, ordersSvc, promoSvc, logg))
	})

	return r
}
