package main

import (
	"context"
	"net/http"
	"os"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	"github.com/angelmondragon/storefront-backend/internal/viewed"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	upstreamMetrics := metrics.NewUpstreamMetrics(registry)

	backend, err := upstream.NewClient(cfg.Upstream, upstream.WithMetrics(upstreamMetrics))
	if err != nil {
		logg.Error(context.Background(), "failed to create upstream client", err)
		os.Exit(1)
	}

	catalogSvc, err := catalog.NewService(backend, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	catalogViews := catalog.NewViewRegistry(context.Background(), catalogSvc, cfg.Catalog)
	defer catalogViews.Close()

	cartRepo, err := cart.NewRedisRepository(redisClient, cfg.Cart)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart repository", err)
		os.Exit(1)
	}

	promoRepo, err := promo.NewRedisRepository(redisClient, cfg.Cart)
	if err != nil {
		logg.Error(context.Background(), "failed to create promo repository", err)
		os.Exit(1)
	}

	promoSvc, err := promo.NewService(backend, promoRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create promo service", err)
		os.Exit(1)
	}

	viewedRepo, err := viewed.NewRedisRepository(redisClient, cfg.Cart)
	if err != nil {
		logg.Error(context.Background(), "failed to create viewed repository", err)
		os.Exit(1)
	}

	viewedSvc, err := viewed.NewService(viewedRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create viewed service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(backend, redisClient, promoSvc, cfg.Orders, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, registry, catalogSvc, catalogViews, cartRepo, promoSvc, viewedSvc, ordersSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
