package viewed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Product is one remembered product-page visit, kept most recent first.
type Product struct {
	Slug               string           `json:"slug"`
	Name               string           `json:"name"`
	Image              string           `json:"image,omitempty"`
	CategorySlug       string           `json:"category_slug,omitempty"`
	SubcategorySlug    string           `json:"subcategory_slug,omitempty"`
	ListPrice          decimal.Decimal  `json:"list_price"`
	DiscountedPrice    *decimal.Decimal `json:"discounted_price,omitempty"`
	Stock              int              `json:"stock"`
	DefaultVariantSlug string           `json:"default_variant_slug,omitempty"`
}

// Repository persists a session's viewed-product history as one ordered list.
type Repository interface {
	Load(ctx context.Context, sessionID string) ([]Product, error)
	Save(ctx context.Context, sessionID string, products []Product) error
	Clear(ctx context.Context, sessionID string) error
}

type redisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, cfg config.CartConfig) (Repository, error) {
	if client == nil {
		return nil, errors.New(errors.CodeInternal, "redis client is required")
	}
	return &redisRepository{client: client, ttl: cfg.SessionTTL}, nil
}

func (r *redisRepository) Load(ctx context.Context, sessionID string) ([]Product, error) {
	raw, err := r.client.Get(ctx, r.client.ViewedKey(sessionID))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "loading viewed products")
	}
	var products []Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "decoding viewed products")
	}
	return products, nil
}

func (r *redisRepository) Save(ctx context.Context, sessionID string, products []Product) error {
	payload, err := json.Marshal(products)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encoding viewed products")
	}
	if err := r.client.Set(ctx, r.client.ViewedKey(sessionID), payload, r.ttl); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "saving viewed products")
	}
	return nil
}

func (r *redisRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.client.ViewedKey(sessionID)); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "clearing viewed products")
	}
	return nil
}

// MemoryRepository keeps viewed-product history in process memory for tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string][]Product
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{products: map[string][]Product{}}
}

func (m *MemoryRepository) Load(_ context.Context, sessionID string) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.products[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]Product, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MemoryRepository) Save(_ context.Context, sessionID string, products []Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]Product, len(products))
	copy(stored, products)
	m.products[sessionID] = stored
	return nil
}

func (m *MemoryRepository) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, sessionID)
	return nil
}
