package promo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/shopspring/decimal"
)

// Applied is the promo state persisted for a session: the rule needed to
// recompute the discount whenever the cart changes.
type Applied struct {
	Key            string          `json:"key"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CategorySlugs  []string        `json:"category_slugs,omitempty"`
	ProductSlugs   []string        `json:"product_slugs,omitempty"`
}

// Rule converts the persisted state back into a pricing rule.
func (a Applied) Rule() pricing.Rule {
	return pricing.Rule{
		Key:            a.Key,
		DiscountAmount: a.DiscountAmount,
		CategorySlugs:  a.CategorySlugs,
		ProductSlugs:   a.ProductSlugs,
	}
}

// Repository persists a session's applied promo independently of the cart
// blob, so clearing one never loses the other.
type Repository interface {
	Load(ctx context.Context, sessionID string) (*Applied, error)
	Save(ctx context.Context, sessionID string, applied Applied) error
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

func (r *redisRepository) Load(ctx context.Context, sessionID string) (*Applied, error) {
	raw, err := r.client.Get(ctx, r.client.PromoKey(sessionID))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "loading promo")
	}
	var applied Applied
	if err := json.Unmarshal([]byte(raw), &applied); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "decoding promo")
	}
	return &applied, nil
}

func (r *redisRepository) Save(ctx context.Context, sessionID string, applied Applied) error {
	payload, err := json.Marshal(applied)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encoding promo")
	}
	if err := r.client.Set(ctx, r.client.PromoKey(sessionID), payload, r.ttl); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "saving promo")
	}
	return nil
}

func (r *redisRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.client.PromoKey(sessionID)); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "clearing promo")
	}
	return nil
}

// MemoryRepository keeps promo state in process memory for tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	applied map[string]Applied
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{applied: map[string]Applied{}}
}

func (m *MemoryRepository) Load(_ context.Context, sessionID string) (*Applied, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	applied, ok := m.applied[sessionID]
	if !ok {
		return nil, nil
	}
	return &applied, nil
}

func (m *MemoryRepository) Save(_ context.Context, sessionID string, applied Applied) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied[sessionID] = applied
	return nil
}

func (m *MemoryRepository) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.applied, sessionID)
	return nil
}
