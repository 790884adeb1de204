package cart

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Repository persists a session's cart lines.
type Repository interface {
	Load(ctx context.Context, sessionID string) ([]Line, error)
	Save(ctx context.Context, sessionID string, lines []Line) error
	Clear(ctx context.Context, sessionID string) error
}

type redisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository stores cart lines as a JSON blob keyed by session,
// refreshing the session TTL on every save.
func NewRedisRepository(client *redis.Client, cfg config.CartConfig) (Repository, error) {
	if client == nil {
		return nil, errors.New(errors.CodeInternal, "redis client is required")
	}
	return &redisRepository{client: client, ttl: cfg.SessionTTL}, nil
}

func (r *redisRepository) Load(ctx context.Context, sessionID string) ([]Line, error) {
	raw, err := r.client.Get(ctx, r.client.CartKey(sessionID))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "loading cart")
	}
	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "decoding cart")
	}
	return lines, nil
}

func (r *redisRepository) Save(ctx context.Context, sessionID string, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encoding cart")
	}
	if err := r.client.Set(ctx, r.client.CartKey(sessionID), payload, r.ttl); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "saving cart")
	}
	return nil
}

func (r *redisRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.client.CartKey(sessionID)); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "clearing cart")
	}
	return nil
}

// MemoryRepository keeps carts in process memory. Used in tests and as a
// fallback when no Redis is configured in development.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string][]Line
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: map[string][]Line{}}
}

func (m *MemoryRepository) Load(_ context.Context, sessionID string) ([]Line, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.carts[sessionID]
	if !ok {
		return nil, nil
	}
	lines := make([]Line, len(stored))
	copy(lines, stored)
	return lines, nil
}

func (m *MemoryRepository) Save(_ context.Context, sessionID string, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]Line, len(lines))
	copy(stored, lines)
	m.carts[sessionID] = stored
	return nil
}

func (m *MemoryRepository) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}
