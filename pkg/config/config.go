package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Cart     CartConfig
	Catalog  CatalogConfig
	Orders   OrdersConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type UpstreamConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_UPSTREAM_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"STOREFRONT_UPSTREAM_TIMEOUT" default:"10s"`
}

type CartConfig struct {
	// SessionTTL bounds how long an idle cart survives in storage.
	SessionTTL        time.Duration `envconfig:"STOREFRONT_CART_SESSION_TTL" default:"720h"`
	RevalidateTimeout time.Duration `envconfig:"STOREFRONT_CART_REVALIDATE_TIMEOUT" default:"15s"`
}

type CatalogConfig struct {
	DebounceInterval time.Duration `envconfig:"STOREFRONT_CATALOG_DEBOUNCE_INTERVAL" default:"400ms"`
	DefaultSort      string        `envconfig:"STOREFRONT_CATALOG_DEFAULT_SORT" default:"default"`
}

type OrdersConfig struct {
	SubmitLimit  int           `envconfig:"STOREFRONT_ORDERS_SUBMIT_LIMIT" default:"5"`
	SubmitWindow time.Duration `envconfig:"STOREFRONT_ORDERS_SUBMIT_WINDOW" default:"24h"`
}
