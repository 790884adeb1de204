package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	productPath        = "products"
	productFilterPath  = "products/filters"
	categoryAllPath    = "categories/all"
	categoryFilterPath = "categories/filters/all"
	promocodePath      = "promocodes"
	ordersPath         = "orders"

	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("upstream base url is required")

// Client talks to the remote commerce backend's JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.UpstreamMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics attaches upstream call metrics.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds the commerce backend client.
func NewClient(cfg config.UpstreamConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ProductBySlug fetches the full product detail. A backend 404 surfaces as a
// typed not-found error.
func (c *Client) ProductBySlug(ctx context.Context, slug string) (*Product, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upstream client not configured")
	}
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}

	var product Product
	err := c.do(ctx, "product_by_slug", http.MethodGet, fmt.Sprintf("%s/%s", productPath, url.PathEscape(trimmed)), nil, &product, map[int]error{
		http.StatusNotFound: pkgerrors.New(pkgerrors.CodeNotFound, "product not found"),
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FilteredProducts fetches one page of the filtered product listing. A 404
// from the backend means "no products for these filters" and yields an empty
// page, not an error.
func (c *Client) FilteredProducts(ctx context.Context, req ListRequest) (*ProductPage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upstream client not configured")
	}
	if strings.TrimSpace(req.Slug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing slug is required")
	}

	payload := map[string]any{
		"Slug": req.Slug,
		"Page": req.Page,
	}
	if req.OrderBy != "" && req.OrderBy != "default" {
		payload["OrderBy"] = req.OrderBy
	}
	for key, value := range req.Filters {
		payload[key] = value
	}

	var page ProductPage
	err := c.do(ctx, "filtered_products", http.MethodPost, productFilterPath, payload, &page, map[int]error{
		http.StatusNotFound: nil,
	})
	if err != nil {
		return nil, err
	}
	if page.Products == nil {
		page.Products = []ProductSummary{}
	}
	if page.MaxPage < 1 {
		page.MaxPage = 1
	}
	return &page, nil
}

// CategoryFilters fetches the available filters for a category. A 404 yields
// an empty filter list.
func (c *Client) CategoryFilters(ctx context.Context, categorySlug string) ([]FilterSpec, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upstream client not configured")
	}
	if strings.TrimSpace(categorySlug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category slug is required")
	}

	var resp struct {
		Spec []FilterSpec `json:"Spec"`
	}
	err := c.do(ctx, "category_filters", http.MethodPost, categoryFilterPath, map[string]any{"category": categorySlug}, &resp, map[int]error{
		http.StatusNotFound: nil,
	})
	if err != nil {
		return nil, err
	}
	return resp.Spec, nil
}

// Categories fetches the full category tree.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upstream client not configured")
	}

	var resp struct {
		Categories []Category `json:"categories"`
	}
	if err := c.do(ctx, "categories", http.MethodGet, categoryAllPath, nil, &resp, nil); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// PromoByKey looks up a promo rule by its (already normalized) code.
func (c *Client) PromoByKey(ctx context.Context, key string) (*PromoRule, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upstream client not configured")
	}
	if strings.TrimSpace(key) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is required")
	}

	var resp struct {
		Promocode *PromoRule `json:"promocode"`
	}
	err := c.do(ctx, "promo_lookup", http.MethodPost, promocodePath, map[string]any{"key": key}, &resp, map[int]error{
		http.StatusNotFound:   pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found or invalid"),
		http.StatusBadRequest: pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found or invalid"),
	})
	if err != nil {
		return nil, err
	}
	if resp.Promocode == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found or invalid")
	}
	return resp.Promocode, nil
}

// SubmitOrder posts an order. The backend's 429 is surfaced as the distinct
// daily-limit rate error, never as a generic failure.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "upstream client not configured")
	}
	if len(req.SelectedItems) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	return c.do(ctx, "submit_order", http.MethodPost, ordersPath, req, nil, map[int]error{
		http.StatusTooManyRequests: pkgerrors.New(pkgerrors.CodeRateLimit, "order limit exceeded for today"),
	})
}

// do executes one JSON round trip. statusOverrides maps non-2xx statuses to
// typed results: a nil override means "treat as success with an empty body".
func (c *Client) do(ctx context.Context, operation, method, path string, payload, dest any, statusOverrides map[int]error) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, payload, dest, statusOverrides)
	c.metrics.ObserveDuration(operation, time.Since(start))
	if err != nil && pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		c.metrics.IncFailure(operation)
	} else {
		c.metrics.IncSuccess(operation)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload, dest any, statusOverrides map[int]error) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal upstream request")
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build upstream request")
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute upstream request")
	}
	defer func() { _ = resp.Body.Close() }()

	if override, ok := statusOverrides[resp.StatusCode]; ok && resp.StatusCode >= 400 {
		// A nil override downgrades the status to success with an empty body;
		// catalog reads treat a backend 404 as "no results", not a failure.
		return override
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "upstream request failed")
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode upstream response")
	}
	return nil
}
