package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/promo"
	"github.com/angelmondragon/storefront-backend/internal/viewed"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubBackend struct {
	mu       sync.Mutex
	products map[string]*upstream.Product
	lists    []upstream.ListRequest
}

func (s *stubBackend) ProductBySlug(_ context.Context, slug string) (*upstream.Product, error) {
	product, ok := s.products[slug]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *stubBackend) FilteredProducts(_ context.Context, req upstream.ListRequest) (*upstream.ProductPage, error) {
	s.mu.Lock()
	s.lists = append(s.lists, req)
	s.mu.Unlock()
	return &upstream.ProductPage{Products: []upstream.ProductSummary{}, MaxPage: 1}, nil
}

func (s *stubBackend) listRequests() []upstream.ListRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]upstream.ListRequest, len(s.lists))
	copy(out, s.lists)
	return out
}

func (s *stubBackend) CategoryFilters(_ context.Context, _ string) ([]upstream.FilterSpec, error) {
	return []upstream.FilterSpec{{Name: "color", Values: []string{"red", "blue"}}}, nil
}

func (s *stubBackend) Categories(_ context.Context) ([]upstream.Category, error) {
	return []upstream.Category{{ID: 1, Name: "Clothes", Slug: "clothes"}}, nil
}

type stubFinder struct {
	rules map[string]*upstream.PromoRule
}

func (s *stubFinder) PromoByKey(_ context.Context, key string) (*upstream.PromoRule, error) {
	rule, ok := s.rules[key]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found or invalid")
	}
	return rule, nil
}

type stubSubmitter struct {
	requests []upstream.OrderRequest
}

func (s *stubSubmitter) SubmitOrder(_ context.Context, req upstream.OrderRequest) error {
	s.requests = append(s.requests, req)
	return nil
}

type stubLimiter struct{ allowed bool }

func (s *stubLimiter) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return s.allowed, 1, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "test", Port: "8080"},
		Cart:    config.CartConfig{SessionTTL: time.Hour, RevalidateTimeout: 5 * time.Second},
		Catalog: config.CatalogConfig{DebounceInterval: 10 * time.Millisecond, DefaultSort: "default"},
		Orders:  config.OrdersConfig{SubmitLimit: 5, SubmitWindow: 24 * time.Hour},
	}
}

func testProduct() *upstream.Product {
	discount := decimal.NewFromInt(800)
	return &upstream.Product{
		Name:               "Shirt",
		Slug:               "shirt-1",
		Price:              decimal.NewFromInt(1000),
		PriceDiscount:      &discount,
		InStock:            9,
		IsActive:           true,
		DefaultVariantSlug: "red",
		Models: []upstream.VariantGroup{
			{
				Name: "color",
				Variants: []upstream.Variant{
					{Name: "Red", Slug: "red", InStock: 4},
					{Name: "Blue", Slug: "blue", InStock: 2},
					{Name: "Green", Slug: "green", InStock: 0},
				},
			},
		},
		CategoryPath: []upstream.CategoryRef{{Name: "Clothes", Slug: "clothes"}, {Name: "Tees", Slug: "tees"}},
	}
}

func testCatalog() map[string]*upstream.Product {
	return map[string]*upstream.Product{
		"shirt-1": testProduct(),
		"pants-1": {
			Name:         "Pants",
			Slug:         "pants-1",
			Price:        decimal.NewFromInt(2000),
			InStock:      3,
			IsActive:     true,
			CategoryPath: []upstream.CategoryRef{{Name: "Clothes", Slug: "clothes"}, {Name: "Pants", Slug: "pants"}},
		},
		"sold-out-1": {
			Name:         "Sold Out",
			Slug:         "sold-out-1",
			Price:        decimal.NewFromInt(700),
			InStock:      0,
			IsActive:     true,
			CategoryPath: []upstream.CategoryRef{{Name: "Clothes", Slug: "clothes"}},
		},
		"retired-1": {
			Name:         "Retired",
			Slug:         "retired-1",
			Price:        decimal.NewFromInt(500),
			InStock:      5,
			IsActive:     false,
			CategoryPath: []upstream.CategoryRef{{Name: "Clothes", Slug: "clothes"}},
		},
	}
}

func newTestRouter(t *testing.T, submitter *stubSubmitter) http.Handler {
	router, _ := newTestRouterWithBackend(t, submitter, promo.NewMemoryRepository())
	return router
}

func newTestRouterWithBackend(t *testing.T, submitter *stubSubmitter, promoRepo promo.Repository) (http.Handler, *stubBackend) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	backend := &stubBackend{products: testCatalog()}

	catalogSvc, err := catalog.NewService(backend, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalogViews := catalog.NewViewRegistry(context.Background(), catalogSvc, testConfig().Catalog)
	t.Cleanup(catalogViews.Close)

	promoSvc, err := promo.NewService(&stubFinder{rules: map[string]*upstream.PromoRule{
		"SAVE100": {Key: "SAVE100", DiscountAmount: decimal.NewFromInt(100), ProductSlugs: []string{"shirt-1"}},
	}}, promoRepo, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	viewedSvc, err := viewed.NewService(viewed.NewMemoryRepository(), logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ordersSvc, err := orders.NewService(submitter, &stubLimiter{allowed: true}, promoSvc, testConfig().Orders, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	router := NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		prometheus.NewRegistry(),
		catalogSvc,
		catalogViews,
		cart.NewMemoryRepository(),
		promoSvc,
		viewedSvc,
		ordersSvc,
	)
	return router, backend
}

func doJSON(t *testing.T, router http.Handler, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload %v", envelope.Data)
	}
	return data
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := doJSON(t, router, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})

	w := doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCatalogProductDetail(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})

	w := doJSON(t, router, http.MethodGet, "/api/v1/catalog/products/shirt-1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	product := data["product"].(map[string]any)
	if product["slug"] != "shirt-1" {
		t.Fatalf("unexpected product %v", product)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/catalog/products/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSessionHeaderIssuedWhenMissing(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})

	w := doJSON(t, router, http.MethodGet, "/api/v1/cart/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	issued := w.Header().Get("X-Session-Id")
	if issued == "" {
		t.Fatal("expected a session id to be issued")
	}
	if err := uuid.Validate(issued); err != nil {
		t.Fatalf("expected a uuid session id, got %s", issued)
	}
}

func TestCartCheckoutFlow(t *testing.T) {
	submitter := &stubSubmitter{}
	router := newTestRouter(t, submitter)
	sessionID := uuid.NewString()

	// Add a variant line twice so quantity reaches 2.
	for i := 0; i < 2; i++ {
		w := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionID,
			map[string]string{"product_slug": "shirt-1", "variant_slug": "red"})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/cart/", sessionID, nil)
	data := decodeData(t, w)
	lines := data["lines"].([]any)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0].(map[string]any)
	if line["unique_id"] != "shirt-1-red" || line["quantity"].(float64) != 2 {
		t.Fatalf("unexpected line %v", line)
	}

	// Discounted price is 800, so two units total 1600 after per-line discount.
	totals := data["totals"].(map[string]any)
	if totals["grand_total"] != "1600" {
		t.Fatalf("unexpected totals %v", totals)
	}

	// Apply the promo: 100 off per unit for shirt-1.
	w = doJSON(t, router, http.MethodPost, "/api/v1/promo/", sessionID, map[string]string{"code": "save100"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = decodeData(t, w)
	totals = data["totals"].(map[string]any)
	if totals["promo_discount_total"] != "200" || totals["grand_total"] != "1400" {
		t.Fatalf("unexpected totals after promo %v", totals)
	}

	// Checkout submits the selected lines and empties the cart.
	w = doJSON(t, router, http.MethodPost, "/api/v1/checkout", sessionID,
		map[string]string{"name": "Ivan", "phone": "+79991234567"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if len(submitter.requests) != 1 {
		t.Fatalf("expected 1 order submission, got %d", len(submitter.requests))
	}
	order := submitter.requests[0]
	if len(order.SelectedItems) != 1 || order.SelectedItems[0].Slug != "shirt-1" || order.SelectedItems[0].VariantSlug != "red" {
		t.Fatalf("unexpected order items %+v", order.SelectedItems)
	}
	if order.Promocode == nil || *order.Promocode != "SAVE100" {
		t.Fatalf("expected promocode forwarded, got %v", order.Promocode)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/cart/", sessionID, nil)
	data = decodeData(t, w)
	if lines := data["lines"].([]any); len(lines) != 0 {
		t.Fatalf("expected empty cart after checkout, got %v", lines)
	}
}

func TestCartRevalidateEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})
	sessionID := uuid.NewString()

	w := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionID,
		map[string]string{"product_slug": "shirt-1", "variant_slug": "blue"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/cart/revalidate", sessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if dropped := data["dropped"].([]any); len(dropped) != 0 {
		t.Fatalf("expected nothing dropped, got %v", dropped)
	}
}

func TestPromoRejectionKeepsCart(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})
	sessionID := uuid.NewString()

	w := doJSON(t, router, http.MethodPost, "/api/v1/promo/", sessionID, map[string]string{"code": "NOPE"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", w.Code)
	}
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	list, ok := envelope.Data.([]any)
	if !ok {
		t.Fatalf("unexpected payload %v", envelope.Data)
	}
	return list
}

func cartLineCount(t *testing.T, router http.Handler, sessionID string) int {
	t.Helper()
	w := doJSON(t, router, http.MethodGet, "/api/v1/cart/", sessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	return len(decodeData(t, w)["lines"].([]any))
}

func TestCartAddRejectsOutOfStock(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})
	sessionID := uuid.NewString()

	// The green variant has zero stock.
	w := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionID,
		map[string]string{"product_slug": "shirt-1", "variant_slug": "green"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a stock-0 variant, got %d: %s", w.Code, w.Body.String())
	}

	// A variantless product with zero stock is rejected the same way.
	w = doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionID,
		map[string]string{"product_slug": "sold-out-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a sold-out product, got %d: %s", w.Code, w.Body.String())
	}

	if count := cartLineCount(t, router, sessionID); count != 0 {
		t.Fatalf("expected the cart untouched, got %d lines", count)
	}
}

func TestCartAddRequiresVariantForMultiVariantProduct(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})
	sessionID := uuid.NewString()

	w := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionID,
		map[string]string{"product_slug": "shirt-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a variant, got %d: %s", w.Code, w.Body.String())
	}
	if count := cartLineCount(t, router, sessionID); count != 0 {
		t.Fatalf("expected the cart untouched, got %d lines", count)
	}

	// A product with no variants still adds by slug alone.
	w = doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionID,
		map[string]string{"product_slug": "pants-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	line := decodeData(t, w)["lines"].([]any)[0].(map[string]any)
	if line["unique_id"] != "pants-1" {
		t.Fatalf("unexpected line %v", line)
	}
	if line["category_slug"] != "clothes" || line["subcategory_slug"] != "pants" {
		t.Fatalf("expected category breadcrumb on the line, got %v", line)
	}
}

func TestViewedHistoryFlow(t *testing.T) {
	router := newTestRouter(t, &stubSubmitter{})
	sessionID := uuid.NewString()

	for _, slug := range []string{"shirt-1", "pants-1"} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/viewed/", sessionID,
			map[string]string{"product_slug": slug})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	// Revisiting moves the product back to the front.
	w := doJSON(t, router, http.MethodPost, "/api/v1/viewed/", sessionID,
		map[string]string{"product_slug": "shirt-1"})
	history := decodeList(t, w)
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	first := history[0].(map[string]any)
	if first["slug"] != "shirt-1" || first["category_slug"] != "clothes" {
		t.Fatalf("unexpected first entry %v", first)
	}

	// Inactive products are not recorded.
	w = doJSON(t, router, http.MethodPost, "/api/v1/viewed/", sessionID,
		map[string]string{"product_slug": "retired-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if history := decodeList(t, w); len(history) != 2 {
		t.Fatalf("expected the inactive product skipped, got %v", history)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/v1/viewed/shirt-1", sessionID, nil)
	if history := decodeList(t, w); len(history) != 1 {
		t.Fatalf("expected 1 entry after removal, got %v", history)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/v1/viewed/", sessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodGet, "/api/v1/viewed/", sessionID, nil)
	if history := decodeList(t, w); len(history) != 0 {
		t.Fatalf("expected empty history, got %v", history)
	}
}

func TestCatalogViewEndpoint(t *testing.T) {
	router, backend := newTestRouterWithBackend(t, &stubSubmitter{}, promo.NewMemoryRepository())
	sessionID := uuid.NewString()

	w := doJSON(t, router, http.MethodPut, "/api/v1/catalog/view", sessionID,
		map[string]any{"slug": "tees", "filters": map[string]string{"color": "red"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if page := decodeData(t, w); page["max_page"].(float64) != 1 {
		t.Fatalf("unexpected page %v", page)
	}

	requests := backend.listRequests()
	if len(requests) == 0 {
		t.Fatal("expected the view to run a listing query")
	}
	last := requests[len(requests)-1]
	if last.Slug != "tees" || last.Filters["color"] != "red" || last.Page != 1 {
		t.Fatalf("unexpected listing request %+v", last)
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/catalog/view", sessionID,
		map[string]any{"slug": "tees", "page": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	requests = backend.listRequests()
	if last := requests[len(requests)-1]; last.Page != 3 || last.Filters["color"] != "red" {
		t.Fatalf("expected the page change to keep filters, got %+v", last)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/v1/catalog/view", sessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

type failingOncePromoRepo struct {
	*promo.MemoryRepository
	mu   sync.Mutex
	fail bool
}

func (f *failingOncePromoRepo) arm() {
	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()
}

func (f *failingOncePromoRepo) Load(ctx context.Context, sessionID string) (*promo.Applied, error) {
	f.mu.Lock()
	fail := f.fail
	f.fail = false
	f.mu.Unlock()
	if fail {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "promo storage unavailable")
	}
	return f.MemoryRepository.Load(ctx, sessionID)
}

func TestCheckoutProceedsWhenPromoLookupFails(t *testing.T) {
	submitter := &stubSubmitter{}
	promoRepo := &failingOncePromoRepo{MemoryRepository: promo.NewMemoryRepository()}
	router, _ := newTestRouterWithBackend(t, submitter, promoRepo)
	sessionID := uuid.NewString()

	w := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionID,
		map[string]string{"product_slug": "shirt-1", "variant_slug": "red"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	promoRepo.arm()
	w = doJSON(t, router, http.MethodPost, "/api/v1/checkout", sessionID,
		map[string]string{"name": "Ivan", "phone": "+79991234567"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected the order to submit, got %d: %s", w.Code, w.Body.String())
	}

	if len(submitter.requests) != 1 {
		t.Fatalf("expected 1 order submission, got %d", len(submitter.requests))
	}
	if code := submitter.requests[0].Promocode; code != nil {
		t.Fatalf("expected no promocode when the lookup fails, got %v", *code)
	}
}
