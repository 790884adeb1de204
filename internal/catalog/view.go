package catalog

import (
	"context"
	"maps"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/debounce"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
)

// Lister runs the listing query the view refreshes with.
type Lister interface {
	ListProducts(ctx context.Context, req upstream.ListRequest) (*upstream.ProductPage, error)
}

// Result is one refresh outcome delivered on the view's results channel.
type Result struct {
	Page *upstream.ProductPage
	Err  error
}

// View drives a category listing with interactive filter, sort and page
// state. Filter and sort changes are debounced so a burst of toggles runs a
// single query; page changes refresh immediately. A fetch that finishes
// after the state moved on is dropped rather than published.
type View struct {
	svc  Lister
	deb  *debounce.Debouncer
	base context.Context

	mu      sync.Mutex
	slug    string
	page    int
	orderBy string
	filters map[string]string
	gen     uint64
	closed  bool

	results chan Result
}

// NewView binds a view to one category slug. The context bounds every
// refresh the view issues.
func NewView(ctx context.Context, svc Lister, cfg config.CatalogConfig, slug string) *View {
	return &View{
		svc:     svc,
		deb:     debounce.New(cfg.DebounceInterval),
		base:    ctx,
		slug:    slug,
		page:    1,
		orderBy: cfg.DefaultSort,
		results: make(chan Result, 1),
	}
}

// Results delivers refresh outcomes. The channel holds only the latest
// result; an unread stale result is replaced, never queued behind.
func (v *View) Results() <-chan Result {
	return v.results
}

// SetFilters replaces the filter set and resets to the first page. The
// refresh is debounced.
func (v *View) SetFilters(filters map[string]string) {
	v.mu.Lock()
	v.filters = maps.Clone(filters)
	v.page = 1
	v.gen++
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	v.deb.Trigger(v.refresh)
}

// SetSort replaces the sort order and resets to the first page. The refresh
// is debounced together with any pending filter change.
func (v *View) SetSort(orderBy string) {
	v.mu.Lock()
	v.orderBy = orderBy
	v.page = 1
	v.gen++
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	v.deb.Trigger(v.refresh)
}

// SetPage jumps to a page and refreshes immediately, cancelling any pending
// debounced refresh in favor of this one.
func (v *View) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	v.mu.Lock()
	v.page = page
	v.gen++
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	v.deb.Trigger(nil)
	go v.refresh()
}

// Refresh re-runs the current query immediately.
func (v *View) Refresh() {
	v.mu.Lock()
	v.gen++
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	go v.refresh()
}

// Close cancels any pending refresh and marks in-flight results stale.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.gen++
	v.mu.Unlock()
	v.deb.Stop()
}

func (v *View) refresh() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	gen := v.gen
	req := upstream.ListRequest{
		Slug:    v.slug,
		Page:    v.page,
		OrderBy: v.orderBy,
		Filters: maps.Clone(v.filters),
	}
	v.mu.Unlock()

	page, err := v.svc.ListProducts(v.base, req)

	v.mu.Lock()
	stale := v.closed || gen != v.gen
	v.mu.Unlock()
	if stale {
		return
	}
	v.publish(Result{Page: page, Err: err})
}

func (v *View) publish(res Result) {
	for {
		select {
		case v.results <- res:
			return
		default:
		}
		select {
		case <-v.results:
		default:
		}
	}
}
