package catalog

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// ViewRegistry hands out one listing view per session, so filter and sort
// changes arriving as separate requests share the view's debounce and
// staleness state. A session browses one category at a time; asking for a
// different slug closes the previous view.
type ViewRegistry struct {
	svc  Lister
	cfg  config.CatalogConfig
	base context.Context

	mu    sync.Mutex
	views map[string]*sessionView
}

type sessionView struct {
	slug string
	view *View
}

// NewViewRegistry binds the registry to the lister every view refreshes
// with. The context bounds the fetches of every view it creates.
func NewViewRegistry(ctx context.Context, svc Lister, cfg config.CatalogConfig) *ViewRegistry {
	return &ViewRegistry{
		svc:   svc,
		cfg:   cfg,
		base:  ctx,
		views: map[string]*sessionView{},
	}
}

// ViewFor returns the session's view for the slug, creating it on first use.
func (r *ViewRegistry) ViewFor(sessionID, slug string) *View {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sv, ok := r.views[sessionID]; ok {
		if sv.slug == slug {
			return sv.view
		}
		sv.view.Close()
	}
	v := NewView(r.base, r.svc, r.cfg, slug)
	r.views[sessionID] = &sessionView{slug: slug, view: v}
	return v
}

// Release closes and forgets the session's view. Unknown sessions are a
// no-op.
func (r *ViewRegistry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sv, ok := r.views[sessionID]; ok {
		sv.view.Close()
		delete(r.views, sessionID)
	}
}

// Close shuts down every view.
func (r *ViewRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sv := range r.views {
		sv.view.Close()
		delete(r.views, id)
	}
}
