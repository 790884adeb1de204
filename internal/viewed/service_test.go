package viewed

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(NewMemoryRepository(), logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func product(slug string) Product {
	return Product{Slug: slug, Name: slug, ListPrice: decimal.NewFromInt(1000)}
}

func slugs(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Slug
	}
	return out
}

func TestRecordOrdersMostRecentFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, slug := range []string{"shirt-1", "pants-1", "hat-1"} {
		if _, err := svc.Record(ctx, "sess-1", product(slug)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history, err := svc.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := slugs(history)
	want := []string{"hat-1", "pants-1", "shirt-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestRecordMovesExistingToFront(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, slug := range []string{"shirt-1", "pants-1"} {
		if _, err := svc.Record(ctx, "sess-1", product(slug)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	history, err := svc.Record(ctx, "sess-1", product("shirt-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Slug != "shirt-1" || history[1].Slug != "pants-1" {
		t.Fatalf("unexpected order %v", slugs(history))
	}
}

func TestRecordCapsHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < maxEntries+3; i++ {
		if _, err := svc.Record(ctx, "sess-1", product(fmt.Sprintf("product-%d", i))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history, err := svc.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != maxEntries {
		t.Fatalf("expected %d entries, got %d", maxEntries, len(history))
	}
	if history[0].Slug != fmt.Sprintf("product-%d", maxEntries+2) {
		t.Fatalf("expected newest first, got %s", history[0].Slug)
	}
	for _, p := range history {
		if p.Slug == "product-0" {
			t.Fatal("expected the oldest entry to fall off")
		}
	}
}

func TestRecordRequiresSlug(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Record(context.Background(), "sess-1", Product{Name: "no slug"})
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, slug := range []string{"shirt-1", "pants-1"} {
		if _, err := svc.Record(ctx, "sess-1", product(slug)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history, err := svc.Remove(ctx, "sess-1", "shirt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 || history[0].Slug != "pants-1" {
		t.Fatalf("unexpected history %v", slugs(history))
	}

	// Removing an unknown slug changes nothing.
	history, err = svc.Remove(ctx, "sess-1", "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}

	if err := svc.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history, err = svc.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %v", slugs(history))
	}
}
