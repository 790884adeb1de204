package promo

import (
	"context"
	"io"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
	"github.com/shopspring/decimal"
)

type stubFinder struct {
	rules map[string]*upstream.PromoRule
	calls []string
}

func (s *stubFinder) PromoByKey(_ context.Context, key string) (*upstream.PromoRule, error) {
	s.calls = append(s.calls, key)
	rule, ok := s.rules[key]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, "promo code not found or invalid")
	}
	return rule, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, finder Finder) (*Service, Repository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc, err := NewService(finder, repo, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, repo
}

func shirtLines() []pricing.Line {
	return []pricing.Line{
		{UniqueID: "shirt-1-red", ProductSlug: "shirt-1", Quantity: 2, ListUnitPrice: decimal.NewFromInt(500)},
		{UniqueID: "shirt-2-blue", ProductSlug: "shirt-2", Quantity: 1, ListUnitPrice: decimal.NewFromInt(500)},
	}
}

func save100() *upstream.PromoRule {
	return &upstream.PromoRule{
		Key:            "SAVE100",
		DiscountAmount: decimal.NewFromInt(100),
		ProductSlugs:   []string{"shirt-1"},
	}
}

func TestApplyNormalizesAndPersists(t *testing.T) {
	finder := &stubFinder{rules: map[string]*upstream.PromoRule{"SAVE100": save100()}}
	svc, repo := newTestService(t, finder)
	ctx := context.Background()

	discount, err := svc.Apply(ctx, "session-1", "  save100 ", shirtLines())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(finder.calls) != 1 || finder.calls[0] != "SAVE100" {
		t.Fatalf("expected uppercase lookup, got %v", finder.calls)
	}
	if !discount.Total.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected discount total 200, got %s", discount.Total)
	}
	if _, ok := discount.PerLine["shirt-2-blue"]; ok {
		t.Fatalf("expected no discount for shirt-2-blue, got %v", discount.PerLine)
	}

	applied, err := repo.Load(ctx, "session-1")
	if err != nil || applied == nil {
		t.Fatalf("expected persisted promo, got %v, %v", applied, err)
	}
	if applied.Key != "SAVE100" {
		t.Fatalf("unexpected persisted key %s", applied.Key)
	}
}

func TestApplyEmptyCode(t *testing.T) {
	svc, _ := newTestService(t, &stubFinder{})

	if _, err := svc.Apply(context.Background(), "session-1", "   ", nil); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyUnknownCode(t *testing.T) {
	svc, _ := newTestService(t, &stubFinder{})

	if _, err := svc.Apply(context.Background(), "session-1", "NOPE", shirtLines()); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestApplyZeroEffectKeepsPriorPromo(t *testing.T) {
	finder := &stubFinder{rules: map[string]*upstream.PromoRule{
		"SAVE100": save100(),
		"HATS": {
			Key:            "HATS",
			DiscountAmount: decimal.NewFromInt(50),
			ProductSlugs:   []string{"hat"},
		},
	}}
	svc, repo := newTestService(t, finder)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, "session-1", "SAVE100", shirtLines()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Apply(ctx, "session-1", "HATS", shirtLines())
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	applied, err := repo.Load(ctx, "session-1")
	if err != nil || applied == nil || applied.Key != "SAVE100" {
		t.Fatalf("expected SAVE100 still applied, got %v, %v", applied, err)
	}
}

func TestCurrentRecomputes(t *testing.T) {
	finder := &stubFinder{rules: map[string]*upstream.PromoRule{"SAVE100": save100()}}
	svc, _ := newTestService(t, finder)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, "session-1", "SAVE100", shirtLines()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bigger := []pricing.Line{
		{UniqueID: "shirt-1-red", ProductSlug: "shirt-1", Quantity: 5, ListUnitPrice: decimal.NewFromInt(500)},
	}
	discount, err := svc.Current(ctx, "session-1", bigger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount == nil || !discount.Total.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected recomputed discount 500, got %+v", discount)
	}
}

func TestCurrentDropsPromoThatNoLongerApplies(t *testing.T) {
	finder := &stubFinder{rules: map[string]*upstream.PromoRule{"SAVE100": save100()}}
	svc, repo := newTestService(t, finder)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, "session-1", "SAVE100", shirtLines()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	onlyShirt2 := []pricing.Line{
		{UniqueID: "shirt-2-blue", ProductSlug: "shirt-2", Quantity: 1, ListUnitPrice: decimal.NewFromInt(500)},
	}
	discount, err := svc.Current(ctx, "session-1", onlyShirt2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount != nil {
		t.Fatalf("expected promo invalidated, got %+v", discount)
	}

	applied, err := repo.Load(ctx, "session-1")
	if err != nil || applied != nil {
		t.Fatalf("expected promo cleared from repo, got %v, %v", applied, err)
	}
}

func TestCurrentNoPromo(t *testing.T) {
	svc, _ := newTestService(t, &stubFinder{})

	discount, err := svc.Current(context.Background(), "session-1", shirtLines())
	if err != nil || discount != nil {
		t.Fatalf("expected nil discount, got %+v, %v", discount, err)
	}
}
