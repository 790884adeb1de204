package promo

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
)

// Finder looks a promo code up on the commerce backend.
type Finder interface {
	PromoByKey(ctx context.Context, key string) (*upstream.PromoRule, error)
}

// Service applies promo codes against a session's selected cart lines.
type Service struct {
	finder Finder
	repo   Repository
	logg   *logger.Logger
}

func NewService(finder Finder, repo Repository, logg *logger.Logger) (*Service, error) {
	if finder == nil {
		return nil, errors.New(errors.CodeInternal, "promo finder is required")
	}
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "promo repository is required")
	}
	if logg == nil {
		return nil, errors.New(errors.CodeInternal, "logger is required")
	}
	return &Service{finder: finder, repo: repo, logg: logg}, nil
}

// Apply validates the code upstream, evaluates it against the selected
// lines, and persists it. A code that would discount nothing is rejected and
// any previously applied promo stays in effect.
func (s *Service) Apply(ctx context.Context, sessionID, code string, lines []pricing.Line) (pricing.Discount, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return pricing.Discount{}, errors.New(errors.CodeValidation, "promo code is required")
	}

	rule, err := s.finder.PromoByKey(ctx, normalized)
	if err != nil {
		return pricing.Discount{}, err
	}

	discount := pricing.RuleFromUpstream(rule).Evaluate(lines)
	if !discount.Applicable() {
		return pricing.Discount{}, errors.New(errors.CodeValidation, "promo code does not apply to the selected items")
	}

	applied := Applied{
		Key:            rule.Key,
		DiscountAmount: rule.DiscountAmount,
		CategorySlugs:  rule.CategorySlugs,
		ProductSlugs:   rule.ProductSlugs,
	}
	if err := s.repo.Save(ctx, sessionID, applied); err != nil {
		return pricing.Discount{}, err
	}

	lctx := s.logg.WithField(s.logg.WithSessionID(ctx, sessionID), "promo_key", rule.Key)
	s.logg.Info(lctx, "promo applied")
	return discount, nil
}

// Current recomputes the session's applied promo against the given lines.
// A promo that no longer discounts anything is dropped and nil is returned.
func (s *Service) Current(ctx context.Context, sessionID string, lines []pricing.Line) (*pricing.Discount, error) {
	applied, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if applied == nil {
		return nil, nil
	}

	discount := applied.Rule().Evaluate(lines)
	if !discount.Applicable() {
		if err := s.repo.Clear(ctx, sessionID); err != nil {
			return nil, err
		}
		lctx := s.logg.WithField(s.logg.WithSessionID(ctx, sessionID), "promo_key", applied.Key)
		s.logg.Info(lctx, "promo no longer applies, cleared")
		return nil, nil
	}
	return &discount, nil
}

// Clear removes the session's applied promo.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.repo.Clear(ctx, sessionID)
}
