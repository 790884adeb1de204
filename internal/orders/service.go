package orders

import (
	"context"
	"regexp"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/upstream"
)

const maxCommentLength = 200

var phonePattern = regexp.MustCompile(`^\+7\d{10}$`)

// Submitter sends a completed order to the commerce backend.
type Submitter interface {
	SubmitOrder(ctx context.Context, req upstream.OrderRequest) error
}

// RateLimiter bounds how many orders a session may place per window.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// PromoClearer drops a session's applied promo after a successful order.
type PromoClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// Input is the customer-entered checkout form.
type Input struct {
	Name      string
	Phone     string
	Comment   string
	Promocode string
}

// Service validates and submits orders.
type Service struct {
	submitter Submitter
	limiter   RateLimiter
	promos    PromoClearer
	cfg       config.OrdersConfig
	logg      *logger.Logger
}

func NewService(submitter Submitter, limiter RateLimiter, promos PromoClearer, cfg config.OrdersConfig, logg *logger.Logger) (*Service, error) {
	if submitter == nil {
		return nil, errors.New(errors.CodeInternal, "order submitter is required")
	}
	if limiter == nil {
		return nil, errors.New(errors.CodeInternal, "rate limiter is required")
	}
	if promos == nil {
		return nil, errors.New(errors.CodeInternal, "promo clearer is required")
	}
	if logg == nil {
		return nil, errors.New(errors.CodeInternal, "logger is required")
	}
	return &Service{submitter: submitter, limiter: limiter, promos: promos, cfg: cfg, logg: logg}, nil
}

// Submit validates the form and the selected lines, enforces the per-session
// order limit, and sends the order upstream. The session's promo is cleared
// once the backend accepts the order.
func (s *Service) Submit(ctx context.Context, sessionID string, input Input, lines []cart.Line) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if len(lines) == 0 {
		return errors.New(errors.CodeValidation, "no items selected for checkout")
	}

	allowed, count, err := s.limiter.FixedWindowAllow(ctx, "orders:"+sessionID, int64(s.cfg.SubmitLimit), s.cfg.SubmitWindow)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "checking order limit")
	}
	if !allowed {
		lctx := s.logg.WithField(s.logg.WithSessionID(ctx, sessionID), "attempts", count)
		s.logg.Warn(lctx, "order limit reached")
		return errors.New(errors.CodeRateLimit, "order limit exceeded for today")
	}

	if err := s.submitter.SubmitOrder(ctx, buildRequest(input, lines)); err != nil {
		return err
	}

	if err := s.promos.Clear(ctx, sessionID); err != nil {
		// The order is already placed; a failed promo cleanup is not fatal.
		s.logg.Error(s.logg.WithSessionID(ctx, sessionID), "clearing promo after order", err)
	}

	lctx := s.logg.WithField(s.logg.WithSessionID(ctx, sessionID), "items", len(lines))
	s.logg.Info(lctx, "order submitted")
	return nil
}

func validateInput(input Input) error {
	if input.Name == "" {
		return errors.New(errors.CodeValidation, "name is required")
	}
	if !phonePattern.MatchString(input.Phone) {
		return errors.New(errors.CodeValidation, "phone must match +7 followed by 10 digits")
	}
	if len([]rune(input.Comment)) > maxCommentLength {
		return errors.New(errors.CodeValidation, "comment must be at most 200 characters")
	}
	return nil
}

func buildRequest(input Input, lines []cart.Line) upstream.OrderRequest {
	items := make([]upstream.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, upstream.OrderItem{
			Quantity:    line.Quantity,
			Slug:        line.ProductSlug,
			VariantSlug: line.VariantSlug,
		})
	}

	req := upstream.OrderRequest{
		Name:          input.Name,
		Phone:         input.Phone,
		SelectedItems: items,
	}
	if input.Comment != "" {
		comment := input.Comment
		req.Comment = &comment
	}
	if input.Promocode != "" {
		code := input.Promocode
		req.Promocode = &code
	}
	return req
}
