package viewed

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// maxEntries caps the history length; the oldest entry falls off.
const maxEntries = 10

// Service maintains a session's recently viewed products: a deduplicated
// list ordered most recent first.
type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "viewed repository is required")
	}
	if logg == nil {
		return nil, errors.New(errors.CodeInternal, "logger is required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Record moves the product to the front of the history, trimming to the cap,
// and returns the updated list.
func (s *Service) Record(ctx context.Context, sessionID string, product Product) ([]Product, error) {
	if product.Slug == "" {
		return nil, errors.New(errors.CodeValidation, "product slug is required")
	}

	history, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updated := make([]Product, 0, len(history)+1)
	updated = append(updated, product)
	for _, p := range history {
		if p.Slug == product.Slug {
			continue
		}
		updated = append(updated, p)
	}
	if len(updated) > maxEntries {
		updated = updated[:maxEntries]
	}

	if err := s.repo.Save(ctx, sessionID, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns the session's history, most recent first.
func (s *Service) List(ctx context.Context, sessionID string) ([]Product, error) {
	return s.repo.Load(ctx, sessionID)
}

// Remove drops one product from the history. Removing an absent slug is a
// no-op.
func (s *Service) Remove(ctx context.Context, sessionID, slug string) ([]Product, error) {
	history, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updated := make([]Product, 0, len(history))
	for _, p := range history {
		if p.Slug == slug {
			continue
		}
		updated = append(updated, p)
	}
	if len(updated) == len(history) {
		return history, nil
	}

	if err := s.repo.Save(ctx, sessionID, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Clear erases the session's history.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.repo.Clear(ctx, sessionID)
}
