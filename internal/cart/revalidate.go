package cart

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"go.uber.org/multierr"
)

// StockFetcher reports the current stock for a product/variant pair. A
// discontinued product surfaces as a CodeNotFound error.
type StockFetcher interface {
	StockBySlug(ctx context.Context, productSlug, variantSlug string) (int, error)
}

// RevalidateResult summarizes what a stock revalidation changed.
type RevalidateResult struct {
	Dropped    []string
	Clamped    []string
	Deselected []string
	Errored    []string
}

// Revalidate refreshes every line's stock concurrently and applies each
// outcome independently: discontinued lines are dropped, over-stock
// quantities clamped, zero-stock lines deselected, and lines whose lookup
// failed are flagged but kept. Lookup failures aggregate into the returned
// error alongside the applied changes.
func (s *Store) Revalidate(ctx context.Context, fetcher StockFetcher) (RevalidateResult, error) {
	if fetcher == nil {
		return RevalidateResult{}, errors.New(errors.CodeInternal, "stock fetcher is required")
	}

	lines := s.Lines()

	type outcome struct {
		uniqueID string
		stock    int
		err      error
	}

	results := make([]outcome, len(lines))
	var wg sync.WaitGroup
	for i, line := range lines {
		wg.Add(1)
		go func(i int, line Line) {
			defer wg.Done()
			stock, err := fetcher.StockBySlug(ctx, line.ProductSlug, line.VariantSlug)
			results[i] = outcome{uniqueID: line.UniqueID, stock: stock, err: err}
		}(i, line)
	}
	wg.Wait()

	var result RevalidateResult
	var lookupErr error

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range results {
		line := s.findLocked(res.uniqueID)
		if line == nil {
			continue
		}
		switch {
		case errors.IsCode(res.err, errors.CodeNotFound):
			s.dropLocked(res.uniqueID)
			result.Dropped = append(result.Dropped, res.uniqueID)
		case res.err != nil:
			line.StockError = res.err.Error()
			result.Errored = append(result.Errored, res.uniqueID)
			lookupErr = multierr.Append(lookupErr, res.err)
		case res.stock == 0:
			line.Stock = 0
			line.Selected = false
			line.StockError = ""
			result.Deselected = append(result.Deselected, res.uniqueID)
		default:
			line.Stock = res.stock
			line.StockError = ""
			if line.Quantity > res.stock {
				line.Quantity = res.stock
				result.Clamped = append(result.Clamped, res.uniqueID)
			}
		}
	}

	if err := s.persistLocked(ctx); err != nil {
		return result, multierr.Append(lookupErr, err)
	}
	return result, lookupErr
}

func (s *Store) dropLocked(uniqueID string) {
	kept := s.lines[:0]
	for _, line := range s.lines {
		if line.UniqueID == uniqueID {
			continue
		}
		kept = append(kept, line)
	}
	s.lines = kept
}
