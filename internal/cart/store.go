package cart

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable copy of the cart handed to subscribers and
// handlers after each mutation.
type Snapshot struct {
	Lines []Line `json:"lines"`
}

// Store holds one session's cart lines and persists every mutation through
// the repository. All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	sessionID string
	repo      Repository
	lines     []Line
	subs      []chan Snapshot
}

// NewStore binds a store to a session. Call Hydrate before first use to
// load any persisted lines.
func NewStore(sessionID string, repo Repository) (*Store, error) {
	if sessionID == "" {
		return nil, errors.New(errors.CodeValidation, "session id is required")
	}
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "cart repository is required")
	}
	return &Store{sessionID: sessionID, repo: repo}, nil
}

// Hydrate loads persisted lines. A missing blob leaves the cart empty.
func (s *Store) Hydrate(ctx context.Context) error {
	lines, err := s.repo.Load(ctx, s.sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
	return nil
}

// AddLine adds a product/variant line. If the same unique id is already in
// the cart its quantity is bumped by one instead, capped at the known stock.
func (s *Store) AddLine(ctx context.Context, line Line) error {
	if line.ProductSlug == "" {
		return errors.New(errors.CodeValidation, "product slug is required")
	}
	line.UniqueID = UniqueID(line.ProductSlug, line.VariantSlug)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findLocked(line.UniqueID); existing != nil {
		next := existing.Quantity + 1
		if existing.Stock > 0 && next > existing.Stock {
			next = existing.Stock
		}
		existing.Quantity = next
		return s.persistLocked(ctx)
	}

	line.Quantity = 1
	line.Selected = true
	s.lines = append(s.lines, line)
	return s.persistLocked(ctx)
}

// RemoveLine deletes a line by unique id. Removing an absent line is a no-op.
func (s *Store) RemoveLine(ctx context.Context, uniqueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.lines[:0]
	removed := false
	for _, line := range s.lines {
		if line.UniqueID == uniqueID {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	s.lines = kept
	if !removed {
		return nil
	}
	return s.persistLocked(ctx)
}

// SetQuantity sets a line's quantity. Quantities below one are rejected and
// quantities above the known stock are clamped to it. A line whose stock has
// dropped to zero is deselected instead.
func (s *Store) SetQuantity(ctx context.Context, uniqueID string, quantity int) error {
	if quantity < 1 {
		return errors.New(errors.CodeValidation, "quantity must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.findLocked(uniqueID)
	if line == nil {
		return errors.New(errors.CodeNotFound, "cart line not found")
	}
	if line.Stock == 0 {
		line.Selected = false
		return s.persistLocked(ctx)
	}
	if quantity > line.Stock {
		quantity = line.Stock
	}
	line.Quantity = quantity
	return s.persistLocked(ctx)
}

// SetSelected toggles a single line's checkout selection.
func (s *Store) SetSelected(ctx context.Context, uniqueID string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.findLocked(uniqueID)
	if line == nil {
		return errors.New(errors.CodeNotFound, "cart line not found")
	}
	line.Selected = selected
	return s.persistLocked(ctx)
}

// SetAllSelected toggles every line's checkout selection at once.
func (s *Store) SetAllSelected(ctx context.Context, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		s.lines[i].Selected = selected
	}
	return s.persistLocked(ctx)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	if err := s.repo.Clear(ctx, s.sessionID); err != nil {
		return err
	}
	s.notifyLocked()
	return nil
}

// Lines returns a copy of every cart line.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

// SelectedLines returns the lines that participate in pricing and checkout:
// selected, with a positive quantity.
func (s *Store) SelectedLines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selected []Line
	for _, line := range s.lines {
		if line.Selected && line.Quantity > 0 {
			selected = append(selected, line)
		}
	}
	return selected
}

// TotalSelectedQuantity sums the quantities of the selected lines.
func (s *Store) TotalSelectedQuantity() int {
	total := 0
	for _, line := range s.SelectedLines() {
		total += line.Quantity
	}
	return total
}

// TotalSelectedValue sums the effective line totals of the selected lines.
func (s *Store) TotalSelectedValue() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.SelectedLines() {
		total = total.Add(line.pricingLine().LineTotal())
	}
	return total
}

// SelectedPricingLines converts the selected lines into pricing inputs.
func (s *Store) SelectedPricingLines() []pricing.Line {
	selected := s.SelectedLines()
	lines := make([]pricing.Line, 0, len(selected))
	for _, line := range selected {
		lines = append(lines, line.pricingLine())
	}
	return lines
}

// Subscribe returns a channel receiving a snapshot after every mutation.
// Slow subscribers miss intermediate snapshots rather than block mutations.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) findLocked(uniqueID string) *Line {
	for i := range s.lines {
		if s.lines[i].UniqueID == uniqueID {
			return &s.lines[i]
		}
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.sessionID, s.lines); err != nil {
		return err
	}
	s.notifyLocked()
	return nil
}

func (s *Store) notifyLocked() {
	snap := Snapshot{Lines: copyLines(s.lines)}
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func copyLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
