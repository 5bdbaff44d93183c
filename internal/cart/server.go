package cart

import (
	"context"
	"fmt"
	"log/slog"

	"storefront/internal/backend"
	"storefront/internal/model"
	"storefront/internal/optimistic"
	"storefront/internal/reconcile"
)

// ServerSync mirrors the signed-in user's server cart. Every mutation is
// applied locally first and then confirmed, or rolled back to a fresh fetch.
type ServerSync struct {
	api    backend.Cart
	taxBP  int
	logger *slog.Logger
	cell   *optimistic.Cell[model.Cart]
}

// NewServerSync returns a synchronizer holding an empty cart.
func NewServerSync(api backend.Cart, taxBasisPoints int, logger *slog.Logger) *ServerSync {
	if logger == nil {
		logger = slog.Default()
	}
	if taxBasisPoints <= 0 {
		taxBasisPoints = model.DefaultTaxBasisPoints
	}
	return &ServerSync{
		api:    api,
		taxBP:  taxBasisPoints,
		logger: logger,
		cell:   optimistic.NewCell(model.EmptyCart(), model.Cart.Clone),
	}
}

// Cell exposes the underlying state so a paired commit (wishlist move) can
// update it together with another store.
func (s *ServerSync) Cell() *optimistic.Cell[model.Cart] {
	return s.cell
}

// Cart returns a copy of the current cart.
func (s *ServerSync) Cart() model.Cart {
	return s.cell.Load()
}

// ItemCount is the total quantity in the cart.
func (s *ServerSync) ItemCount() int {
	return s.cell.Load().ItemCount()
}

// Adopt replaces the cart with an authoritative value obtained elsewhere.
func (s *ServerSync) Adopt(c model.Cart) {
	s.cell.Store(c)
}

// Reset drops local state, e.g. on logout.
func (s *ServerSync) Reset() {
	s.cell.Reset(model.EmptyCart())
}

// Fetch loads the authoritative cart. A response without a cart body leaves
// the current state alone.
func (s *ServerSync) Fetch(ctx context.Context) (model.Cart, error) {
	_, gen := s.cell.Snapshot()
	c, ok, err := s.fetch(ctx)
	if err != nil {
		return s.cell.Load(), err
	}
	if ok {
		s.cell.StoreIf(gen, c)
	}
	return s.cell.Load(), nil
}

// FetchRemote loads the server cart without committing it. ok is false when
// the response carried no cart.
func (s *ServerSync) FetchRemote(ctx context.Context) (model.Cart, bool, error) {
	return s.fetch(ctx)
}

func (s *ServerSync) fetch(ctx context.Context) (model.Cart, bool, error) {
	c, err := s.api.GetCart(ctx)
	return result(c, err)
}

// result adapts a backend cart response to an optimistic.Fetch result.
func result(c *model.Cart, err error) (model.Cart, bool, error) {
	if err != nil {
		return model.Cart{}, false, err
	}
	if c == nil {
		return model.Cart{}, false, nil
	}
	return *c, true, nil
}

// AddLine adds quantity of p. A response that only acknowledges the add is
// followed by a refetch; if that has nothing to offer the optimistic line
// stays.
func (s *ServerSync) AddLine(ctx context.Context, p model.ProductSummary, quantity int) (model.Cart, error) {
	if p.ID == "" {
		return s.Cart(), model.NewValidationError("product", "missing identifier")
	}
	if quantity < 1 {
		return s.Cart(), model.NewValidationError("quantity", "must be at least 1")
	}
	return optimistic.Run(ctx, s.cell, optimistic.Mutation[model.Cart]{
		Name: "cart.add",
		Apply: func(c model.Cart) model.Cart {
			return c.WithAdded(p, quantity, s.taxBP)
		},
		Remote: func(ctx context.Context) (model.Cart, bool, error) {
			return result(s.api.AddToCart(ctx, p.ID, quantity))
		},
		Refetch: s.fetch,
	}, s.logger)
}

// UpdateLine sets the quantity of one line. Quantities below 1 are rejected
// without a request; use RemoveLine.
func (s *ServerSync) UpdateLine(ctx context.Context, productID string, quantity int) (model.Cart, error) {
	if quantity < 1 {
		return s.Cart(), model.NewValidationError("quantity", "must be at least 1")
	}
	return optimistic.Run(ctx, s.cell, optimistic.Mutation[model.Cart]{
		Name: "cart.update",
		Apply: func(c model.Cart) model.Cart {
			return c.WithQuantity(productID, quantity, s.taxBP)
		},
		Remote: func(ctx context.Context) (model.Cart, bool, error) {
			return result(s.api.UpdateCartItem(ctx, productID, quantity))
		},
		Refetch: s.fetch,
	}, s.logger)
}

// RemoveLine drops one line.
func (s *ServerSync) RemoveLine(ctx context.Context, productID string) (model.Cart, error) {
	return optimistic.Run(ctx, s.cell, optimistic.Mutation[model.Cart]{
		Name: "cart.remove",
		Apply: func(c model.Cart) model.Cart {
			return c.Without(productID, s.taxBP)
		},
		Remote: func(ctx context.Context) (model.Cart, bool, error) {
			return result(s.api.RemoveCartItem(ctx, productID))
		},
		Refetch: s.fetch,
	}, s.logger)
}

// Clear empties the cart. On failure the cart settles on whatever the
// rollback fetch returns.
func (s *ServerSync) Clear(ctx context.Context) (model.Cart, error) {
	return optimistic.Run(ctx, s.cell, optimistic.Mutation[model.Cart]{
		Name: "cart.clear",
		Apply: func(model.Cart) model.Cart {
			return model.EmptyCart()
		},
		Remote: func(ctx context.Context) (model.Cart, bool, error) {
			if err := s.api.ClearCart(ctx); err != nil {
				return model.Cart{}, false, err
			}
			return model.EmptyCart(), true, nil
		},
		Refetch: s.fetch,
	}, s.logger)
}

// MergeGuestCart pushes the guest lines to the server and adopts the merged
// cart, then clears the guest store. An empty guest cart is a plain fetch.
// On sync failure the guest cart is kept so a later attempt can retry.
func (s *ServerSync) MergeGuestCart(ctx context.Context, guest *GuestStore) (model.Cart, error) {
	lines := guest.Lines()
	if len(lines) == 0 {
		return s.Fetch(ctx)
	}

	_, gen := s.cell.Snapshot()
	merged, err := s.api.SyncCart(ctx, lines)
	if err != nil {
		s.logger.Warn("guest cart merge failed, keeping guest cart",
			slog.Int("lines", len(lines)),
			slog.String("error", err.Error()))
		return s.Cart(), err
	}
	if merged != nil {
		s.cell.StoreIf(gen, *merged)
	} else if _, err := s.Fetch(ctx); err != nil {
		s.logger.Warn("fetch after guest cart merge failed", slog.String("error", err.Error()))
	}

	if err := guest.Clear(ctx); err != nil {
		s.logger.Warn("could not clear guest cart after merge", slog.String("error", err.Error()))
	}
	s.logger.Info("guest cart merged", slog.Int("lines", len(lines)))
	return s.Cart(), nil
}

// Replace makes the server cart match desired using the minimal set of
// single-line calls: removes, then updates, then adds. The authoritative
// cart is fetched afterwards whatever happened; the first failing call
// stops the sequence and its error is returned.
func (s *ServerSync) Replace(ctx context.Context, desired []reconcile.DesiredItem) (model.Cart, error) {
	current, err := s.Fetch(ctx)
	if err != nil {
		return current, err
	}

	diff := reconcile.DiffLineItems(current.Lines, desired)
	if diff.IsEmpty() {
		return current, nil
	}
	s.logger.Debug("replacing cart",
		slog.Int("remove", len(diff.ToRemove)),
		slog.Int("update", len(diff.ToUpdate)),
		slog.Int("add", len(diff.ToAdd)))

	applyErr := s.apply(ctx, diff)

	c, err := s.Fetch(ctx)
	if applyErr != nil {
		return c, applyErr
	}
	return c, err
}

func (s *ServerSync) apply(ctx context.Context, diff *reconcile.LineItemDiff) error {
	for _, item := range diff.ToRemove {
		if _, err := s.api.RemoveCartItem(ctx, item.ProductID); err != nil {
			return fmt.Errorf("removing %s: %w", item.ProductID, err)
		}
	}
	for _, item := range diff.ToUpdate {
		if _, err := s.api.UpdateCartItem(ctx, item.ProductID, item.NewQuantity); err != nil {
			return fmt.Errorf("updating %s: %w", item.ProductID, err)
		}
	}
	for _, item := range diff.ToAdd {
		if _, err := s.api.AddToCart(ctx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("adding %s: %w", item.ProductID, err)
		}
	}
	return nil
}
