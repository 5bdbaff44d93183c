// Package cart holds the two cart stores a storefront switches between:
// GuestStore, a local-only cart for signed-out visitors, and ServerSync, the
// optimistic mirror of the signed-in user's server cart.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"storefront/internal/localstore"
	"storefront/internal/model"
)

// GuestStore is a cart persisted under the "cart" local key. It never talks
// to the network. Totals are recomputed and persisted after every mutation.
type GuestStore struct {
	store  localstore.Store
	taxBP  int
	logger *slog.Logger

	mu   sync.Mutex
	cart model.Cart
}

// NewGuestStore returns an empty guest cart. Call Load to read persisted
// lines.
func NewGuestStore(store localstore.Store, taxBasisPoints int, logger *slog.Logger) *GuestStore {
	if logger == nil {
		logger = slog.Default()
	}
	if taxBasisPoints <= 0 {
		taxBasisPoints = model.DefaultTaxBasisPoints
	}
	return &GuestStore{
		store:  store,
		taxBP:  taxBasisPoints,
		logger: logger,
		cart:   model.EmptyCart(),
	}
}

// Load reads the persisted cart. An unreadable entry is discarded and the
// cart starts empty.
func (g *GuestStore) Load(ctx context.Context) (model.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var stored model.Cart
	ok, err := localstore.GetJSON(ctx, g.store, localstore.KeyCart, &stored)
	switch {
	case err != nil:
		g.logger.Warn("discarding unreadable guest cart", slog.String("error", err.Error()))
		g.cart = model.EmptyCart()
		if derr := g.store.Delete(ctx, localstore.KeyCart); derr != nil && !errors.Is(derr, localstore.ErrNotFound) {
			return g.cart.Clone(), derr
		}
	case !ok:
		g.cart = model.EmptyCart()
	default:
		g.cart = sanitize(stored, g.taxBP)
	}
	return g.cart.Clone(), nil
}

// Cart returns a copy of the guest cart.
func (g *GuestStore) Cart() model.Cart {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cart.Clone()
}

// Lines returns a copy of the guest lines.
func (g *GuestStore) Lines() []model.CartLine {
	return g.Cart().Lines
}

// ItemCount is the total quantity in the guest cart.
func (g *GuestStore) ItemCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cart.ItemCount()
}

// AddLine increments the product's line, or appends one priced at the
// product's current price.
func (g *GuestStore) AddLine(ctx context.Context, p model.ProductSummary, quantity int) (model.Cart, error) {
	if p.ID == "" {
		return g.Cart(), model.NewValidationError("product", "missing identifier")
	}
	if quantity < 1 {
		return g.Cart(), model.NewValidationError("quantity", "must be at least 1")
	}
	return g.mutate(ctx, func(c model.Cart) model.Cart {
		return c.WithAdded(p, quantity, g.taxBP)
	})
}

// UpdateLine sets a line's quantity. A quantity below 1 changes nothing;
// removal is always explicit through RemoveLine. Unknown products are
// ignored.
func (g *GuestStore) UpdateLine(ctx context.Context, productID string, quantity int) (model.Cart, error) {
	if quantity < 1 {
		return g.Cart(), model.NewValidationError("quantity", "must be at least 1")
	}
	return g.mutate(ctx, func(c model.Cart) model.Cart {
		return c.WithQuantity(productID, quantity, g.taxBP)
	})
}

// RemoveLine drops the product's line.
func (g *GuestStore) RemoveLine(ctx context.Context, productID string) (model.Cart, error) {
	return g.mutate(ctx, func(c model.Cart) model.Cart {
		return c.Without(productID, g.taxBP)
	})
}

// Clear empties the cart and removes the persisted entry.
func (g *GuestStore) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cart = model.EmptyCart()
	if err := g.store.Delete(ctx, localstore.KeyCart); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		return err
	}
	return nil
}

// mutate applies fn and persists the result. The in-memory cart changes
// even when persisting fails; the error is returned so callers can surface it.
func (g *GuestStore) mutate(ctx context.Context, fn func(model.Cart) model.Cart) (model.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cart = fn(g.cart)
	if err := localstore.SetJSON(ctx, g.store, localstore.KeyCart, g.cart); err != nil {
		g.logger.Warn("could not persist guest cart", slog.String("error", err.Error()))
		return g.cart.Clone(), err
	}
	return g.cart.Clone(), nil
}

// sanitize drops lines a previous version may have persisted without an id
// or quantity, and recomputes totals from what is left.
func sanitize(c model.Cart, taxBP int) model.Cart {
	out := model.EmptyCart()
	for _, l := range c.Lines {
		if l.ProductID() == "" || l.Quantity < 1 {
			continue
		}
		if l.LineID == "" {
			l.LineID = model.SyntheticLineID(l.ProductID())
		}
		out.Lines = append(out.Lines, l)
	}
	out.Recalculate(taxBP)
	return out
}
