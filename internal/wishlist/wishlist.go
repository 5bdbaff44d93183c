// Package wishlist keeps the signed-in user's wishlist in step with the
// server. Unlike the cart nothing is applied optimistically: membership is
// boolean and only the server's answer is trusted.
package wishlist

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"storefront/internal/backend"
	"storefront/internal/model"
	"storefront/internal/optimistic"
)

// ErrToggleInFlight is returned when Toggle is called while another toggle
// is still waiting on the server. The call is dropped, not queued.
var ErrToggleInFlight = errors.New("wishlist toggle already in flight")

// AuthCheck reports whether a session is currently established.
type AuthCheck func() bool

// CartSink receives the cart half of a move-to-cart response.
type CartSink interface {
	Cell() *optimistic.Cell[model.Cart]
	// FetchRemote loads the server cart without committing it.
	FetchRemote(ctx context.Context) (model.Cart, bool, error)
}

// Sync owns the wishlist state. A nil wishlist means not loaded.
type Sync struct {
	api           backend.Wishlist
	authenticated AuthCheck
	cart          CartSink
	logger        *slog.Logger

	cell     *optimistic.Cell[*model.Wishlist]
	toggling atomic.Bool
}

// New builds a synchronizer. cart may be nil when MoveToCart is not used.
func New(api backend.Wishlist, authenticated AuthCheck, cart CartSink, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		api:           api,
		authenticated: authenticated,
		cart:          cart,
		logger:        logger,
		cell:          optimistic.NewCell[*model.Wishlist](nil, (*model.Wishlist).Clone),
	}
}

// Wishlist returns a copy of the state, nil when not loaded.
func (s *Sync) Wishlist() *model.Wishlist {
	return s.cell.Load()
}

// Count is the number of entries; zero when not loaded.
func (s *Sync) Count() int {
	return s.cell.Load().Count()
}

// Contains reports local membership. Toggle does not trust this; it
// refetches first.
func (s *Sync) Contains(productID string) bool {
	return s.cell.Load().Contains(productID)
}

// Reset forgets the wishlist, e.g. on logout.
func (s *Sync) Reset() {
	s.cell.Reset(nil)
}

// guard rejects signed-out calls. It returns the wishlist generation the
// call's eventual adopt must still match.
func (s *Sync) guard(op string) (uint64, error) {
	if s.authenticated == nil || !s.authenticated() {
		return 0, model.NewAuthenticationRequiredError(op)
	}
	return s.cell.Generation(), nil
}

// Fetch loads the authoritative wishlist.
func (s *Sync) Fetch(ctx context.Context) (*model.Wishlist, error) {
	gen, err := s.guard("wishlist")
	if err != nil {
		return s.Wishlist(), err
	}
	w, err := s.api.GetWishlist(ctx)
	if err != nil {
		return s.Wishlist(), err
	}
	return s.adopt(gen, w), nil
}

// Add saves productID and adopts the server's wishlist.
func (s *Sync) Add(ctx context.Context, productID string) (*model.Wishlist, error) {
	gen, err := s.guard("wishlist add")
	if err != nil {
		return s.Wishlist(), err
	}
	if productID == "" {
		return s.Wishlist(), model.NewValidationError("product", "missing identifier")
	}
	w, err := s.api.AddToWishlist(ctx, productID)
	if err != nil {
		return s.Wishlist(), err
	}
	return s.adoptOrFetch(ctx, gen, w)
}

// Remove drops productID and adopts the server's wishlist.
func (s *Sync) Remove(ctx context.Context, productID string) (*model.Wishlist, error) {
	gen, err := s.guard("wishlist remove")
	if err != nil {
		return s.Wishlist(), err
	}
	w, err := s.api.RemoveFromWishlist(ctx, productID)
	if err != nil {
		return s.Wishlist(), err
	}
	return s.adoptOrFetch(ctx, gen, w)
}

// Toggle flips membership of productID and reports whether it is now saved.
// Membership is decided from a fresh fetch, never from local state. Only one
// toggle runs at a time; overlapping calls get ErrToggleInFlight.
func (s *Sync) Toggle(ctx context.Context, productID string) (added bool, err error) {
	gen, err := s.guard("wishlist toggle")
	if err != nil {
		return false, err
	}
	if !s.toggling.CompareAndSwap(false, true) {
		s.logger.Debug("dropping overlapping wishlist toggle", slog.String("product_id", productID))
		return false, ErrToggleInFlight
	}
	defer s.toggling.Store(false)

	current, err := s.api.GetWishlist(ctx)
	if err != nil {
		return false, err
	}
	s.adopt(gen, current)

	if current.Contains(productID) {
		_, err = s.Remove(ctx, productID)
		return false, err
	}
	_, err = s.Add(ctx, productID)
	return err == nil, err
}

// Clear empties the wishlist on the server and locally.
func (s *Sync) Clear(ctx context.Context) (*model.Wishlist, error) {
	gen, err := s.guard("wishlist clear")
	if err != nil {
		return s.Wishlist(), err
	}
	if err := s.api.ClearWishlist(ctx); err != nil {
		return s.Wishlist(), err
	}
	return s.adopt(gen, &model.Wishlist{Entries: []model.WishlistEntry{}}), nil
}

// MoveToCart moves productID from the wishlist into the cart on the server.
// Whichever half the response lacks is fetched, then both stores are
// committed together so no reader sees one without the other.
func (s *Sync) MoveToCart(ctx context.Context, productID string) (*model.Wishlist, model.Cart, error) {
	gen, err := s.guard("wishlist move to cart")
	if err != nil {
		return s.Wishlist(), model.Cart{}, err
	}
	if s.cart == nil {
		return s.Wishlist(), model.Cart{}, model.NewInternalError(errors.New("wishlist has no cart attached"))
	}

	cartGen := s.cart.Cell().Generation()

	w, c, err := s.api.MoveToCart(ctx, productID)
	if err != nil {
		return s.Wishlist(), s.cart.Cell().Load(), err
	}

	if w == nil {
		if w, err = s.api.GetWishlist(ctx); err != nil {
			s.logger.Warn("wishlist fetch after move failed", slog.String("error", err.Error()))
			w = s.Wishlist().Clone()
			if w != nil {
				w.Entries = without(w.Entries, productID)
			}
		}
	}
	cart := s.cart.Cell().Load()
	if c != nil {
		cart = *c
	} else {
		fresh, ok, err := s.cart.FetchRemote(ctx)
		switch {
		case err != nil:
			s.logger.Warn("cart fetch after move failed", slog.String("error", err.Error()))
		case ok:
			cart = fresh
		}
	}

	if !optimistic.StorePairIf(s.cell, gen, w, s.cart.Cell(), cartGen, cart) {
		s.logger.Debug("session state reset during move, response discarded")
	}
	w, cart = optimistic.LoadPair(s.cell, s.cart.Cell())
	return w, cart, nil
}

// adopt commits w unless the wishlist was reset since gen, e.g. by a
// sign-out while the request was in flight.
func (s *Sync) adopt(gen uint64, w *model.Wishlist) *model.Wishlist {
	if w == nil {
		w = &model.Wishlist{Entries: []model.WishlistEntry{}}
	}
	if !s.cell.StoreIf(gen, w) {
		s.logger.Debug("wishlist reset during request, response discarded")
	}
	return s.cell.Load()
}

// adoptOrFetch adopts a returned wishlist, or refetches when the server
// only acknowledged the change.
func (s *Sync) adoptOrFetch(ctx context.Context, w *model.Wishlist) (*model.Wishlist, error) {
	if w != nil {
		return s.adopt(gen, w), nil
	}
	fresh, err := s.api.GetWishlist(ctx)
	if err != nil {
		return s.Wishlist(), err
	}
	return s.adopt(fresh), nil
}

func without(entries []model.WishlistEntry, productID string) []model.WishlistEntry {
	out := make([]model.WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Product.ID() != productID {
			out = append(out, e)
		}
	}
	return out
}
