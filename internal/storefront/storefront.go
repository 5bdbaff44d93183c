// Package storefront wires the session reconciler, the two carts and the
// wishlist into one object with a defined lifecycle. It decides which cart
// is live, merges the guest cart on login, and drops server-side state when
// the session ends.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/localstore"
	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/session"
	"storefront/internal/wishlist"
)

// Options configures a Storefront.
type Options struct {
	// Backend is required. When it also has SetUnauthorizedHook (api.Client
	// does) the hook is routed to the session reconciler.
	Backend backend.Backend

	// Store persists profile, token and guest cart. Defaults to memory.
	Store localstore.Store

	// TaxBasisPoints is the local tax rate. Zero means 8%.
	TaxBasisPoints int

	Logger *slog.Logger
}

type unauthorizedHooker interface {
	SetUnauthorizedHook(fn func())
}

// Storefront is the client state layer for one visitor.
type Storefront struct {
	api    backend.Backend
	store  localstore.Store
	logger *slog.Logger

	session  *session.Reconciler
	guest    *cart.GuestStore
	server   *cart.ServerSync
	wishlist *wishlist.Sync

	unsubscribe func()
}

// New builds and wires the stores. Call Init before use.
func New(opts Options) (*Storefront, error) {
	if opts.Backend == nil {
		return nil, errors.New("storefront: backend is required")
	}
	if opts.Store == nil {
		opts.Store = localstore.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TaxBasisPoints <= 0 {
		opts.TaxBasisPoints = model.DefaultTaxBasisPoints
	}

	sf := &Storefront{
		api:    opts.Backend,
		store:  opts.Store,
		logger: opts.Logger,
	}
	sf.session = session.New(opts.Backend, opts.Store, opts.Logger.With(slog.String("component", "session")))
	sf.guest = cart.NewGuestStore(opts.Store, opts.TaxBasisPoints, opts.Logger.With(slog.String("component", "guest_cart")))
	sf.server = cart.NewServerSync(opts.Backend, opts.TaxBasisPoints, opts.Logger.With(slog.String("component", "server_cart")))
	sf.wishlist = wishlist.New(opts.Backend, sf.authenticated, sf.server, opts.Logger.With(slog.String("component", "wishlist")))

	if h, ok := opts.Backend.(unauthorizedHooker); ok {
		h.SetUnauthorizedHook(sf.session.HandleUnauthorized)
	}
	sf.unsubscribe = sf.session.Subscribe(sf.onSessionChange)

	return sf, nil
}

// Close detaches the session observer and the unauthorized hook.
func (sf *Storefront) Close() {
	sf.unsubscribe()
	if h, ok := sf.api.(unauthorizedHooker); ok {
		h.SetUnauthorizedHook(nil)
	}
}

func (sf *Storefront) authenticated() bool {
	return sf.session.Session().Authenticated
}

// onSessionChange drops server-mirrored state when the session ends, by
// logout or by a 401.
func (sf *Storefront) onSessionChange(prev, next model.Session) {
	if prev.Authenticated && !next.Authenticated {
		sf.server.Reset()
		sf.wishlist.Reset()
		sf.forgetCookies(context.Background())
		sf.logger.Debug("session ended, server state dropped")
	}
}

// Init restores local state and resolves the session. An already-signed-in
// visitor gets the server cart and wishlist loaded; the guest cart is not
// merged here, only on an explicit login.
func (sf *Storefront) Init(ctx context.Context) model.Session {
	sf.restoreCookies(ctx)
	sf.session.Restore(ctx)
	if _, err := sf.guest.Load(ctx); err != nil {
		sf.logger.Warn("loading guest cart failed", slog.String("error", err.Error()))
	}

	s := sf.session.Init(ctx)
	if s.Authenticated {
		sf.loadServerState(ctx)
	}
	return s
}

func (sf *Storefront) loadServerState(ctx context.Context) {
	if _, err := sf.server.Fetch(ctx); err != nil {
		sf.logger.Warn("loading server cart failed", slog.String("error", err.Error()))
	}
	if _, err := sf.wishlist.Fetch(ctx); err != nil {
		sf.logger.Warn("loading wishlist failed", slog.String("error", err.Error()))
	}
}

// Session returns the current session.
func (sf *Storefront) Session() model.Session {
	return sf.session.Session()
}

// Sessions exposes the reconciler for observers and the unauthorized signal.
func (sf *Storefront) Sessions() *session.Reconciler {
	return sf.session
}

// Login signs in. On the false→true transition the guest cart is merged
// into the server cart exactly once and the wishlist is loaded; concurrent
// logins race for the transition and only the winner merges. A merge
// failure is returned alongside the signed-in session; the guest cart is
// kept for a later retry through MergeGuestCart.
func (sf *Storefront) Login(ctx context.Context, creds model.Credentials) (model.Session, error) {
	s, started, err := sf.session.SignIn(ctx, creds)
	if err != nil {
		return s, err
	}
	sf.saveCookies(ctx)
	if !started {
		return s, nil
	}

	_, mergeErr := sf.server.MergeGuestCart(ctx, sf.guest)
	if _, err := sf.wishlist.Fetch(ctx); err != nil {
		sf.logger.Warn("loading wishlist after login failed", slog.String("error", err.Error()))
	}
	if mergeErr != nil {
		return s, fmt.Errorf("merging guest cart: %w", mergeErr)
	}
	return s, nil
}

// MergeGuestCart retries a merge that failed during Login.
func (sf *Storefront) MergeGuestCart(ctx context.Context) (model.Cart, error) {
	if !sf.authenticated() {
		return sf.guest.Cart(), model.NewAuthenticationRequiredError("cart merge")
	}
	return sf.server.MergeGuestCart(ctx, sf.guest)
}

// Register creates an account without signing in.
func (sf *Storefront) Register(ctx context.Context, reg model.Registration) (*model.UserProfile, error) {
	return sf.session.Register(ctx, reg)
}

// Logout ends the session and clears local state.
func (sf *Storefront) Logout(ctx context.Context) model.Session {
	s := sf.session.Logout(ctx)
	if err := sf.guest.Clear(ctx); err != nil {
		sf.logger.Warn("clearing guest cart failed", slog.String("error", err.Error()))
	}
	return s
}

// UpdateProfile edits the local profile.
func (sf *Storefront) UpdateProfile(ctx context.Context, patch model.UserProfile) (model.Session, error) {
	return sf.session.UpdateProfile(ctx, patch)
}

// Cart is the live cart: the server cart when signed in, else the guest cart.
func (sf *Storefront) Cart() model.Cart {
	if sf.authenticated() {
		return sf.server.Cart()
	}
	return sf.guest.Cart()
}

// CartCount is the item count of the live cart.
func (sf *Storefront) CartCount() int {
	if sf.authenticated() {
		return sf.server.ItemCount()
	}
	return sf.guest.ItemCount()
}

// FetchCart refreshes the live cart. The guest cart is re-read from storage.
func (sf *Storefront) FetchCart(ctx context.Context) (model.Cart, error) {
	if sf.authenticated() {
		return sf.server.Fetch(ctx)
	}
	return sf.guest.Load(ctx)
}

// AddToCart adds quantity of p to the live cart.
func (sf *Storefront) AddToCart(ctx context.Context, p model.ProductSummary, quantity int) (model.Cart, error) {
	if sf.authenticated() {
		return sf.server.AddLine(ctx, p, quantity)
	}
	return sf.guest.AddLine(ctx, p, quantity)
}

// AddToCartByID looks the product up first so the optimistic line can be
// priced.
func (sf *Storefront) AddToCartByID(ctx context.Context, productID string, quantity int) (model.Cart, error) {
	if quantity < 1 {
		return sf.Cart(), model.NewValidationError("quantity", "must be at least 1")
	}
	p, err := sf.api.GetProduct(ctx, productID)
	if err != nil {
		return sf.Cart(), err
	}
	return sf.AddToCart(ctx, *p, quantity)
}

// UpdateCartLine sets one line's quantity in the live cart.
func (sf *Storefront) UpdateCartLine(ctx context.Context, productID string, quantity int) (model.Cart, error) {
	if sf.authenticated() {
		return sf.server.UpdateLine(ctx, productID, quantity)
	}
	return sf.guest.UpdateLine(ctx, productID, quantity)
}

// RemoveCartLine drops one line from the live cart.
func (sf *Storefront) RemoveCartLine(ctx context.Context, productID string) (model.Cart, error) {
	if sf.authenticated() {
		return sf.server.RemoveLine(ctx, productID)
	}
	return sf.guest.RemoveLine(ctx, productID)
}

// ClearCart empties the live cart.
func (sf *Storefront) ClearCart(ctx context.Context) (model.Cart, error) {
	if sf.authenticated() {
		return sf.server.Clear(ctx)
	}
	err := sf.guest.Clear(ctx)
	return sf.guest.Cart(), err
}

// ReplaceCart makes the server cart match desired. Guests get the same
// effect applied locally.
func (sf *Storefront) ReplaceCart(ctx context.Context, desired []reconcile.DesiredItem) (model.Cart, error) {
	if sf.authenticated() {
		return sf.server.Replace(ctx, desired)
	}
	return sf.replaceGuest(ctx, desired)
}

func (sf *Storefront) replaceGuest(ctx context.Context, desired []reconcile.DesiredItem) (model.Cart, error) {
	current := sf.guest.Cart()
	diff := reconcile.DiffLineItems(current.Lines, desired)

	for _, item := range diff.ToRemove {
		if _, err := sf.guest.RemoveLine(ctx, item.ProductID); err != nil {
			return sf.guest.Cart(), err
		}
	}
	for _, item := range diff.ToUpdate {
		if _, err := sf.guest.UpdateLine(ctx, item.ProductID, item.NewQuantity); err != nil {
			return sf.guest.Cart(), err
		}
	}
	for _, item := range diff.ToAdd {
		p, err := sf.api.GetProduct(ctx, item.ProductID)
		if err != nil {
			return sf.guest.Cart(), fmt.Errorf("looking up %s: %w", item.ProductID, err)
		}
		if _, err := sf.guest.AddLine(ctx, *p, item.Quantity); err != nil {
			return sf.guest.Cart(), err
		}
	}
	return sf.guest.Cart(), nil
}

// Wishlist returns the loaded wishlist, nil when not loaded.
func (sf *Storefront) Wishlist() *model.Wishlist {
	return sf.wishlist.Wishlist()
}

// WishlistCount is the number of saved products.
func (sf *Storefront) WishlistCount() int {
	return sf.wishlist.Count()
}

// InWishlist reports local membership.
func (sf *Storefront) InWishlist(productID string) bool {
	return sf.wishlist.Contains(productID)
}

func (sf *Storefront) FetchWishlist(ctx context.Context) (*model.Wishlist, error) {
	return sf.wishlist.Fetch(ctx)
}

func (sf *Storefront) AddToWishlist(ctx context.Context, productID string) (*model.Wishlist, error) {
	return sf.wishlist.Add(ctx, productID)
}

func (sf *Storefront) RemoveFromWishlist(ctx context.Context, productID string) (*model.Wishlist, error) {
	return sf.wishlist.Remove(ctx, productID)
}

func (sf *Storefront) ToggleWishlist(ctx context.Context, productID string) (bool, error) {
	return sf.wishlist.Toggle(ctx, productID)
}

func (sf *Storefront) ClearWishlist(ctx context.Context) (*model.Wishlist, error) {
	return sf.wishlist.Clear(ctx)
}

func (sf *Storefront) MoveToCart(ctx context.Context, productID string) (*model.Wishlist, model.Cart, error) {
	return sf.wishlist.MoveToCart(ctx, productID)
}

// Checkout places an order from the server cart and refreshes the cart,
// which the backend empties on success.
func (sf *Storefront) Checkout(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	if !sf.authenticated() {
		return nil, model.NewAuthenticationRequiredError("checkout")
	}
	if sf.server.Cart().IsEmpty() {
		c, err := sf.server.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if c.IsEmpty() {
			return nil, model.NewValidationError("cart", "is empty")
		}
	}

	order, err := sf.api.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	sf.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("total", order.Total.String()))

	if _, err := sf.server.Fetch(ctx); err != nil {
		sf.logger.Warn("cart refresh after checkout failed", slog.String("error", err.Error()))
	}
	return order, nil
}

// Orders lists the signed-in user's orders.
func (sf *Storefront) Orders(ctx context.Context) ([]model.Order, error) {
	if !sf.authenticated() {
		return nil, model.NewAuthenticationRequiredError("orders")
	}
	return sf.api.ListOrders(ctx)
}

// Order returns one order.
func (sf *Storefront) Order(ctx context.Context, id string) (*model.Order, error) {
	if !sf.authenticated() {
		return nil, model.NewAuthenticationRequiredError("orders")
	}
	return sf.api.GetOrder(ctx, id)
}

// CancelOrder asks the backend to cancel an order.
func (sf *Storefront) CancelOrder(ctx context.Context, id, reason string) (*model.Order, error) {
	if !sf.authenticated() {
		return nil, model.NewAuthenticationRequiredError("order cancel")
	}
	return sf.api.CancelOrder(ctx, id, reason)
}

func (sf *Storefront) Products(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
	return sf.api.ListProducts(ctx, q)
}

func (sf *Storefront) SearchProducts(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
	return sf.api.SearchProducts(ctx, q)
}

func (sf *Storefront) Product(ctx context.Context, id string) (*model.ProductSummary, error) {
	return sf.api.GetProduct(ctx, id)
}

func (sf *Storefront) FeaturedProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return sf.api.FeaturedProducts(ctx)
}

func (sf *Storefront) RelatedProducts(ctx context.Context, id string) ([]model.ProductSummary, error) {
	return sf.api.RelatedProducts(ctx, id)
}
