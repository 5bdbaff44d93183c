package backend

import (
	"context"
	"sync"

	"storefront/internal/model"
)

// Mock implements Backend for testing.
// Each method can be configured via function fields; calls are counted per
// method name so tests can assert that no request was made.
type Mock struct {
	CurrentUserFunc func(ctx context.Context) (*model.UserProfile, error)
	LoginFunc       func(ctx context.Context, creds model.Credentials) (*model.LoginResult, error)
	RegisterFunc    func(ctx context.Context, reg model.Registration) (*model.LoginResult, error)
	LogoutFunc      func(ctx context.Context) error

	GetCartFunc        func(ctx context.Context) (*model.Cart, error)
	AddToCartFunc      func(ctx context.Context, productID string, quantity int) (*model.Cart, error)
	UpdateCartItemFunc func(ctx context.Context, productID string, quantity int) (*model.Cart, error)
	RemoveCartItemFunc func(ctx context.Context, productID string) (*model.Cart, error)
	ClearCartFunc      func(ctx context.Context) error
	SyncCartFunc       func(ctx context.Context, lines []model.CartLine) (*model.Cart, error)

	GetWishlistFunc        func(ctx context.Context) (*model.Wishlist, error)
	AddToWishlistFunc      func(ctx context.Context, productID string) (*model.Wishlist, error)
	RemoveFromWishlistFunc func(ctx context.Context, productID string) (*model.Wishlist, error)
	ClearWishlistFunc      func(ctx context.Context) error
	MoveToCartFunc         func(ctx context.Context, productID string) (*model.Wishlist, *model.Cart, error)

	ListProductsFunc     func(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error)
	GetProductFunc       func(ctx context.Context, id string) (*model.ProductSummary, error)
	FeaturedProductsFunc func(ctx context.Context) ([]model.ProductSummary, error)
	RelatedProductsFunc  func(ctx context.Context, id string) ([]model.ProductSummary, error)
	SearchProductsFunc   func(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error)
	CreateOrderFunc      func(ctx context.Context, req model.OrderRequest) (*model.Order, error)
	ListOrdersFunc       func(ctx context.Context) ([]model.Order, error)
	GetOrderFunc         func(ctx context.Context, id string) (*model.Order, error)
	CancelOrderFunc      func(ctx context.Context, id, reason string) (*model.Order, error)

	mu    sync.Mutex
	calls map[string]int
	token string
}

func (m *Mock) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (m *Mock) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of backend calls of any kind, excluding SetToken.
func (m *Mock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Token returns the bearer token last installed with SetToken.
func (m *Mock) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// CurrentUser calls the configured CurrentUserFunc or reports no session.
func (m *Mock) CurrentUser(ctx context.Context) (*model.UserProfile, error) {
	m.record("CurrentUser")
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx)
	}
	return nil, model.NewUnauthorizedError("not signed in")
}

// Login calls the configured LoginFunc or rejects the credentials.
func (m *Mock) Login(ctx context.Context, creds model.Credentials) (*model.LoginResult, error) {
	m.record("Login")
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}
	return nil, model.NewUnauthorizedError("invalid credentials")
}

// Register calls the configured RegisterFunc or returns an error.
func (m *Mock) Register(ctx context.Context, reg model.Registration) (*model.LoginResult, error) {
	m.record("Register")
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, reg)
	}
	return nil, model.NewInternalError(nil)
}

// Logout calls the configured LogoutFunc or succeeds.
func (m *Mock) Logout(ctx context.Context) error {
	m.record("Logout")
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}

// SetToken records the token.
func (m *Mock) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// GetCart calls the configured GetCartFunc or returns an empty cart.
func (m *Mock) GetCart(ctx context.Context) (*model.Cart, error) {
	m.record("GetCart")
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx)
	}
	c := model.EmptyCart()
	return &c, nil
}

// AddToCart calls the configured AddToCartFunc or returns an error.
func (m *Mock) AddToCart(ctx context.Context, productID string, quantity int) (*model.Cart, error) {
	m.record("AddToCart")
	if m.AddToCartFunc != nil {
		return m.AddToCartFunc(ctx, productID, quantity)
	}
	return nil, model.NewInternalError(nil)
}

// UpdateCartItem calls the configured UpdateCartItemFunc or returns an error.
func (m *Mock) UpdateCartItem(ctx context.Context, productID string, quantity int) (*model.Cart, error) {
	m.record("UpdateCartItem")
	if m.UpdateCartItemFunc != nil {
		return m.UpdateCartItemFunc(ctx, productID, quantity)
	}
	return nil, model.NewNotFoundError("cart item")
}

// RemoveCartItem calls the configured RemoveCartItemFunc or returns an error.
func (m *Mock) RemoveCartItem(ctx context.Context, productID string) (*model.Cart, error) {
	m.record("RemoveCartItem")
	if m.RemoveCartItemFunc != nil {
		return m.RemoveCartItemFunc(ctx, productID)
	}
	return nil, model.NewNotFoundError("cart item")
}

// ClearCart calls the configured ClearCartFunc or succeeds.
func (m *Mock) ClearCart(ctx context.Context) error {
	m.record("ClearCart")
	if m.ClearCartFunc != nil {
		return m.ClearCartFunc(ctx)
	}
	return nil
}

// SyncCart calls the configured SyncCartFunc or returns an error.
func (m *Mock) SyncCart(ctx context.Context, lines []model.CartLine) (*model.Cart, error) {
	m.record("SyncCart")
	if m.SyncCartFunc != nil {
		return m.SyncCartFunc(ctx, lines)
	}
	return nil, model.NewInternalError(nil)
}

// GetWishlist calls the configured GetWishlistFunc or returns an empty wishlist.
func (m *Mock) GetWishlist(ctx context.Context) (*model.Wishlist, error) {
	m.record("GetWishlist")
	if m.GetWishlistFunc != nil {
		return m.GetWishlistFunc(ctx)
	}
	return &model.Wishlist{Entries: []model.WishlistEntry{}}, nil
}

// AddToWishlist calls the configured AddToWishlistFunc or returns an error.
func (m *Mock) AddToWishlist(ctx context.Context, productID string) (*model.Wishlist, error) {
	m.record("AddToWishlist")
	if m.AddToWishlistFunc != nil {
		return m.AddToWishlistFunc(ctx, productID)
	}
	return nil, model.NewInternalError(nil)
}

// RemoveFromWishlist calls the configured RemoveFromWishlistFunc or returns an error.
func (m *Mock) RemoveFromWishlist(ctx context.Context, productID string) (*model.Wishlist, error) {
	m.record("RemoveFromWishlist")
	if m.RemoveFromWishlistFunc != nil {
		return m.RemoveFromWishlistFunc(ctx, productID)
	}
	return nil, model.NewInternalError(nil)
}

// ClearWishlist calls the configured ClearWishlistFunc or succeeds.
func (m *Mock) ClearWishlist(ctx context.Context) error {
	m.record("ClearWishlist")
	if m.ClearWishlistFunc != nil {
		return m.ClearWishlistFunc(ctx)
	}
	return nil
}

// MoveToCart calls the configured MoveToCartFunc or returns an error.
func (m *Mock) MoveToCart(ctx context.Context, productID string) (*model.Wishlist, *model.Cart, error) {
	m.record("MoveToCart")
	if m.MoveToCartFunc != nil {
		return m.MoveToCartFunc(ctx, productID)
	}
	return nil, nil, model.NewInternalError(nil)
}

// ListProducts calls the configured ListProductsFunc or returns an empty page.
func (m *Mock) ListProducts(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
	m.record("ListProducts")
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx, q)
	}
	return &model.ProductPage{Products: []model.ProductSummary{}, Page: 1}, nil
}

// GetProduct calls the configured GetProductFunc or returns not found.
func (m *Mock) GetProduct(ctx context.Context, id string) (*model.ProductSummary, error) {
	m.record("GetProduct")
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("product")
}

// FeaturedProducts calls the configured FeaturedProductsFunc or returns none.
func (m *Mock) FeaturedProducts(ctx context.Context) ([]model.ProductSummary, error) {
	m.record("FeaturedProducts")
	if m.FeaturedProductsFunc != nil {
		return m.FeaturedProductsFunc(ctx)
	}
	return []model.ProductSummary{}, nil
}

// RelatedProducts calls the configured RelatedProductsFunc or returns none.
func (m *Mock) RelatedProducts(ctx context.Context, id string) ([]model.ProductSummary, error) {
	m.record("RelatedProducts")
	if m.RelatedProductsFunc != nil {
		return m.RelatedProductsFunc(ctx, id)
	}
	return []model.ProductSummary{}, nil
}

// SearchProducts calls the configured SearchProductsFunc or returns an empty page.
func (m *Mock) SearchProducts(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
	m.record("SearchProducts")
	if m.SearchProductsFunc != nil {
		return m.SearchProductsFunc(ctx, q)
	}
	return &model.ProductPage{Products: []model.ProductSummary{}, Page: 1}, nil
}

// CreateOrder calls the configured CreateOrderFunc or returns an error.
func (m *Mock) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	m.record("CreateOrder")
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// ListOrders calls the configured ListOrdersFunc or returns none.
func (m *Mock) ListOrders(ctx context.Context) ([]model.Order, error) {
	m.record("ListOrders")
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx)
	}
	return []model.Order{}, nil
}

// GetOrder calls the configured GetOrderFunc or returns not found.
func (m *Mock) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	m.record("GetOrder")
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("order")
}

// CancelOrder calls the configured CancelOrderFunc or returns not found.
func (m *Mock) CancelOrder(ctx context.Context, id, reason string) (*model.Order, error) {
	m.record("CancelOrder")
	if m.CancelOrderFunc != nil {
		return m.CancelOrderFunc(ctx, id, reason)
	}
	return nil, model.NewNotFoundError("order")
}

// Verify Mock implements Backend interface at compile time.
var _ Backend = (*Mock)(nil)
