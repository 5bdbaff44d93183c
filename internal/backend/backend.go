// Package backend defines the storefront backend contract consumed by the
// session, cart and wishlist synchronizers. The production implementation
// is api.Client; tests use Mock.
package backend

import (
	"context"

	"storefront/internal/model"
)

// Auth covers the session endpoints.
type Auth interface {
	// CurrentUser returns the profile bound to the ambient credential.
	// Quiet: a 401 here never raises the unauthorized signal.
	CurrentUser(ctx context.Context) (*model.UserProfile, error)

	// Login exchanges credentials for a session. Token is set only when the
	// backend also returns a bearer fallback.
	Login(ctx context.Context, creds model.Credentials) (*model.LoginResult, error)

	// Register creates an account. The caller is not signed in.
	Register(ctx context.Context, reg model.Registration) (*model.LoginResult, error)

	// Logout ends the server session.
	Logout(ctx context.Context) error

	// SetToken installs or clears (empty string) the bearer fallback.
	SetToken(token string)
}

// Cart covers the server cart endpoints. A nil *model.Cart with a nil error
// means the backend acknowledged without returning the cart.
type Cart interface {
	GetCart(ctx context.Context) (*model.Cart, error)
	AddToCart(ctx context.Context, productID string, quantity int) (*model.Cart, error)
	UpdateCartItem(ctx context.Context, productID string, quantity int) (*model.Cart, error)
	RemoveCartItem(ctx context.Context, productID string) (*model.Cart, error)
	ClearCart(ctx context.Context) error

	// SyncCart merges guest lines into the server cart.
	SyncCart(ctx context.Context, lines []model.CartLine) (*model.Cart, error)
}

// Wishlist covers the wishlist endpoints.
type Wishlist interface {
	GetWishlist(ctx context.Context) (*model.Wishlist, error)
	AddToWishlist(ctx context.Context, productID string) (*model.Wishlist, error)
	RemoveFromWishlist(ctx context.Context, productID string) (*model.Wishlist, error)
	ClearWishlist(ctx context.Context) error

	// MoveToCart returns whichever of the two documents the backend sent.
	MoveToCart(ctx context.Context, productID string) (*model.Wishlist, *model.Cart, error)
}

// Catalog covers product reads and orders.
type Catalog interface {
	ListProducts(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*model.ProductSummary, error)
	FeaturedProducts(ctx context.Context) ([]model.ProductSummary, error)
	RelatedProducts(ctx context.Context, id string) ([]model.ProductSummary, error)
	SearchProducts(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error)

	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	CancelOrder(ctx context.Context, id, reason string) (*model.Order, error)
}

// Backend is the full storefront backend.
type Backend interface {
	Auth
	Cart
	Wishlist
	Catalog
}
