// MCP transport handler using the official MCP Go SDK.
// Exposes the storefront session, cart, wishlist and orders as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/wishlist"
)

// === MCP Tool Input Types ===

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// LoginInput is the input schema for the login tool.
type LoginInput struct {
	Email    string `json:"email" jsonschema:"account email"`
	Password string `json:"password" jsonschema:"account password"`
}

// ProductInput names one product.
type ProductInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID"`
}

// AddToCartInput is the input schema for add_to_cart.
type AddToCartInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"quantity to add, defaults to 1"`
}

// UpdateCartLineInput is the input schema for update_cart_line.
type UpdateCartLineInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID of the line"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity, at least 1"`
}

// ReplaceCartInput is the input schema for replace_cart.
// Uses full PUT semantics: lines not listed are removed.
type ReplaceCartInput struct {
	Items []LineItemInput `json:"items" jsonschema:"complete desired cart contents"`
}

// LineItemInput is one desired cart line.
type LineItemInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID"`
	Quantity  int    `json:"quantity" jsonschema:"quantity"`
}

// SearchProductsInput is the input schema for search_products.
type SearchProductsInput struct {
	Query    string `json:"query,omitempty" jsonschema:"free text search"`
	Category string `json:"category,omitempty" jsonschema:"category filter"`
	Page     int    `json:"page,omitempty" jsonschema:"1-based page number"`
	Limit    int    `json:"limit,omitempty" jsonschema:"page size"`
}

// CheckoutInput is the input schema for the checkout tool.
type CheckoutInput struct {
	FullName      string `json:"full_name" jsonschema:"recipient name"`
	Street        string `json:"street" jsonschema:"street address"`
	City          string `json:"city" jsonschema:"city"`
	State         string `json:"state,omitempty" jsonschema:"state or region"`
	PostalCode    string `json:"postal_code" jsonschema:"postal code"`
	Country       string `json:"country" jsonschema:"country"`
	Phone         string `json:"phone,omitempty" jsonschema:"contact phone"`
	PaymentMethod string `json:"payment_method" jsonschema:"payment method identifier"`
	Notes         string `json:"notes,omitempty" jsonschema:"order notes"`
}

// OrderInput names one order.
type OrderInput struct {
	ID     string `json:"id" jsonschema:"order ID"`
	Reason string `json:"reason,omitempty" jsonschema:"cancellation reason"`
}

// === MCP Tool Output Types ===
// Outputs use plain strings for money and product references so the
// inferred output schemas stay simple.

// SessionView is the session as seen by an agent.
type SessionView struct {
	Authenticated bool   `json:"authenticated"`
	Initializing  bool   `json:"initializing"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// CartLineView is one cart line.
type CartLineView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// CartView is the live cart.
type CartView struct {
	Lines     []CartLineView `json:"lines"`
	ItemCount int            `json:"item_count"`
	Subtotal  string         `json:"subtotal"`
	Tax       string         `json:"tax"`
	Total     string         `json:"total"`
}

// WishlistView lists saved product IDs.
type WishlistView struct {
	ProductIDs []string `json:"product_ids"`
	Added      *bool    `json:"added,omitempty"`
}

// MoveToCartView is the result of move_to_cart.
type MoveToCartView struct {
	Wishlist WishlistView `json:"wishlist"`
	Cart     CartView     `json:"cart"`
}

// ProductView is one catalog product.
type ProductView struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

// ProductListView is a page of products.
type ProductListView struct {
	Products []ProductView `json:"products"`
	Page     int           `json:"page,omitempty"`
	Pages    int           `json:"pages,omitempty"`
	Total    int           `json:"total,omitempty"`
}

// OrderView is one order.
type OrderView struct {
	ID     string         `json:"id"`
	Number string         `json:"number,omitempty"`
	Status string         `json:"status"`
	Lines  []CartLineView `json:"lines"`
	Total  string         `json:"total"`
}

// OrderListView wraps a list of orders.
type OrderListView struct {
	Orders []OrderView `json:"orders"`
}

// NewMCPServer creates an MCP server with storefront tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront session - browse products, manage the cart and wishlist, and place orders. " +
				"The cart is kept locally until login, then merged into the account cart.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Get the current session state.",
	}, h.mcpGetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "login",
		Description: "Sign in. Any guest cart is merged into the account cart.",
	}, h.mcpLogin)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "logout",
		Description: "Sign out and clear local session state.",
	}, h.mcpLogout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the live cart.",
	}, gated(h, h.mcpGetCart))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product to the cart.",
	}, gated(h, h.mcpAddToCart))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_cart_line",
		Description: "Set the quantity of a cart line.",
	}, gated(h, h.mcpUpdateCartLine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a product from the cart.",
	}, gated(h, h.mcpRemoveFromCart))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "replace_cart",
		Description: "Make the cart match the given items exactly. Lines not listed are removed.",
	}, gated(h, h.mcpReplaceCart))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_wishlist",
		Description: "Get the wishlist. Requires a signed-in session.",
	}, gated(h, h.mcpGetWishlist))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "toggle_wishlist",
		Description: "Add the product to the wishlist if absent, remove it if present.",
	}, gated(h, h.mcpToggleWishlist))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_to_cart",
		Description: "Move a wishlist product into the cart.",
	}, gated(h, h.mcpMoveToCart))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_products",
		Description: "List or search catalog products.",
	}, gated(h, h.mcpSearchProducts))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "checkout",
		Description: "Place an order from the account cart.",
	}, gated(h, h.mcpCheckout))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_orders",
		Description: "List the signed-in user's orders.",
	}, gated(h, h.mcpListOrders))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_order",
		Description: "Cancel an order that has not shipped.",
	}, gated(h, h.mcpCancelOrder))

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetSession(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *SessionView, error) {
	return nil, sessionView(h.sf.Session()), nil
}

func (h *Handler) mcpLogin(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input LoginInput,
) (*mcp.CallToolResult, *SessionView, error) {
	s, err := h.sf.Login(ctx, model.Credentials{Email: input.Email, Password: input.Password})
	if err != nil && !s.Authenticated {
		return nil, nil, h.mcpError(err)
	}
	view := sessionView(s)
	if err != nil {
		view.Warning = err.Error()
	}
	return nil, view, nil
}

func (h *Handler) mcpLogout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *SessionView, error) {
	return nil, sessionView(h.sf.Logout(ctx)), nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *CartView, error) {
	c, err := h.sf.FetchCart(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, cartView(c), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}

	c, err := h.sf.AddToCartByID(ctx, input.ProductID, qty)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, cartView(c), nil
}

func (h *Handler) mcpUpdateCartLine(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateCartLineInput,
) (*mcp.CallToolResult, *CartView, error) {
	c, err := h.sf.UpdateCartLine(ctx, input.ProductID, input.Quantity)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, cartView(c), nil
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *CartView, error) {
	c, err := h.sf.RemoveCartLine(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, cartView(c), nil
}

func (h *Handler) mcpReplaceCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ReplaceCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	desired := make([]reconcile.DesiredItem, len(input.Items))
	for i, li := range input.Items {
		desired[i] = reconcile.DesiredItem{ProductID: li.ProductID, Quantity: li.Quantity}
	}

	c, err := h.sf.ReplaceCart(ctx, desired)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, cartView(c), nil
}

func (h *Handler) mcpGetWishlist(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *WishlistView, error) {
	wl, err := h.sf.FetchWishlist(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, wishlistView(wl), nil
}

func (h *Handler) mcpToggleWishlist(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *WishlistView, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	added, err := h.sf.ToggleWishlist(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	view := wishlistView(h.sf.Wishlist())
	view.Added = &added
	return nil, view, nil
}

func (h *Handler) mcpMoveToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *MoveToCartView, error) {
	wl, c, err := h.sf.MoveToCart(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &MoveToCartView{Wishlist: *wishlistView(wl), Cart: *cartView(c)}, nil
}

func (h *Handler) mcpSearchProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchProductsInput,
) (*mcp.CallToolResult, *ProductListView, error) {
	q := model.ProductQuery{
		Page:     input.Page,
		Limit:    input.Limit,
		Category: input.Category,
		Search:   input.Query,
	}

	var (
		page *model.ProductPage
		err  error
	)
	if q.Search != "" {
		page, err = h.sf.SearchProducts(ctx, q)
	} else {
		page, err = h.sf.Products(ctx, q)
	}
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	view := &ProductListView{Products: []ProductView{}}
	if page != nil {
		view.Page, view.Pages, view.Total = page.Page, page.Pages, page.Total
		for _, p := range page.Products {
			view.Products = append(view.Products, productView(p))
		}
	}
	return nil, view, nil
}

func (h *Handler) mcpCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CheckoutInput,
) (*mcp.CallToolResult, *OrderView, error) {
	if input.PaymentMethod == "" {
		return nil, nil, fmt.Errorf("payment_method is required")
	}

	order, err := h.sf.Checkout(ctx, model.OrderRequest{
		ShippingAddress: model.ShippingAddress{
			FullName:   input.FullName,
			Street:     input.Street,
			City:       input.City,
			State:      input.State,
			PostalCode: input.PostalCode,
			Country:    input.Country,
			Phone:      input.Phone,
		},
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
	})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, orderView(order), nil
}

func (h *Handler) mcpListOrders(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *OrderListView, error) {
	orders, err := h.sf.Orders(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	view := &OrderListView{Orders: make([]OrderView, 0, len(orders))}
	for i := range orders {
		view.Orders = append(view.Orders, *orderView(&orders[i]))
	}
	return nil, view, nil
}

func (h *Handler) mcpCancelOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input OrderInput,
) (*mcp.CallToolResult, *OrderView, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	order, err := h.sf.CancelOrder(ctx, input.ID, input.Reason)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, orderView(order), nil
}

// gated holds a tool back with SESSION_INITIALIZING until the startup
// session check settles, like SessionGate does for REST routes. Without it
// a signed-in visitor's add_to_cart could land in the guest cart.
func gated[In, Out any](
	h *Handler,
	fn func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error),
) func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		if h.sf.Session().Initializing {
			var zero Out
			return nil, zero, h.mcpError(model.NewSessionInitializingError())
		}
		return fn(ctx, req, input)
	}
}

// mcpError converts storefront errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	if errors.Is(err, wishlist.ErrToggleInFlight) {
		return fmt.Errorf("TOGGLE_IN_FLIGHT: %s", err.Error())
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}

// === View Mapping ===

func sessionView(s model.Session) *SessionView {
	v := &SessionView{Authenticated: s.Authenticated, Initializing: s.Initializing}
	if s.User != nil {
		v.UserID, v.Email, v.Name = s.User.ID, s.User.Email, s.User.Name
	}
	return v
}

func cartView(c model.Cart) *CartView {
	v := &CartView{
		Lines:     make([]CartLineView, 0, len(c.Lines)),
		ItemCount: c.ItemCount(),
		Subtotal:  c.Subtotal.String(),
		Tax:       c.Tax.String(),
		Total:     c.Total.String(),
	}
	for _, l := range c.Lines {
		v.Lines = append(v.Lines, CartLineView{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			UnitPrice: l.UnitPrice.String(),
			Quantity:  l.Quantity,
			LineTotal: l.UnitPrice.Mul(l.Quantity).String(),
		})
	}
	return v
}

func wishlistView(wl *model.Wishlist) *WishlistView {
	v := &WishlistView{ProductIDs: []string{}}
	if wl == nil {
		return v
	}
	for _, e := range wl.Entries {
		v.ProductIDs = append(v.ProductIDs, e.Product.ID())
	}
	return v
}

func productView(p model.ProductSummary) ProductView {
	return ProductView{ID: p.ID, Name: p.Name, Price: p.Price.String(), Stock: p.Stock}
}

func orderView(o *model.Order) *OrderView {
	v := &OrderView{
		ID:     o.ID,
		Number: o.OrderNumber,
		Status: string(o.Status),
		Lines:  make([]CartLineView, 0, len(o.Lines)),
		Total:  o.Total.String(),
	}
	for _, l := range o.Lines {
		name := l.Name
		if p, ok := l.Product.Summary(); ok && name == "" {
			name = p.Name
		}
		v.Lines = append(v.Lines, CartLineView{
			ProductID: l.Product.ID(),
			Name:      name,
			UnitPrice: l.Price.String(),
			Quantity:  l.Quantity,
			LineTotal: l.Price.Mul(l.Quantity).String(),
		})
	}
	return v
}
