package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/model"
)

func productQuery(q model.ProductQuery) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	return v
}

// ListProducts calls GET /products.
func (c *Client) ListProducts(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
	var w wireProductPage
	err := c.getJSON(ctx, request{method: http.MethodGet, path: "/products", query: productQuery(q), quiet: true}, "", &w)
	if err != nil {
		return nil, err
	}
	return toProductPage(w), nil
}

// SearchProducts calls GET /products/search?q=...
func (c *Client) SearchProducts(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
	if q.Search == "" {
		return nil, model.NewValidationError("q", "search text is required")
	}
	var w wireProductPage
	err := c.getJSON(ctx, request{method: http.MethodGet, path: "/products/search", query: productQuery(q), quiet: true}, "", &w)
	if err != nil {
		return nil, err
	}
	return toProductPage(w), nil
}

// GetProduct calls GET /products/{id}.
func (c *Client) GetProduct(ctx context.Context, id string) (*model.ProductSummary, error) {
	var p model.ProductSummary
	err := c.getJSON(ctx, request{method: http.MethodGet, path: "/products/" + url.PathEscape(id), quiet: true}, "product", &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FeaturedProducts calls GET /products/featured.
func (c *Client) FeaturedProducts(ctx context.Context) ([]model.ProductSummary, error) {
	var out []model.ProductSummary
	r := request{
		method: http.MethodGet,
		path:   "/products/featured",
		query:  url.Values{"limit": {"8"}},
		quiet:  true,
	}
	if err := c.getJSON(ctx, r, "products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RelatedProducts calls GET /products/{id}/related.
func (c *Client) RelatedProducts(ctx context.Context, id string) ([]model.ProductSummary, error) {
	var out []model.ProductSummary
	r := request{
		method: http.MethodGet,
		path:   "/products/" + url.PathEscape(id) + "/related",
		query:  url.Values{"limit": {"4"}},
		quiet:  true,
	}
	if err := c.getJSON(ctx, r, "products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrder calls POST /orders. The backend builds the order from the
// server cart.
func (c *Client) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	var o model.Order
	err := c.getJSON(ctx, request{method: http.MethodPost, path: "/orders", body: req}, "order", &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders calls GET /orders. Accepts {orders:[...]} or a bare array.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/orders"})
	if err != nil {
		return nil, err
	}

	raw := unwrap(body, "orders")
	orders := []model.Order{}
	if raw == nil || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return orders, nil
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, model.NewUpstreamError("storefront", err)
	}
	return orders, nil
}

// GetOrder calls GET /orders/{id}.
func (c *Client) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := c.getJSON(ctx, request{method: http.MethodGet, path: "/orders/" + url.PathEscape(id)}, "order", &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CancelOrder calls POST /orders/{id}/cancel.
func (c *Client) CancelOrder(ctx context.Context, id, reason string) (*model.Order, error) {
	var o model.Order
	r := request{
		method: http.MethodPost,
		path:   "/orders/" + url.PathEscape(id) + "/cancel",
		body:   map[string]string{"reason": reason},
	}
	if err := c.getJSON(ctx, r, "order", &o); err != nil {
		return nil, err
	}
	return &o, nil
}
