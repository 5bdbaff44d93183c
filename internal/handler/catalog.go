package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"storefront/internal/model"
)

// cancelRequest is the optional body of an order cancel.
type cancelRequest struct {
	Reason string `json:"reason"`
}

// productQueryFrom reads listing filters from the query string.
func productQueryFrom(r *http.Request) model.ProductQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return model.ProductQuery{
		Page:     page,
		Limit:    limit,
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
		Search:   q.Get("q"),
	}
}

// handleListProducts lists or searches the catalog.
// GET /products?q=&category=&sort=&page=&limit=
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := productQueryFrom(r)

	var (
		page *model.ProductPage
		err  error
	)
	if q.Search != "" {
		page, err = h.sf.SearchProducts(r.Context(), q)
	} else {
		page, err = h.sf.Products(r.Context(), q)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// handleFeaturedProducts returns the featured selection.
// GET /products/featured
func (h *Handler) handleFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.sf.FeaturedProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

// handleGetProduct returns one product.
// GET /products/{id}
func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.sf.Product(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// handleRelatedProducts returns products related to one product.
// GET /products/{id}/related
func (h *Handler) handleRelatedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.sf.RelatedProducts(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

// handleCheckout places an order from the server cart.
// POST /orders
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.PaymentMethod == "" {
		h.writeError(w, model.NewValidationError("paymentMethod", "required"))
		return
	}

	h.logger.InfoContext(ctx, "placing order",
		slog.String("payment_method", req.PaymentMethod),
		slog.String("city", req.ShippingAddress.City),
	)

	order, err := h.sf.Checkout(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, order)
}

// handleListOrders lists the user's orders.
// GET /orders
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.sf.Orders(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// handleGetOrder returns one order.
// GET /orders/{id}
func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.sf.Order(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// handleCancelOrder cancels an order. The body is optional.
// POST /orders/{id}/cancel
func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := r.PathValue("id")

	var req cancelRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	h.logger.InfoContext(ctx, "canceling order", slog.String("order_id", orderID))

	order, err := h.sf.CancelOrder(ctx, orderID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}
