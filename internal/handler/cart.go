package handler

import (
	"log/slog"
	"net/http"

	"storefront/internal/model"
	"storefront/internal/reconcile"
)

type addLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// replaceCartRequest uses full PUT semantics: lines not listed are removed.
type replaceCartRequest struct {
	Items []reconcile.DesiredItem `json:"items"`
}

type productRequest struct {
	ProductID string `json:"productId"`
}

// handleGetCart returns the live cart, refreshed from its source.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.sf.FetchCart(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// handleAddLine adds a product to the live cart.
// POST /cart/lines
func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addLineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ProductID == "" {
		h.writeError(w, model.NewValidationError("productId", "required"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	h.logger.InfoContext(ctx, "adding to cart",
		slog.String("product_id", req.ProductID),
		slog.Int("quantity", req.Quantity),
	)

	c, err := h.sf.AddToCartByID(ctx, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// handleUpdateLine sets a line's quantity.
// PUT /cart/lines/{productId}
func (h *Handler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	c, err := h.sf.UpdateCartLine(r.Context(), r.PathValue("productId"), req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// handleRemoveLine drops a line.
// DELETE /cart/lines/{productId}
func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	c, err := h.sf.RemoveCartLine(r.Context(), r.PathValue("productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// handleClearCart empties the live cart.
// DELETE /cart
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.sf.ClearCart(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// handleReplaceCart makes the cart match the request.
// PUT /cart
func (h *Handler) handleReplaceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req replaceCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "replacing cart", slog.Int("items", len(req.Items)))

	c, err := h.sf.ReplaceCart(ctx, req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// handleMergeCart retries a guest cart merge that failed at login.
// POST /cart/merge
func (h *Handler) handleMergeCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.sf.MergeGuestCart(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// handleGetWishlist loads the wishlist.
// GET /wishlist
func (h *Handler) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.sf.FetchWishlist(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wl)
}

// handleAddToWishlist saves a product.
// POST /wishlist
func (h *Handler) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	wl, err := h.sf.AddToWishlist(r.Context(), req.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wl)
}

// handleRemoveFromWishlist drops a product.
// DELETE /wishlist/{productId}
func (h *Handler) handleRemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.sf.RemoveFromWishlist(r.Context(), r.PathValue("productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wl)
}

// handleToggleWishlist flips membership.
// POST /wishlist/{productId}/toggle
func (h *Handler) handleToggleWishlist(w http.ResponseWriter, r *http.Request) {
	added, err := h.sf.ToggleWishlist(r.Context(), r.PathValue("productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toggleResponse{
		Added:    added,
		Wishlist: h.sf.Wishlist(),
	})
}

type toggleResponse struct {
	Added    bool            `json:"added"`
	Wishlist *model.Wishlist `json:"wishlist"`
}

// handleClearWishlist empties the wishlist.
// DELETE /wishlist
func (h *Handler) handleClearWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.sf.ClearWishlist(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wl)
}

// handleMoveToCart moves a saved product into the cart.
// POST /wishlist/{productId}/move-to-cart
func (h *Handler) handleMoveToCart(w http.ResponseWriter, r *http.Request) {
	wl, c, err := h.sf.MoveToCart(r.Context(), r.PathValue("productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, moveResponse{Wishlist: wl, Cart: c})
}

type moveResponse struct {
	Wishlist *model.Wishlist `json:"wishlist"`
	Cart     model.Cart      `json:"cart"`
}
