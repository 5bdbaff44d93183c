// Package handler exposes one storefront session over REST and MCP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront/internal/model"
	"storefront/internal/storefront"
	"storefront/internal/wishlist"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sf     *storefront.Storefront
	logger *slog.Logger
}

// New creates a Handler serving sf.
func New(sf *storefront.Storefront, logger *slog.Logger) *Handler {
	return &Handler{sf: sf, logger: logger}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /session", h.handleGetSession)
	mux.HandleFunc("POST /session/login", h.handleLogin)
	mux.HandleFunc("POST /session/logout", h.handleLogout)
	mux.HandleFunc("POST /session/register", h.handleRegister)
	mux.HandleFunc("PATCH /session/profile", h.handleUpdateProfile)

	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("PUT /cart", h.handleReplaceCart)
	mux.HandleFunc("DELETE /cart", h.handleClearCart)
	mux.HandleFunc("POST /cart/lines", h.handleAddLine)
	mux.HandleFunc("PUT /cart/lines/{productId}", h.handleUpdateLine)
	mux.HandleFunc("DELETE /cart/lines/{productId}", h.handleRemoveLine)
	mux.HandleFunc("POST /cart/merge", h.handleMergeCart)

	mux.HandleFunc("GET /wishlist", h.handleGetWishlist)
	mux.HandleFunc("POST /wishlist", h.handleAddToWishlist)
	mux.HandleFunc("DELETE /wishlist", h.handleClearWishlist)
	mux.HandleFunc("DELETE /wishlist/{productId}", h.handleRemoveFromWishlist)
	mux.HandleFunc("POST /wishlist/{productId}/toggle", h.handleToggleWishlist)
	mux.HandleFunc("POST /wishlist/{productId}/move-to-cart", h.handleMoveToCart)

	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /products/featured", h.handleFeaturedProducts)
	mux.HandleFunc("GET /products/{id}", h.handleGetProduct)
	mux.HandleFunc("GET /products/{id}/related", h.handleRelatedProducts)

	mux.HandleFunc("POST /orders", h.handleCheckout)
	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.handleCancelOrder)

	mux.Handle("/mcp", h.NewMCPHandler())

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.toAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// toAPIError finds the APIError in err's chain, mapping the few local
// errors that aren't APIErrors.
func (h *Handler) toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, wishlist.ErrToggleInFlight):
		return &model.APIError{
			Code:       "TOGGLE_IN_FLIGHT",
			Message:    err.Error(),
			StatusCode: http.StatusConflict,
		}
	default:
		h.logger.Error("internal error", slog.String("error", err.Error()))
		return &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
	}
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// handleHealth reports liveness and where the session stands.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	s := h.sf.Session()
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Initializing:  s.Initializing,
		Authenticated: s.Authenticated,
	})
}

type healthResponse struct {
	Status        string `json:"status"`
	Initializing  bool   `json:"initializing"`
	Authenticated bool   `json:"authenticated"`
}
