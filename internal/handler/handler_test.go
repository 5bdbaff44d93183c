package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/backend"
	"storefront/internal/localstore"
	"storefront/internal/model"
	"storefront/internal/storefront"
)

var lamp = model.ProductSummary{ID: "P1", Name: "Lamp", Price: 1000, Stock: 5}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testHandler returns a handler whose session check has settled signed out.
func testHandler(t *testing.T, mock *backend.Mock) (*Handler, *http.ServeMux) {
	t.Helper()
	h, mux, sf := buildHandler(t, mock)
	sf.Init(context.Background())
	return h, mux
}

// buildHandler leaves the session initializing.
func buildHandler(t *testing.T, mock *backend.Mock) (*Handler, *http.ServeMux, *storefront.Storefront) {
	t.Helper()
	logger := testLogger()
	sf, err := storefront.New(storefront.Options{
		Backend: mock,
		Store:   localstore.NewMemory(),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("storefront.New: %v", err)
	}
	t.Cleanup(sf.Close)

	h := New(sf, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux, sf
}

// signedInMock accepts any login and serves a catalog with one product.
func signedInMock() *backend.Mock {
	return &backend.Mock{
		LoginFunc: func(ctx context.Context, creds model.Credentials) (*model.LoginResult, error) {
			return &model.LoginResult{User: &model.UserProfile{ID: "u1", Email: creds.Email}}, nil
		},
		SyncCartFunc: func(ctx context.Context, lines []model.CartLine) (*model.Cart, error) {
			c := model.EmptyCart()
			for _, l := range lines {
				c = c.WithAdded(l.Product, l.Quantity, model.DefaultTaxBasisPoints)
			}
			return &c, nil
		},
		GetProductFunc: func(ctx context.Context, id string) (*model.ProductSummary, error) {
			if id != lamp.ID {
				return nil, model.NewNotFoundError("product")
			}
			p := lamp
			return &p, nil
		},
	}
}

func doJSON(mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	w := doJSON(mux, "POST", "/session/login", map[string]string{"email": "ada@example.com", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d\nBody: %s", w.Code, w.Body.String())
	}
}

func errorCode(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error.Code
}

func TestHandleHealth(t *testing.T) {
	_, mux := testHandler(t, &backend.Mock{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp healthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %s, want ok", resp.Status)
	}
	if resp.Authenticated {
		t.Error("Authenticated = true before login")
	}
}

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name        string
		mock        *backend.Mock
		body        any
		wantStatus  int
		wantWarning bool
	}{
		{
			name:       "success",
			mock:       signedInMock(),
			body:       map[string]string{"email": "ada@example.com", "password": "pw"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "rejected",
			mock:       &backend.Mock{},
			body:       map[string]string{"email": "ada@example.com", "password": "bad"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing password",
			mock:       signedInMock(),
			body:       map[string]string{"email": "ada@example.com"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mux := testHandler(t, tt.mock)

			w := doJSON(mux, "POST", "/session/login", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}
			var resp loginResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if !resp.Session.Authenticated || resp.Session.User == nil {
				t.Errorf("Session = %+v, want signed in", resp.Session)
			}
		})
	}
}

func TestHandleLoginMergeFailureIsWarning(t *testing.T) {
	mock := signedInMock()
	mock.SyncCartFunc = func(ctx context.Context, lines []model.CartLine) (*model.Cart, error) {
		return nil, model.NewUpstreamError("backend", nil)
	}
	_, mux := testHandler(t, mock)

	if w := doJSON(mux, "POST", "/cart/lines", map[string]any{"productId": "P1", "quantity": 2}); w.Code != http.StatusOK {
		t.Fatalf("guest add status = %d\nBody: %s", w.Code, w.Body.String())
	}

	w := doJSON(mux, "POST", "/session/login", map[string]string{"email": "ada@example.com", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200\nBody: %s", w.Code, w.Body.String())
	}
	var resp loginResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Warning == "" {
		t.Error("expected merge warning")
	}
	if !resp.Session.Authenticated {
		t.Error("session should be signed in despite merge failure")
	}
}

func TestHandleGuestCart(t *testing.T) {
	mock := signedInMock()
	_, mux := testHandler(t, mock)

	w := doJSON(mux, "POST", "/cart/lines", map[string]any{"productId": "P1", "quantity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d\nBody: %s", w.Code, w.Body.String())
	}

	var c model.Cart
	json.NewDecoder(w.Body).Decode(&c)
	if c.Subtotal != 2000 || c.Tax != 160 || c.Total != 2160 {
		t.Errorf("totals = %v/%v/%v, want 20.00/1.60/21.60", c.Subtotal, c.Tax, c.Total)
	}

	w = doJSON(mux, "PUT", "/cart/lines/P1", map[string]int{"quantity": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}
	json.NewDecoder(w.Body).Decode(&c)
	if c.ItemCount() != 3 {
		t.Errorf("ItemCount = %d, want 3", c.ItemCount())
	}

	w = doJSON(mux, "DELETE", "/cart/lines/P1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d", w.Code)
	}
	json.NewDecoder(w.Body).Decode(&c)
	if !c.IsEmpty() {
		t.Errorf("cart not empty: %+v", c)
	}

	// Guest edits never reach the server cart.
	for _, name := range []string{"AddToCart", "UpdateCartItem", "RemoveCartItem", "GetCart"} {
		if n := mock.Calls(name); n != 0 {
			t.Errorf("%s called %d times", name, n)
		}
	}
}

func TestHandleAddLineValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"missing product", map[string]any{"quantity": 1}, http.StatusBadRequest},
		{"negative quantity", map[string]any{"productId": "P1", "quantity": -1}, http.StatusBadRequest},
		{"unknown product", map[string]any{"productId": "nope", "quantity": 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mux := testHandler(t, signedInMock())

			w := doJSON(mux, "POST", "/cart/lines", tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d\nBody: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	_, mux := testHandler(t, &backend.Mock{})

	req := httptest.NewRequest("POST", "/cart/lines", bytes.NewReader([]byte("{invalid")))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if code := errorCode(w.Body.Bytes()); code != "VALIDATION_ERROR" {
		t.Errorf("Code = %s, want VALIDATION_ERROR", code)
	}
}

func TestHandleWishlistRequiresSession(t *testing.T) {
	mock := &backend.Mock{}
	_, mux := testHandler(t, mock)
	before := mock.TotalCalls()

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{"GET", "/wishlist", nil},
		{"POST", "/wishlist", map[string]string{"productId": "P1"}},
		{"POST", "/wishlist/P1/toggle", nil},
		{"POST", "/wishlist/P1/move-to-cart", nil},
		{"DELETE", "/wishlist", nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doJSON(mux, tt.method, tt.path, tt.body)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Status = %d, want 401", w.Code)
			}
			if code := errorCode(w.Body.Bytes()); code != "AUTHENTICATION_REQUIRED" {
				t.Errorf("Code = %s, want AUTHENTICATION_REQUIRED", code)
			}
		})
	}

	if n := mock.TotalCalls() - before; n != 0 {
		t.Errorf("backend called %d times while signed out", n)
	}
}

func TestHandleToggleWishlist(t *testing.T) {
	saved := map[string]bool{}
	current := func() *model.Wishlist {
		w := &model.Wishlist{Entries: []model.WishlistEntry{}}
		for id := range saved {
			w.Entries = append(w.Entries, model.WishlistEntry{Product: model.Reference(id)})
		}
		return w
	}
	mock := signedInMock()
	mock.GetWishlistFunc = func(ctx context.Context) (*model.Wishlist, error) { return current(), nil }
	mock.AddToWishlistFunc = func(ctx context.Context, id string) (*model.Wishlist, error) {
		saved[id] = true
		return current(), nil
	}
	mock.RemoveFromWishlistFunc = func(ctx context.Context, id string) (*model.Wishlist, error) {
		delete(saved, id)
		return current(), nil
	}
	_, mux := testHandler(t, mock)
	login(t, mux)

	for i, wantAdded := range []bool{true, false} {
		w := doJSON(mux, "POST", "/wishlist/P1/toggle", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("toggle %d status = %d\nBody: %s", i, w.Code, w.Body.String())
		}
		var resp toggleResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Added != wantAdded {
			t.Errorf("toggle %d Added = %v, want %v", i, resp.Added, wantAdded)
		}
		if resp.Wishlist.Contains("P1") != wantAdded {
			t.Errorf("toggle %d Contains = %v", i, resp.Wishlist.Contains("P1"))
		}
	}
}

func TestHandleListProducts(t *testing.T) {
	var gotQuery model.ProductQuery
	var searched bool
	mock := &backend.Mock{
		ListProductsFunc: func(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
			gotQuery = q
			return &model.ProductPage{Products: []model.ProductSummary{lamp}, Page: q.Page, Pages: 1, Total: 1}, nil
		},
		SearchProductsFunc: func(ctx context.Context, q model.ProductQuery) (*model.ProductPage, error) {
			gotQuery, searched = q, true
			return &model.ProductPage{Products: []model.ProductSummary{}}, nil
		},
	}
	_, mux := testHandler(t, mock)

	w := doJSON(mux, "GET", "/products?page=2&limit=12&category=home&sort=price", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	want := model.ProductQuery{Page: 2, Limit: 12, Category: "home", Sort: "price"}
	if gotQuery != want {
		t.Errorf("query = %+v, want %+v", gotQuery, want)
	}
	var page model.ProductPage
	json.NewDecoder(w.Body).Decode(&page)
	if len(page.Products) != 1 || page.Products[0].ID != "P1" {
		t.Errorf("products = %+v", page.Products)
	}

	doJSON(mux, "GET", "/products?q=lamp", nil)
	if !searched || gotQuery.Search != "lamp" {
		t.Errorf("search not routed, query = %+v", gotQuery)
	}
}

func TestHandleCheckout(t *testing.T) {
	mock := signedInMock()
	mock.GetCartFunc = func(ctx context.Context) (*model.Cart, error) {
		c := model.EmptyCart().WithAdded(lamp, 1, model.DefaultTaxBasisPoints)
		return &c, nil
	}
	mock.CreateOrderFunc = func(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
		return &model.Order{ID: "o1", Status: model.OrderPending, Total: 1080}, nil
	}

	tests := []struct {
		name       string
		signIn     bool
		body       any
		wantStatus int
	}{
		{"signed out", false, map[string]any{"paymentMethod": "card"}, http.StatusUnauthorized},
		{"missing payment", true, map[string]any{}, http.StatusBadRequest},
		{"placed", true, map[string]any{
			"paymentMethod":   "card",
			"shippingAddress": map[string]string{"fullName": "Ada", "city": "London"},
		}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mux := testHandler(t, mock)
			if tt.signIn {
				login(t, mux)
			}

			w := doJSON(mux, "POST", "/orders", tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d\nBody: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleCancelOrder(t *testing.T) {
	var gotReason string
	mock := signedInMock()
	mock.CancelOrderFunc = func(ctx context.Context, id, reason string) (*model.Order, error) {
		gotReason = reason
		return &model.Order{ID: id, Status: model.OrderCancelled}, nil
	}
	_, mux := testHandler(t, mock)
	login(t, mux)

	w := doJSON(mux, "POST", "/orders/o1/cancel", map[string]string{"reason": "changed mind"})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d\nBody: %s", w.Code, w.Body.String())
	}
	if gotReason != "changed mind" {
		t.Errorf("reason = %q", gotReason)
	}

	// No body is fine.
	req := httptest.NewRequest("POST", "/orders/o1/cancel", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Status without body = %d", rec.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		mockErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			mockErr:    model.NewNotFoundError("product"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "validation error",
			mockErr:    model.NewValidationError("field", "invalid"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "upstream error",
			mockErr:    model.NewUpstreamError("backend", nil),
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
		{
			name:       "rate limit",
			mockErr:    model.NewRateLimitError("backend"),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "RATE_LIMITED",
		},
		{
			name:       "unknown error",
			mockErr:    io.ErrUnexpectedEOF,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &backend.Mock{
				GetProductFunc: func(ctx context.Context, id string) (*model.ProductSummary, error) {
					return nil, tt.mockErr
				},
			}

			_, mux := testHandler(t, mock)

			req := httptest.NewRequest("GET", "/products/123", nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := errorCode(w.Body.Bytes()); code != tt.wantCode {
				t.Errorf("Code = %s, want %s\nBody: %s", code, tt.wantCode, w.Body.String())
			}
		})
	}
}
