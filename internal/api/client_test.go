package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"storefront/internal/model"
	"storefront/internal/negotiation"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL: srv.URL + "/api",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("expected error for non-http base URL")
	}
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if c.baseURL.String() != DefaultBaseURL {
		t.Errorf("baseURL = %s, want %s", c.baseURL, DefaultBaseURL)
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	var path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.Path
		writeBody(w, 200, `{"status":"success","data":{"cart":{"items":[]}}}`)
	})
	c.SetToken("tok-1")

	if _, err := c.GetCart(context.Background()); err != nil {
		t.Fatalf("GetCart: %v", err)
	}

	if path != "/api/cart" {
		t.Errorf("path = %s, want /api/cart", path)
	}
	if got.Get("Authorization") != "Bearer tok-1" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	info, err := negotiation.ParseClientHeader(got.Get(negotiation.ClientHeader))
	if err != nil {
		t.Fatalf("client header: %v", err)
	}
	if info.Name != negotiation.ClientName {
		t.Errorf("client name = %q", info.Name)
	}
	if got.Get("Content-Type") != "" {
		t.Errorf("GET should not send Content-Type, got %q", got.Get("Content-Type"))
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
		code     string
	}{
		{401, `{"message":"jwt expired"}`, model.ErrUnauthorized, "UNAUTHORIZED"},
		{403, ``, model.ErrUnauthorized, "FORBIDDEN"},
		{404, ``, model.ErrNotFound, "NOT_FOUND"},
		{400, `{"message":"Insufficient stock"}`, model.ErrInvalidRequest, "VALIDATION_ERROR"},
		{409, ``, model.ErrInvalidRequest, "VALIDATION_ERROR"},
		{429, ``, model.ErrRateLimited, "RATE_LIMITED"},
		{500, `{"error":"boom"}`, model.ErrUpstreamError, "UPSTREAM_ERROR"},
		{503, `<html>`, model.ErrUpstreamError, "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, tt.status, tt.body)
			})

			_, err := c.AddToCart(context.Background(), "p1", 1)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("err = %v, want %v", err, tt.sentinel)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Code != tt.code {
				t.Errorf("code = %s, want %s", apiErr.Code, tt.code)
			}
		})
	}
}

func TestValidationMessagePassedThrough(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, 400, `{"status":"fail","message":"Insufficient stock"}`)
	})
	_, err := c.AddToCart(context.Background(), "p1", 99)
	if err == nil || !strings.Contains(err.Error(), "Insufficient stock") {
		t.Errorf("err = %v, want backend message", err)
	}
}

func TestUnauthorizedHook(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, 401, `{"message":"not authenticated"}`)
	})

	var fired atomic.Int32
	c.SetUnauthorizedHook(func() { fired.Add(1) })
	ctx := context.Background()

	if _, err := c.CurrentUser(ctx); !model.IsUnauthorized(err) {
		t.Fatalf("CurrentUser err = %v", err)
	}
	if fired.Load() != 0 {
		t.Fatal("session check must not fire the unauthorized hook")
	}

	if _, err := c.Login(ctx, model.Credentials{Email: "a@b.c", Password: "x"}); err == nil {
		t.Fatal("expected login error")
	}
	if fired.Load() != 0 {
		t.Fatal("rejected login must not fire the unauthorized hook")
	}

	c.GetWishlist(ctx)
	c.GetCart(ctx)
	if fired.Load() != 2 {
		t.Errorf("hook fired %d times, want 2", fired.Load())
	}
}

func TestCurrentUser(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, 200, `{"status":"success","data":{"user":{"_id":"u1","name":"Ada","email":"ada@example.com","role":"customer"}}}`)
	})

	u, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if u.ID != "u1" || u.Email != "ada@example.com" || u.Role != "customer" {
		t.Errorf("user = %+v", u)
	}
}

func TestLoginStoresTokenAndCookie(t *testing.T) {
	var sawCookie atomic.Bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var creds model.Credentials
			json.NewDecoder(r.Body).Decode(&creds)
			if creds.Email != "ada@example.com" {
				writeBody(w, 401, `{"message":"Invalid email or password"}`)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "token", Value: "cookie-1", Path: "/"})
			writeBody(w, 200, `{"status":"success","data":{"user":{"_id":"u1","email":"ada@example.com"},"token":"bearer-1"}}`)
		case "/api/cart":
			if ck, err := r.Cookie("token"); err == nil && ck.Value == "cookie-1" {
				sawCookie.Store(true)
			}
			writeBody(w, 200, `{"data":{"cart":{"items":[]}}}`)
		}
	})

	res, err := c.Login(context.Background(), model.Credentials{Email: "ada@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "bearer-1" || c.Token() != "bearer-1" {
		t.Errorf("token = %q / %q, want bearer-1", res.Token, c.Token())
	}
	if res.User.ID != "u1" {
		t.Errorf("user = %+v", res.User)
	}

	c.GetCart(context.Background())
	if !sawCookie.Load() {
		t.Error("session cookie not sent on follow-up request")
	}
	if len(c.Cookies()) != 1 {
		t.Errorf("Cookies() = %v, want 1 cookie", c.Cookies())
	}
}

func TestLogoutClearsToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, 500, `{}`)
	})
	c.SetToken("t")

	if err := c.Logout(context.Background()); err == nil {
		t.Error("expected logout error to surface")
	}
	if c.Token() != "" {
		t.Error("token not cleared after logout")
	}
}

func TestAddToCartPartialAck(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		writeBody(w, 200, `{"status":"success","message":"Item added to cart"}`)
	})

	cart, err := c.AddToCart(context.Background(), "p1", 3)
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if cart != nil {
		t.Errorf("cart = %+v, want nil for an acknowledgement", cart)
	}
	if body["productId"] != "p1" || body["quantity"] != float64(3) {
		t.Errorf("request body = %v", body)
	}
}

func TestSyncCartRequest(t *testing.T) {
	var got struct {
		Items []struct {
			ProductID string  `json:"productId"`
			Quantity  int     `json:"quantity"`
			Price     float64 `json:"price"`
		} `json:"items"`
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/cart/sync" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writeBody(w, 200, `{"data":{"cart":{"items":[{"product":{"_id":"A","price":10},"quantity":2}],"subtotal":20,"tax":1.6,"total":21.6}}}`)
	})

	lines := []model.CartLine{{Product: model.ProductSummary{ID: "A"}, UnitPrice: 1000, Quantity: 2}}
	cart, err := c.SyncCart(context.Background(), lines)
	if err != nil {
		t.Fatalf("SyncCart: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].ProductID != "A" || got.Items[0].Quantity != 2 || got.Items[0].Price != 10 {
		t.Errorf("request items = %+v", got.Items)
	}
	if cart.Total != 2160 {
		t.Errorf("total = %s, want 21.60", cart.Total)
	}
}

func TestMoveToCart(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantWishlist bool
		wantCart     bool
	}{
		{
			name:         "both documents",
			body:         `{"data":{"wishlist":{"items":[]},"cart":{"items":[{"product":"p1","quantity":1}]}}}`,
			wantWishlist: true,
			wantCart:     true,
		},
		{
			name:     "cart only",
			body:     `{"data":{"cart":{"items":[]}}}`,
			wantCart: true,
		},
		{
			name: "ack only",
			body: `{"status":"success"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/wishlist/p1/move-to-cart" {
					t.Errorf("path = %s", r.URL.Path)
				}
				writeBody(w, 200, tt.body)
			})

			wl, cart, err := c.MoveToCart(context.Background(), "p1")
			if err != nil {
				t.Fatalf("MoveToCart: %v", err)
			}
			if (wl != nil) != tt.wantWishlist {
				t.Errorf("wishlist = %v, want present=%v", wl, tt.wantWishlist)
			}
			if (cart != nil) != tt.wantCart {
				t.Errorf("cart = %v, want present=%v", cart, tt.wantCart)
			}
		})
	}
}

func TestAPIVersionObserved(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(negotiation.APIHeader, `version="v1.7.0"`)
		writeBody(w, 200, `{"items":[]}`)
	})

	c.GetWishlist(context.Background())
	if got := c.BackendAPIVersion(); got != "v1.7.0" {
		t.Errorf("BackendAPIVersion() = %q, want v1.7.0", got)
	}
}

func TestListOrdersShapes(t *testing.T) {
	for _, body := range []string{
		`{"status":"success","data":{"orders":[{"_id":"o1","status":"pending"}]}}`,
		`{"orders":[{"_id":"o1","status":"pending"}]}`,
		`[{"_id":"o1","status":"pending"}]`,
	} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, 200, body)
		})
		orders, err := c.ListOrders(context.Background())
		if err != nil {
			t.Fatalf("ListOrders(%s): %v", body, err)
		}
		if len(orders) != 1 || orders[0].ID != "o1" || !orders[0].Cancellable() {
			t.Errorf("ListOrders(%s) = %+v", body, orders)
		}
	}
}

func TestProductQueryParams(t *testing.T) {
	var query string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeBody(w, 200, `{"data":{"products":[{"_id":"p1","name":"Mug","price":12}],"pagination":{"page":1,"pages":1,"total":1}}}`)
	})

	page, err := c.SearchProducts(context.Background(), model.ProductQuery{Search: "mug", Limit: 5})
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if query != "limit=5&q=mug" {
		t.Errorf("query = %s", query)
	}
	if len(page.Products) != 1 || page.Products[0].Price != 1200 {
		t.Errorf("page = %+v", page)
	}

	if _, err := c.SearchProducts(context.Background(), model.ProductQuery{}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("empty search err = %v, want ErrInvalidRequest", err)
	}
}
