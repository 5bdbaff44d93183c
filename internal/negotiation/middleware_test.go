package negotiation

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testMiddleware(t *testing.T) (http.Handler, *ClientInfo) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen ClientInfo

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := GetClientInfo(r.Context()); ok {
			seen = info
		}
		w.WriteHeader(http.StatusOK)
	})
	return Middleware("v1.4.0", logger)(handler), &seen
}

func TestMiddleware_NoHeader(t *testing.T) {
	wrapped, _ := testMiddleware(t)

	req := httptest.NewRequest("GET", "/cart", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get(APIHeader); got != `version="v1.4.0"` {
		t.Errorf("%s = %q", APIHeader, got)
	}
}

func TestMiddleware_CompatibleClient(t *testing.T) {
	wrapped, seen := testMiddleware(t)

	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set(ClientHeader, `name="web", version="v1.0.0"`)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if seen.Name != "web" || seen.Version != "v1.0.0" {
		t.Errorf("client info = %+v", *seen)
	}
}

func TestMiddleware_VersionMismatch(t *testing.T) {
	wrapped, _ := testMiddleware(t)

	req := httptest.NewRequest("POST", "/cart/items", nil)
	req.Header.Set(ClientHeader, `version="v2.0.0"`)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != VersionUnsupported {
		t.Errorf("code = %s, want %s", resp.Error.Code, VersionUnsupported)
	}
}

func TestMiddleware_InvalidHeader(t *testing.T) {
	wrapped, _ := testMiddleware(t)

	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set(ClientHeader, `version=`)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestMiddleware_ExemptPaths(t *testing.T) {
	wrapped, _ := testMiddleware(t)

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set(ClientHeader, `version="v9.0.0"`)
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}
