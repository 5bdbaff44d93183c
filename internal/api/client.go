// Package api is the HTTP client for the storefront backend. It implements
// backend.Backend: requests carry the session cookie (and a bearer token
// fallback when one was issued), responses are unwrapped from the backend's
// envelope and normalized into model types, and non-2xx statuses become
// model.APIError values.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"storefront/internal/backend"
	"storefront/internal/model"
	"storefront/internal/negotiation"
	"storefront/internal/transport"
)

const (
	// DefaultBaseURL matches the backend's local development address.
	DefaultBaseURL = "http://localhost:5000/api"

	defaultTimeout = 30 * time.Second

	userAgent = "storefront-go/" + negotiation.ClientVersion

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// ChromeFingerprint selects the uTLS transport.
	ChromeFingerprint bool

	// TaxBasisPoints is the fallback tax rate for carts the backend sends
	// without totals. Zero means model.DefaultTaxBasisPoints.
	TaxBasisPoints int

	// Jar overrides the default public-suffix-aware cookie jar.
	Jar http.CookieJar

	// HTTPClient overrides the whole client (tests). Jar and transport
	// settings are ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client talks to the storefront backend.
type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	taxBP        int
	logger       *slog.Logger
	clientHeader string
	watcher      *negotiation.Watcher

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TaxBasisPoints <= 0 {
		cfg.TaxBasisPoints = model.DefaultTaxBasisPoints
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar := cfg.Jar
		if jar == nil {
			jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
			if err != nil {
				return nil, fmt.Errorf("creating cookie jar: %w", err)
			}
		}
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: transport.New(transport.Options{
				Timeout:           cfg.Timeout,
				ChromeFingerprint: cfg.ChromeFingerprint,
			}),
			Jar: jar,
		}
	}

	clientHeader, err := negotiation.FormatClientHeader(negotiation.ClientName, negotiation.ClientVersion)
	if err != nil {
		return nil, fmt.Errorf("formatting client header: %w", err)
	}

	return &Client{
		httpClient:   httpClient,
		baseURL:      base,
		taxBP:        cfg.TaxBasisPoints,
		logger:       cfg.Logger,
		clientHeader: clientHeader,
		watcher:      negotiation.NewWatcher(negotiation.SupportedAPIVersion, cfg.Logger),
	}, nil
}

// SetUnauthorizedHook installs the callback fired for every 401 on a
// request that isn't marked quiet. The session reconciler de-duplicates.
func (c *Client) SetUnauthorizedHook(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// SetToken installs the bearer fallback; empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the installed bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Cookies returns the session cookies held for the backend origin.
func (c *Client) Cookies() []*http.Cookie {
	if c.httpClient.Jar == nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(c.baseURL)
}

// SetCookies seeds the jar, e.g. from persisted state.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if c.httpClient.Jar == nil || len(cookies) == 0 {
		return
	}
	c.httpClient.Jar.SetCookies(c.baseURL, cookies)
}

// BackendAPIVersion is the version the backend last reported, or "".
func (c *Client) BackendAPIVersion() string {
	return c.watcher.Backend()
}

// request describes one backend call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// quiet requests never fire the unauthorized hook.
	quiet bool
}

// newRequest builds the HTTP request with JSON body and standard headers.
func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	var bodyReader io.Reader
	if r.body != nil {
		jsonBody, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	// Paths arrive already escaped.
	target := c.baseURL.String() + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(negotiation.ClientHeader, c.clientHeader)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes the request and returns the raw response body.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, model.NewUpstreamError("storefront", err)
	}
	defer resp.Body.Close()

	c.watcher.Observe(resp.Header.Get(negotiation.APIHeader))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, model.NewUpstreamError("storefront", fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("backend request",
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		apiErr := c.parseError(resp.StatusCode, body)
		if resp.StatusCode == http.StatusUnauthorized && !r.quiet {
			c.fireUnauthorized()
		}
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) fireUnauthorized() {
	c.mu.RLock()
	hook := c.onUnauthorized
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
}

// parseError converts a backend error response to model.APIError.
func (c *Client) parseError(statusCode int, body []byte) error {
	var eb errorBody
	json.Unmarshal(body, &eb) // Best effort parse
	msg := eb.text()

	switch statusCode {
	case http.StatusUnauthorized:
		if msg == "" {
			msg = "session expired"
		}
		return model.NewUnauthorizedError(msg)
	case http.StatusForbidden:
		if msg == "" {
			msg = "permission denied"
		}
		return model.NewForbiddenError(msg)
	case http.StatusNotFound:
		return model.NewNotFoundError("resource")
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case http.StatusTooManyRequests:
		return model.NewRateLimitError("storefront")
	default:
		return model.NewUpstreamError("storefront",
			fmt.Errorf("status %d: %s", statusCode, msg))
	}
}

// getJSON runs the request and decodes the unwrapped payload into out.
func (c *Client) getJSON(ctx context.Context, r request, key string, out any) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	raw := unwrap(body, key)
	if raw == nil {
		return model.NewUpstreamError("storefront", errors.New("empty response body"))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.NewUpstreamError("storefront", fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// === Auth ===

// CurrentUser calls GET /auth/me. Quiet: expected 401s for signed-out
// visitors must not look like an expired session.
func (c *Client) CurrentUser(ctx context.Context) (*model.UserProfile, error) {
	var user model.UserProfile
	err := c.getJSON(ctx, request{method: http.MethodGet, path: "/auth/me", quiet: true}, "user", &user)
	if err != nil {
		return nil, err
	}
	if user.ID == "" && user.Email == "" {
		return nil, model.NewUnauthorizedError("no user in session response")
	}
	return &user, nil
}

// Login calls POST /auth/login. The session cookie lands in the jar; a
// bearer token is installed when the backend returns one.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.LoginResult, error) {
	res, err := c.authenticate(ctx, "/auth/login", creds)
	if err != nil {
		return nil, err
	}
	if res.Token != "" {
		c.SetToken(res.Token)
	}
	return res, nil
}

// Register calls POST /auth/register. Accounts start unverified, so the
// response never signs the caller in.
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.LoginResult, error) {
	return c.authenticate(ctx, "/auth/register", reg)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*model.LoginResult, error) {
	// Bad credentials answer 401; that is a form error, not session expiry.
	var w wireLogin
	err := c.getJSON(ctx, request{method: http.MethodPost, path: path, body: body, quiet: true}, "", &w)
	if err != nil {
		return nil, err
	}
	if w.User == nil {
		return nil, model.NewUpstreamError("storefront", errors.New("authentication response has no user"))
	}
	return &model.LoginResult{User: w.User, Token: w.Token}, nil
}

// Logout calls POST /auth/logout and drops the bearer token either way.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout", quiet: true})
	return err
}

// === Cart ===

func (c *Client) cartCall(ctx context.Context, r request) (*model.Cart, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	cart, err := decodeCart(unwrap(body, "cart"), c.taxBP)
	if err != nil {
		return nil, model.NewUpstreamError("storefront", err)
	}
	return cart, nil
}

// GetCart calls GET /cart.
func (c *Client) GetCart(ctx context.Context) (*model.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodGet, path: "/cart"})
}

// AddToCart calls POST /cart/add.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*model.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPost,
		path:   "/cart/add",
		body:   map[string]any{"productId": productID, "quantity": quantity},
	})
}

// UpdateCartItem calls PUT /cart/{productId}.
func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) (*model.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPut,
		path:   "/cart/" + url.PathEscape(productID),
		body:   map[string]any{"quantity": quantity},
	})
}

// RemoveCartItem calls DELETE /cart/{productId}.
func (c *Client) RemoveCartItem(ctx context.Context, productID string) (*model.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodDelete, path: "/cart/" + url.PathEscape(productID)})
}

// ClearCart calls DELETE /cart.
func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/cart"})
	return err
}

// SyncCart calls POST /cart/sync with the guest lines.
func (c *Client) SyncCart(ctx context.Context, lines []model.CartLine) (*model.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPost,
		path:   "/cart/sync",
		body:   map[string]any{"items": toSyncItems(lines)},
	})
}

// === Wishlist ===

func (c *Client) wishlistCall(ctx context.Context, r request) (*model.Wishlist, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	wl, err := decodeWishlist(unwrap(body, "wishlist"))
	if err != nil {
		return nil, model.NewUpstreamError("storefront", err)
	}
	return wl, nil
}

// GetWishlist calls GET /wishlist.
func (c *Client) GetWishlist(ctx context.Context) (*model.Wishlist, error) {
	return c.wishlistCall(ctx, request{method: http.MethodGet, path: "/wishlist"})
}

// AddToWishlist calls POST /wishlist.
func (c *Client) AddToWishlist(ctx context.Context, productID string) (*model.Wishlist, error) {
	return c.wishlistCall(ctx, request{
		method: http.MethodPost,
		path:   "/wishlist",
		body:   map[string]any{"productId": productID},
	})
}

// RemoveFromWishlist calls DELETE /wishlist/{productId}.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) (*model.Wishlist, error) {
	return c.wishlistCall(ctx, request{method: http.MethodDelete, path: "/wishlist/" + url.PathEscape(productID)})
}

// ClearWishlist calls DELETE /wishlist.
func (c *Client) ClearWishlist(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/wishlist"})
	return err
}

// MoveToCart calls POST /wishlist/{productId}/move-to-cart. Either document
// may be missing from the response.
func (c *Client) MoveToCart(ctx context.Context, productID string) (*model.Wishlist, *model.Cart, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/wishlist/" + url.PathEscape(productID) + "/move-to-cart",
	})
	if err != nil {
		return nil, nil, err
	}

	var parts struct {
		Wishlist json.RawMessage `json:"wishlist"`
		Cart     json.RawMessage `json:"cart"`
	}
	if raw := unwrap(body, ""); raw != nil {
		json.Unmarshal(raw, &parts) // Best effort: acks without documents are valid
	}

	wl, err := decodeWishlist(parts.Wishlist)
	if err != nil {
		return nil, nil, model.NewUpstreamError("storefront", err)
	}
	cart, err := decodeCart(parts.Cart, c.taxBP)
	if err != nil {
		return nil, nil, model.NewUpstreamError("storefront", err)
	}
	return wl, cart, nil
}

// Verify Client implements backend.Backend at compile time.
var _ backend.Backend = (*Client)(nil)
