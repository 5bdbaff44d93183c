// Package transport provides the HTTP round trippers the backend client runs on.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Options selects the round tripper returned by New.
type Options struct {
	Timeout time.Duration

	// ChromeFingerprint dials TLS with a Chrome ClientHello. Some storefront
	// deployments sit behind CDNs that throttle Go's default fingerprint.
	ChromeFingerprint bool
}

// New returns the configured round tripper.
func New(opts Options) http.RoundTripper {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ChromeFingerprint {
		return NewChromeTransport(opts.Timeout)
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSHandshakeTimeout = opts.Timeout
	return t
}

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint (uTLS HelloChrome_Auto). ALPN decides between HTTP/2, framed
// by x/net/http2, and HTTP/1.1.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}
	h1 := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: timeout,
	}

	return &chromeTransport{h2: h2, h1: h1}
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip sends plain-http requests over HTTP/1.1 and tries HTTP/2 first
// for https, falling back when the server doesn't negotiate it.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// Body already consumed; can't replay on HTTP/1.1.
		return nil, err
	}
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
