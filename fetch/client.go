// Package fetch provides the plain HTTP client shared by the static session,
// the image store and the feed link strategy. Its TLS handshake mimics Chrome
// so that CDN edges serve the same responses a browser would get.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
)

// UserAgent is sent on every plain HTTP request.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// MaxBody caps how much of a response body is read.
const MaxBody = 10 << 20

// chromeH1Spec is a Chrome ClientHello with ALPN restricted to http/1.1.
// http.Transport cannot speak h2 over a utls connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Options configures NewClient.
type Options struct {
	// Timeout bounds the whole request including body read. Zero means none.
	Timeout time.Duration

	// Proxy is an optional HTTP proxy URL.
	Proxy string

	// PlainTLS disables the Chrome fingerprint. Used against httptest servers.
	PlainTLS bool
}

// NewClient returns an *http.Client with a Chrome-like TLS fingerprint.
func NewClient(opts Options) *http.Client {
	transport := &http.Transport{
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if !opts.PlainTLS && opts.Proxy == "" {
		transport.DialTLSContext = dialChromeTLS
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("fetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode  int
	ContentType string
	FinalURL    string
	Body        []byte
}

// Get performs a browser-like GET and reads up to MaxBody bytes of the body.
// Non-2xx statuses are returned as a Response, not an error.
func Get(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "identity")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		Body:        body,
	}, nil
}

// IsHTML reports whether a Content-Type header looks like HTML.
func IsHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// HTMLLoader returns a page loader backed by client. Error statuses and
// non-HTML responses are failures.
func HTMLLoader(client *http.Client, acceptLanguage string) func(ctx context.Context, rawURL string) (string, error) {
	headers := map[string]string{}
	if acceptLanguage != "" {
		headers["Accept-Language"] = acceptLanguage
	}
	return func(ctx context.Context, rawURL string) (string, error) {
		resp, err := Get(ctx, client, rawURL, headers)
		if err != nil {
			return "", err
		}
		if resp.StatusCode >= 400 || !IsHTML(resp.ContentType) {
			return "", fmt.Errorf("fetch: non-html or error status %d (content-type: %s)", resp.StatusCode, resp.ContentType)
		}
		return string(resp.Body), nil
	}
}
