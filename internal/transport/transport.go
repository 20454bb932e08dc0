// Package transport provides the shared HTTP client every network call in
// the access layer routes through. It merges authentication headers,
// retries transient failures with exponential backoff, and falls back once
// to the canonical cluster domain when the legacy domain stops answering.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
)

const (
	// AltDomainSuffix is the legacy hosted-cluster domain still present in
	// old connection strings.
	AltDomainSuffix = ".weaviate.network"
	// CanonicalDomainSuffix is the current hosted-cluster domain.
	CanonicalDomainSuffix = ".weaviate.cloud"
)

// ErrExhausted marks a request that failed after the whole retry budget.
var ErrExhausted = errors.New("transport: retry budget exhausted")

// Config holds the settings for constructing a [Client].
type Config struct {
	// APIKey is sent as "Authorization: Bearer <key>" when non-empty.
	APIKey string
	// ExtraHeaders are merged into every request (existing keys win).
	ExtraHeaders map[string]string
	// TLSSkipVerify disables certificate verification. Diagnostics only.
	TLSSkipVerify bool
	// CABundle is an optional path to a PEM bundle appended to the system pool.
	CABundle string
	// DialTimeout bounds TCP connection establishment.
	DialTimeout time.Duration
	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for response headers.
	ResponseHeaderTimeout time.Duration
	// RequestTimeout bounds one whole request attempt, body included.
	RequestTimeout time.Duration
	// EnableHTTP2 opts in to protocol negotiation. Off by default: several
	// managed proxies reset connections during ALPN.
	EnableHTTP2 bool
	// MaxRetries is the number of retries after the first attempt. Zero
	// means the default of 3; use -1 for a single attempt with no retries.
	MaxRetries int
	// InitialBackoff is the first retry delay; later delays grow from it.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// DomainFallback enables the one-time legacy→canonical host retry.
	DomainFallback bool
	// Logger receives retry and fallback decisions. Defaults to slog.Default.
	Logger *slog.Logger
}

// ApplyDefaults fills zero-valued fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.TLSHandshakeTimeout == 0 {
		c.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.ResponseHeaderTimeout == 0 {
		c.ResponseHeaderTimeout = 30 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 8 * time.Second
	}
}

// Validate reports configuration that cannot produce a working client.
func (c *Config) Validate() error {
	if c.MaxRetries < -1 {
		return fmt.Errorf("transport: MaxRetries must be >= -1, got %d", c.MaxRetries)
	}
	if c.CABundle != "" {
		if _, err := os.Stat(c.CABundle); err != nil {
			return fmt.Errorf("transport: CA bundle %q: %w", c.CABundle, err)
		}
	}
	return nil
}

// Response is a fully drained HTTP response. Bodies are small JSON
// documents in this API, so buffering them simplifies retry and fallback
// handling.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the complete response body.
	Body []byte
}

// Client is the resilient HTTP client. It is safe for concurrent use and
// holds the one long-lived connection pool per configuration; changing TLS
// or negotiation settings means constructing a new Client.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger

	mu sync.RWMutex
	// hostOverride maps an original host to its promoted canonical host.
	hostOverride map[string]string
}

// NewClient constructs a Client from cfg. Defaults are applied to zero
// fields; the configuration is validated before the pool is built.
func NewClient(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify} //nolint:gosec // explicit diagnostics-only knob
	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("transport: read CA bundle: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("transport: CA bundle %q contains no usable certificates", cfg.CABundle)
		}
		tlsCfg.RootCAs = pool
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     cfg.EnableHTTP2,
	}
	if !cfg.EnableHTTP2 {
		// A non-nil empty map disables HTTP/2 upgrade entirely.
		tr.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: tr,
			Timeout:   cfg.RequestTimeout,
		},
		log:          logging.WithComponent(cfg.Logger, "transport"),
		hostOverride: make(map[string]string),
	}, nil
}

// Do executes one logical request: merge headers, retry transient failures
// with exponential backoff, and — if the retry budget is exhausted against a
// legacy-domain host with fallback enabled — try the canonical host once,
// promoting it for the rest of the client's lifetime on success.
//
// Responses are returned for every status code; only network-level failures
// and retryable statuses that never recovered produce an error.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (*Response, error) {
	rawURL = c.applyOverride(rawURL)

	resp, err := c.doWithRetry(ctx, method, rawURL, body, headers)
	if err == nil {
		return resp, nil
	}

	altURL, ok := c.fallbackURL(rawURL)
	if !ok || !isConnectFailure(err) {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrExhausted, method, rawURL, err)
	}

	c.log.Info("transport: retrying against canonical domain",
		slog.String("original", rawURL),
		slog.String("fallback", altURL),
	)
	altResp, altErr := c.doOnce(ctx, method, altURL, body, headers)
	if altErr != nil {
		// Keep the original failure; the fallback was opportunistic.
		return nil, fmt.Errorf("%w: %s %s: %w", ErrExhausted, method, rawURL, err)
	}

	c.promote(rawURL, altURL)
	return altResp, nil
}

// Get is shorthand for Do with GET and no body.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, nil, headers)
}

// Close releases idle connections in the underlying pool.
func (c *Client) Close() {
	if tr, ok := c.http.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}

// doWithRetry runs the attempt loop for one URL.
func (c *Client) doWithRetry(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (*Response, error) {
	var resp *Response

	attempt := func() error {
		r, err := c.doOnce(ctx, method, rawURL, body, headers)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if retryableStatus(r.StatusCode) {
			return fmt.Errorf("transport: server responded %d", r.StatusCode)
		}
		resp = r
		return nil
	}

	pol := backoff.NewExponentialBackOff()
	pol.InitialInterval = c.cfg.InitialBackoff
	pol.MaxInterval = c.cfg.MaxBackoff
	pol.MaxElapsedTime = 0 // bounded by MaxRetries and ctx, not wall clock

	notify := func(err error, wait time.Duration) {
		c.log.Debug("transport: retrying request",
			slog.String("method", method),
			slog.String("url", rawURL),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	err := backoff.RetryNotify(
		attempt,
		backoff.WithContext(backoff.WithMaxRetries(pol, uint64(retries)), ctx),
		notify,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// doOnce performs a single HTTP round trip and drains the body.
func (c *Client) doOnce(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("transport: build request: %w", err))
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.cfg.APIKey != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

// applyOverride rewrites rawURL's host if a previous fallback promoted it.
func (c *Client) applyOverride(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	c.mu.RLock()
	promoted, ok := c.hostOverride[u.Host]
	c.mu.RUnlock()
	if !ok {
		return rawURL
	}

	u.Host = promoted
	return u.String()
}

// promote records that altURL's host now answers for rawURL's host.
func (c *Client) promote(rawURL, altURL string) {
	orig, err1 := url.Parse(rawURL)
	alt, err2 := url.Parse(altURL)
	if err1 != nil || err2 != nil {
		return
	}

	c.mu.Lock()
	c.hostOverride[orig.Host] = alt.Host
	c.mu.Unlock()

	c.log.Info("transport: promoted canonical host",
		slog.String("from", orig.Host),
		slog.String("to", alt.Host),
	)
}

// fallbackURL returns rawURL with the legacy domain suffix replaced by the
// canonical one, and whether such a rewrite applies.
func (c *Client) fallbackURL(rawURL string) (string, bool) {
	if !c.cfg.DomainFallback {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	alt, ok := CanonicalHost(u.Host)
	if !ok {
		return "", false
	}
	u.Host = alt
	return u.String(), true
}

// CanonicalHost maps a legacy-domain host (optionally with port) to its
// canonical-domain equivalent. The second return is false when host does not
// use the legacy suffix.
func CanonicalHost(host string) (string, bool) {
	name, port := host, ""
	if h, p, err := net.SplitHostPort(host); err == nil {
		name, port = h, p
	}
	if !strings.HasSuffix(name, AltDomainSuffix) {
		return "", false
	}
	name = strings.TrimSuffix(name, AltDomainSuffix) + CanonicalDomainSuffix
	if port != "" {
		return net.JoinHostPort(name, port), true
	}
	return name, true
}

// isTransient reports whether err is worth retrying: connection resets,
// abrupt EOFs, TLS handshake anomalies, and timeouts. Everything else is
// treated as permanent and surfaced immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "handshake failure") ||
		strings.Contains(msg, "tls: ") ||
		strings.Contains(msg, "EOF")
}

// retryableStatus reports whether an HTTP status indicates a transient
// server-side condition.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// isConnectFailure reports whether err looks like the host never answered,
// which is the only situation where trying the alternate domain makes sense.
func isConnectFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "handshake failure")
}
