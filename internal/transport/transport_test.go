package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// newTestClient builds a Client with a fast retry schedule for tests.
func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()

	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 2 * time.Millisecond
	}

	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func Test_Client_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(ts.Close)

	c := newTestClient(t, Config{MaxRetries: 4})

	resp, err := c.Get(context.Background(), ts.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3 (two 503s then success)", got)
	}
}

func Test_Client_NonRetryableStatusReturnsResponse(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"bad schema"}`))
	}))
	t.Cleanup(ts.Close)

	c := newTestClient(t, Config{MaxRetries: 4})

	resp, err := c.Do(context.Background(), http.MethodPost, ts.URL, []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want exactly 1 (4xx must not be retried)", got)
	}
}

func Test_Client_ExhaustedBudgetSurfacesLastError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)

	c := newTestClient(t, Config{MaxRetries: 2})

	_, err := c.Get(context.Background(), ts.URL, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("error %v should wrap ErrExhausted", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3 (first attempt + 2 retries)", got)
	}
}

func Test_Client_NegativeMaxRetriesDisablesRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	c := newTestClient(t, Config{MaxRetries: -1})

	_, err := c.Get(context.Background(), ts.URL, nil)
	if err == nil {
		t.Fatal("expected error from the single failing attempt")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want exactly 1 (retries disabled)", got)
	}
}

func Test_Config_MaxRetriesDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.ApplyDefaults()
	if cfg.MaxRetries != 3 {
		t.Errorf("unset MaxRetries defaulted to %d, want 3", cfg.MaxRetries)
	}

	disabled := Config{MaxRetries: -1}
	disabled.ApplyDefaults()
	if disabled.MaxRetries != -1 {
		t.Errorf("MaxRetries -1 became %d, want preserved", disabled.MaxRetries)
	}
	if err := disabled.Validate(); err != nil {
		t.Errorf("Validate(-1) = %v, want nil", err)
	}

	bad := Config{MaxRetries: -2}
	if err := bad.Validate(); err == nil {
		t.Error("Validate(-2) should fail")
	}
}

func Test_Client_HeaderMerge(t *testing.T) {
	t.Parallel()

	var gotAuth, gotTenant, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get("X-Tenant")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(ts.Close)

	c := newTestClient(t, Config{
		APIKey:       "secret-key",
		ExtraHeaders: map[string]string{"X-Tenant": "acme"},
	})

	_, err := c.Do(context.Background(), http.MethodGet, ts.URL, nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotTenant != "acme" {
		t.Errorf("X-Tenant = %q, want config header applied", gotTenant)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want per-call header applied", gotAccept)
	}
}

func Test_Client_ContextCancelStopsRetrying(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	c := newTestClient(t, Config{MaxRetries: 100, InitialBackoff: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Get(ctx, ts.URL, nil)
	if err == nil {
		t.Fatal("expected error when context expires mid-retry")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("retry loop ran %v after cancellation, want prompt stop", elapsed)
	}
}

func Test_Client_PromotionRewritesSubsequentURLs(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, Config{DomainFallback: true})

	c.promote("https://cluster.example.weaviate.network/v1/schema", "https://cluster.example.weaviate.cloud/v1/schema")

	got := c.applyOverride("https://cluster.example.weaviate.network/v1/objects")
	want := "https://cluster.example.weaviate.cloud/v1/objects"
	if got != want {
		t.Errorf("applyOverride = %q, want %q", got, want)
	}

	// Unrelated hosts stay untouched.
	other := "https://other.example.com/v1/objects"
	if got := c.applyOverride(other); got != other {
		t.Errorf("applyOverride rewrote unrelated host: %q", got)
	}
}

func Test_Client_FallbackURLRequiresToggle(t *testing.T) {
	t.Parallel()

	on := newTestClient(t, Config{DomainFallback: true})
	if _, ok := on.fallbackURL("https://c.x.weaviate.network/v1/.well-known/ready"); !ok {
		t.Error("fallbackURL should apply to legacy-domain hosts when enabled")
	}

	off := newTestClient(t, Config{DomainFallback: false})
	if _, ok := off.fallbackURL("https://c.x.weaviate.network/v1/.well-known/ready"); ok {
		t.Error("fallbackURL must be inert when the toggle is off")
	}
}

func TestCanonicalHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host string
		want string
		ok   bool
	}{
		{name: "legacy domain", host: "cluster.example.weaviate.network", want: "cluster.example.weaviate.cloud", ok: true},
		{name: "legacy domain with port", host: "cluster.weaviate.network:443", want: "cluster.weaviate.cloud:443", ok: true},
		{name: "already canonical", host: "cluster.weaviate.cloud", ok: false},
		{name: "self managed", host: "vectors.internal.corp:8080", ok: false},
		{name: "empty", host: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := CanonicalHost(tt.host)
			if ok != tt.ok {
				t.Fatalf("CanonicalHost(%q) ok = %v, want %v", tt.host, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("CanonicalHost(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func Test_IsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection reset", err: syscall.ECONNRESET, want: true},
		{name: "refused", err: syscall.ECONNREFUSED, want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "cancellation is not transient", err: context.Canceled, want: false},
		{name: "deadline is not transient", err: context.DeadlineExceeded, want: false},
		{name: "plain error", err: errors.New("schema mismatch"), want: false},
		{name: "tls anomaly by message", err: errors.New("remote error: tls: internal error"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
