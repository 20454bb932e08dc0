package endpoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/transport"
)

// newTestResolver wires a resolver to url with fast probe settings.
func newTestResolver(t *testing.T, url string, mutate func(*Config)) *Resolver {
	t.Helper()

	tc, err := transport.NewClient(transport.Config{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("transport.NewClient: %v", err)
	}
	t.Cleanup(tc.Close)

	cfg := Config{BaseURL: url, ProbeTimeout: 2 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewResolver(cfg, tc)
}

func Test_Resolver_DiscoverPrefix_RootMount(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)

	r := newTestResolver(t, ts.URL, nil)

	prefix, ok := r.DiscoverPrefix(context.Background(), false)
	if !ok || prefix != "" {
		t.Fatalf("DiscoverPrefix = (%q, %v), want root prefix found", prefix, ok)
	}
	if probes.Load() == 0 {
		t.Fatal("expected at least one probe request")
	}

	// Cached: even with the server gone, the answer must not change and no
	// re-probing may happen.
	ts.Close()
	prefix, ok = r.DiscoverPrefix(context.Background(), false)
	if !ok || prefix != "" {
		t.Errorf("cached DiscoverPrefix = (%q, %v), want cached root prefix", prefix, ok)
	}
}

func Test_Resolver_DiscoverPrefix_PrefixedMount(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	// Only the /weaviate mount exists; auth is required, which still proves
	// the endpoint is there.
	mux.HandleFunc("/weaviate/v1/schema", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	r := newTestResolver(t, ts.URL, nil)

	prefix, ok := r.DiscoverPrefix(context.Background(), false)
	if !ok || prefix != "/weaviate" {
		t.Errorf("DiscoverPrefix = (%q, %v), want /weaviate via 401", prefix, ok)
	}
}

func Test_Resolver_DiscoverPrefix_MethodNotAllowedCounts(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	r := newTestResolver(t, ts.URL, nil)

	prefix, ok := r.DiscoverPrefix(context.Background(), false)
	if !ok || prefix != "/api" {
		t.Errorf("DiscoverPrefix = (%q, %v), want /api via 405", prefix, ok)
	}
}

func Test_Resolver_DiscoverPrefix_HintsProbedFirst(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/custom/v1/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	r := newTestResolver(t, ts.URL, func(c *Config) {
		c.PrefixHints = []string{"custom"} // no leading slash on purpose
	})

	prefix, ok := r.DiscoverPrefix(context.Background(), false)
	if !ok || prefix != "/custom" {
		t.Errorf("DiscoverPrefix = (%q, %v), want configured hint to win", prefix, ok)
	}
}

func Test_Resolver_DiscoverPrefix_NothingFound(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)

	r := newTestResolver(t, ts.URL, func(c *Config) {
		c.DisableAltPaths = true
	})

	prefix, ok := r.DiscoverPrefix(context.Background(), false)
	if ok || prefix != "" {
		t.Errorf("DiscoverPrefix = (%q, %v), want root fallback with ok=false", prefix, ok)
	}
	if len(r.LastProbes()) == 0 {
		t.Error("LastProbes should record the failed discovery pass")
	}
}

func Test_Resolver_DetectVersion(t *testing.T) {
	t.Parallel()

	t.Run("override wins without probing", func(t *testing.T) {
		t.Parallel()
		r := newTestResolver(t, "https://example.invalid", func(c *Config) {
			c.VersionOverride = "V2"
			c.ProbeV2 = true
		})
		if v := r.DetectVersion(context.Background(), false); v != VersionV2 {
			t.Errorf("DetectVersion = %q, want override v2", v)
		}
	})

	t.Run("v2 endpoints present", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("/v2/meta", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		ts := httptest.NewServer(mux)
		t.Cleanup(ts.Close)

		r := newTestResolver(t, ts.URL, func(c *Config) { c.ProbeV2 = true })
		if v := r.DetectVersion(context.Background(), false); v != VersionV2 {
			t.Errorf("DetectVersion = %q, want v2", v)
		}
	})

	t.Run("v1 only deployment", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		ts := httptest.NewServer(mux)
		t.Cleanup(ts.Close)

		r := newTestResolver(t, ts.URL, func(c *Config) { c.ProbeV2 = true })
		if v := r.DetectVersion(context.Background(), false); v != VersionV1 {
			t.Errorf("DetectVersion = %q, want v1 default", v)
		}
	})

	t.Run("v2 probing disabled", func(t *testing.T) {
		t.Parallel()
		r := newTestResolver(t, "https://example.invalid", nil)
		if v := r.DetectVersion(context.Background(), false); v != VersionV1 {
			t.Errorf("DetectVersion = %q, want v1 when probing disabled", v)
		}
	})
}

func Test_Resolver_NormalizedBase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		rewrite bool
		want    string
		wantErr bool
	}{
		{
			name:    "legacy cluster domain rewritten",
			base:    "https://cluster.example.weaviate.network",
			rewrite: true,
			want:    "https://cluster.example.weaviate.cloud",
		},
		{
			name:    "rewrite disabled keeps legacy domain",
			base:    "https://cluster.example.weaviate.network",
			rewrite: false,
			want:    "https://cluster.example.weaviate.network",
		},
		{
			name:    "cloud domain forces https",
			base:    "http://cluster.example.weaviate.cloud",
			rewrite: true,
			want:    "https://cluster.example.weaviate.cloud",
		},
		{
			name: "missing scheme defaults to https",
			base: "vectors.internal.corp:8443",
			want: "https://vectors.internal.corp:8443",
		},
		{
			name: "self managed http preserved",
			base: "http://localhost:8080",
			want: "http://localhost:8080",
		},
		{
			name: "trailing slash trimmed",
			base: "http://localhost:8080/",
			want: "http://localhost:8080",
		},
		{
			name:    "empty",
			base:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewResolver(Config{BaseURL: tt.base, DomainRewrite: tt.rewrite}, nil)
			got, err := r.NormalizeBase()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeBase(%q) succeeded, want error", tt.base)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeBase(%q): %v", tt.base, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeBase(%q) = %q, want %q", tt.base, got, tt.want)
			}
		})
	}
}
