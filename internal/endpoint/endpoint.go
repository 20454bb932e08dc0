// Package endpoint resolves where the vector store actually lives: the
// usable base URL, the path prefix the deployment mounts the API under, and
// the REST API version it speaks. Hosted clusters, self-managed instances,
// and reverse-proxied installs all disagree on these, so everything here is
// discovered empirically and cached until the configuration changes.
package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/transport"
)

// API versions the layer knows how to speak.
const (
	VersionV1 = "v1"
	VersionV2 = "v2"
)

// defaultPrefixes are the common mount points tried after configured hints.
var defaultPrefixes = []string{"", "/weaviate", "/api", "/vectordb", "/db"}

// altPathPatterns are rarer full mount patterns seen on proxied installs,
// tried only after every default prefix fails. Disable-able via config.
var altPathPatterns = []string{"/api/weaviate", "/proxy/weaviate", "/services/weaviate", "/vector"}

// cloudSuffixes are hosted-cluster domains that always require https.
var cloudSuffixes = []string{transport.CanonicalDomainSuffix, transport.AltDomainSuffix}

// clusterHostPattern matches hosted cluster hostnames on the legacy domain,
// the only shape the eager domain rewrite applies to.
var clusterHostPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*(\.[a-z0-9][a-z0-9-]*)*\.weaviate\.network$`)

// Descriptor is a resolved endpoint: everything needed to build request
// URLs. It is informational for callers and authoritative for the layer.
type Descriptor struct {
	// BaseURL is the normalized scheme://host[:port], no trailing slash.
	BaseURL string
	// Prefix is the discovered mount prefix ("" for root).
	Prefix string
	// Version is the REST API version to speak (VersionV1 or VersionV2).
	Version string
}

// URL joins the descriptor with a path ("/v1/schema" style).
func (d Descriptor) URL(path string) string {
	return d.BaseURL + d.Prefix + path
}

// ProbeResult records one discovery attempt for diagnostics.
type ProbeResult struct {
	// Target is the full URL probed.
	Target string
	// Status is the HTTP status received, 0 on network failure.
	Status int
	// OK reports whether the status counts as "endpoint exists".
	OK bool
	// Err holds the network failure message, empty on HTTP responses.
	Err string
}

// Config holds resolver settings.
type Config struct {
	// BaseURL is the caller-supplied connection string.
	BaseURL string
	// PrefixHints are prefixes to probe before the default list.
	PrefixHints []string
	// VersionOverride forces the API version, skipping detection.
	VersionOverride string
	// DomainRewrite enables the eager legacy→canonical domain rewrite.
	DomainRewrite bool
	// ProbeV2 enables v2 endpoints during discovery and detection.
	ProbeV2 bool
	// DisableAltPaths skips the curated alternate mount patterns.
	DisableAltPaths bool
	// ProbeTimeout bounds each individual probe request.
	ProbeTimeout time.Duration
	// Logger receives discovery decisions. Defaults to slog.Default.
	Logger *slog.Logger
}

// Resolver discovers and caches the endpoint topology for one
// configuration. Safe for concurrent use; rediscovery happens only when
// forced or when nothing is cached yet.
type Resolver struct {
	cfg Config
	tc  *transport.Client
	log *slog.Logger

	mu          sync.Mutex
	base        string
	prefix      string
	prefixKnown bool
	version     string
	lastProbes  []ProbeResult
}

// NewResolver builds a Resolver over the shared transport client.
func NewResolver(cfg Config, tc *transport.Client) *Resolver {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	return &Resolver{
		cfg: cfg,
		tc:  tc,
		log: logging.WithComponent(cfg.Logger, "endpoint"),
	}
}

// Resolve normalizes the base URL and returns the cached Descriptor,
// running prefix discovery and version detection on first use. Discovery
// failures are non-fatal: the descriptor falls back to the root prefix and
// v1, and errors surface later at actual use.
func (r *Resolver) Resolve(ctx context.Context) (Descriptor, error) {
	base, err := r.normalizedBase()
	if err != nil {
		return Descriptor{}, err
	}

	prefix, _ := r.DiscoverPrefix(ctx, false)
	version := r.DetectVersion(ctx, false)

	return Descriptor{BaseURL: base, Prefix: prefix, Version: version}, nil
}

// NormalizeBase exposes the normalized base URL without probing.
func (r *Resolver) NormalizeBase() (string, error) {
	return r.normalizedBase()
}

// DiscoverPrefix returns the working path prefix, probing for it on first
// call (or when force is true) and serving the cached value afterwards.
// When every candidate fails it returns "" and false, which still leaves
// the layer operational against root-mounted deployments.
func (r *Resolver) DiscoverPrefix(ctx context.Context, force bool) (string, bool) {
	r.mu.Lock()
	if r.prefixKnown && !force {
		p := r.prefix
		r.mu.Unlock()
		return p, true
	}
	r.mu.Unlock()

	base, err := r.normalizedBase()
	if err != nil {
		r.log.Warn("endpoint: prefix discovery skipped, base URL unusable", slog.String("error", err.Error()))
		return "", false
	}

	candidates := make([]string, 0, len(r.cfg.PrefixHints)+len(defaultPrefixes)+len(altPathPatterns))
	for _, h := range r.cfg.PrefixHints {
		candidates = append(candidates, normalizePrefix(h))
	}
	candidates = append(candidates, defaultPrefixes...)
	if !r.cfg.DisableAltPaths {
		candidates = append(candidates, altPathPatterns...)
	}

	var probes []ProbeResult
	for _, prefix := range dedupe(candidates) {
		found := false
		for _, path := range r.probePaths() {
			res := r.probe(ctx, base+prefix+path)
			probes = append(probes, res)
			if res.OK {
				found = true
				break
			}
		}
		if found {
			r.mu.Lock()
			r.prefix = prefix
			r.prefixKnown = true
			r.lastProbes = probes
			r.mu.Unlock()
			r.log.Info("endpoint: discovered path prefix",
				slog.String("base", base),
				slog.String("prefix", printablePrefix(prefix)),
			)
			return prefix, true
		}
	}

	r.mu.Lock()
	r.lastProbes = probes
	r.mu.Unlock()
	r.log.Warn("endpoint: no working path prefix found, assuming root", slog.String("base", base))
	return "", false
}

// DetectVersion returns the REST API version to use. The explicit override
// always wins; otherwise v2 endpoints are probed once (when enabled) and the
// result cached. Unknown deployments default to v1, which every server
// supports.
func (r *Resolver) DetectVersion(ctx context.Context, force bool) string {
	if v := strings.ToLower(strings.TrimSpace(r.cfg.VersionOverride)); v == VersionV1 || v == VersionV2 {
		return v
	}

	r.mu.Lock()
	if r.version != "" && !force {
		v := r.version
		r.mu.Unlock()
		return v
	}
	r.mu.Unlock()

	version := VersionV1
	if r.cfg.ProbeV2 {
		base, err := r.normalizedBase()
		if err == nil {
			prefix, _ := r.DiscoverPrefix(ctx, false)
			for _, path := range []string{"/v2/meta", "/v2/collections"} {
				if res := r.probe(ctx, base+prefix+path); res.OK {
					version = VersionV2
					break
				}
			}
		}
	}

	r.mu.Lock()
	r.version = version
	r.mu.Unlock()
	r.log.Debug("endpoint: detected API version", slog.String("version", version))
	return version
}

// LastProbes returns a copy of the probe outcomes from the most recent
// discovery pass, for the diagnostics command.
func (r *Resolver) LastProbes() []ProbeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProbeResult, len(r.lastProbes))
	copy(out, r.lastProbes)
	return out
}

// probePaths are the stable endpoints a live deployment answers on.
func (r *Resolver) probePaths() []string {
	paths := []string{"/v1/.well-known/ready", "/v1/schema"}
	if r.cfg.ProbeV2 {
		paths = append(paths, "/v2/collections")
	}
	return paths
}

// probe issues one bounded GET and classifies the outcome.
func (r *Resolver) probe(ctx context.Context, target string) ProbeResult {
	pctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	resp, err := r.tc.Get(pctx, target, nil)
	if err != nil {
		return ProbeResult{Target: target, Err: err.Error()}
	}
	return ProbeResult{Target: target, Status: resp.StatusCode, OK: probeSuccess(resp.StatusCode)}
}

// probeSuccess reports whether status means "this endpoint exists". Auth
// failures and method mismatches still prove the path is mounted; only
// not-found style responses rule a prefix out.
func probeSuccess(status int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	switch status {
	case 401, 403, 405:
		return true
	default:
		return false
	}
}

// normalizedBase applies scheme defaults, the https requirement for hosted
// domains, and the optional legacy-domain rewrite.
func (r *Resolver) normalizedBase() (string, error) {
	raw := strings.TrimSpace(r.cfg.BaseURL)
	if raw == "" {
		return "", fmt.Errorf("endpoint: base URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	raw = strings.TrimRight(raw, "/")

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("endpoint: parse base URL %q: %w", r.cfg.BaseURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint: base URL %q has no host", r.cfg.BaseURL)
	}

	if r.cfg.DomainRewrite && clusterHostPattern.MatchString(strings.ToLower(u.Hostname())) {
		if rewritten, ok := transport.CanonicalHost(u.Host); ok {
			r.log.Info("endpoint: rewrote legacy cluster domain",
				slog.String("from", u.Host),
				slog.String("to", rewritten),
			)
			u.Host = rewritten
		}
	}

	if isCloudHost(u.Hostname()) {
		u.Scheme = "https"
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// isCloudHost reports whether host belongs to a hosted-cluster domain.
func isCloudHost(host string) bool {
	for _, suffix := range cloudSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// normalizePrefix guarantees a leading slash and no trailing slash.
func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// dedupe drops repeated candidates while preserving order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// printablePrefix makes the root prefix visible in logs.
func printablePrefix(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
