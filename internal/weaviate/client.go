package weaviate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
)

// defaultCacheTTL bounds how long the collection-list cache is served
// without a reload. The cache intentionally lags the server between
// reloads; the reconciling facade treats REST as truth when they disagree.
const defaultCacheTTL = 30 * time.Second

// Client is the typed client: the convenient surface with the collection
// cache, built over one API adapter. Safe for concurrent use.
type Client struct {
	api API
	log *slog.Logger
	ttl time.Duration

	mu      sync.RWMutex
	classes []string
	fetched time.Time

	// handles caches per-collection handles; concurrent read and
	// insert-if-absent per the facade's sharing model.
	handles sync.Map
}

// NewClient builds a typed client over the selected adapter. A zero ttl
// uses the default cache lifetime.
func NewClient(api API, ttl time.Duration, log *slog.Logger) *Client {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		api: api,
		log: logging.WithComponent(log, "client"),
		ttl: ttl,
	}
}

// API exposes the adapter the client was built over.
func (c *Client) API() API { return c.api }

// Collections returns the cached collection list, reloading it when the
// cache has expired or was never filled. A failed reload serves the stale
// list rather than erroring; the caller's union listing covers the gap.
func (c *Client) Collections(ctx context.Context) []string {
	c.mu.RLock()
	fresh := !c.fetched.IsZero() && time.Since(c.fetched) < c.ttl
	cached := c.classes
	c.mu.RUnlock()

	if fresh {
		return cached
	}

	if err := c.Refresh(ctx); err != nil {
		c.log.Debug("client: cache reload failed, serving stale list",
			slog.Int("cached", len(cached)),
			slog.String("error", err.Error()),
		)
		return cached
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classes
}

// Refresh forces a reload of the collection-list cache.
func (c *Client) Refresh(ctx context.Context) error {
	names, err := c.api.ListSchema(ctx)
	if err != nil {
		return fmt.Errorf("weaviate: refresh collection cache: %w", err)
	}

	c.mu.Lock()
	c.classes = names
	c.fetched = time.Now()
	c.mu.Unlock()
	return nil
}

// Has reports whether the cached list contains class. It never touches the
// network once the cache is warm, so it can disagree with REST ground truth.
func (c *Client) Has(ctx context.Context, class string) bool {
	for _, name := range c.Collections(ctx) {
		if name == class {
			return true
		}
	}
	return false
}

// Create makes a collection through the adapter and refreshes the cache so
// the typed surface sees its own writes.
func (c *Client) Create(ctx context.Context, class *Class) error {
	if err := c.api.CreateSchema(ctx, class); err != nil {
		return err
	}
	if err := c.Refresh(ctx); err != nil {
		c.log.Debug("client: cache refresh after create failed", slog.String("error", err.Error()))
	}
	return nil
}

// Collection returns the handle for class, or [ErrNotFound] when the cached
// list cannot see it. Blindness here is the signal for REST-only fallback
// paths, not proof the collection is missing.
func (c *Client) Collection(ctx context.Context, class string) (*Collection, error) {
	if !c.Has(ctx, class) {
		return nil, fmt.Errorf("%w: collection %s not in client cache", ErrNotFound, class)
	}

	if h, ok := c.handles.Load(class); ok {
		return h.(*Collection), nil
	}
	h, _ := c.handles.LoadOrStore(class, &Collection{Name: class, api: c.api})
	return h.(*Collection), nil
}

// Forget drops the cached handle and cache entry for class after a delete.
func (c *Client) Forget(class string) {
	c.handles.Delete(class)

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.classes[:0]
	for _, name := range c.classes {
		if name != class {
			kept = append(kept, name)
		}
	}
	c.classes = kept
}

// Collection is a per-collection handle bound to one storage name.
type Collection struct {
	// Name is the sanitized storage name the handle operates on.
	Name string

	api API
}

// Schema fetches the collection's declared schema.
func (h *Collection) Schema(ctx context.Context) (*Class, error) {
	return h.api.GetSchema(ctx, h.Name)
}

// Exists checks the collection against the server, bypassing the cache.
func (h *Collection) Exists(ctx context.Context) bool {
	_, err := h.api.GetSchema(ctx, h.Name)
	return err == nil
}

// Count returns the number of stored objects.
func (h *Collection) Count(ctx context.Context) (int64, error) {
	return h.api.Count(ctx, h.Name)
}

// Insert stores one object in the collection.
func (h *Collection) Insert(ctx context.Context, obj *Object) error {
	obj.Class = h.Name
	return h.api.InsertObject(ctx, obj)
}

// BatchInsert stores a chunk of objects in the collection.
func (h *Collection) BatchInsert(ctx context.Context, objs []*Object) (*BatchResult, error) {
	for _, obj := range objs {
		obj.Class = h.Name
	}
	return h.api.BatchInsert(ctx, objs)
}

// Search runs one retrieval query scoped to the collection.
func (h *Collection) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	q.Class = h.Name
	return h.api.Search(ctx, q)
}
