package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/endpoint"
)

// apiV2 speaks the collections wire: "name" keys, scalar property types,
// per-collection object routes. Newer hosted deployments expose it; the
// shapes are close enough to v1 that both adapters share the in-memory
// [Class] form and convert at the edge.
type apiV2 struct {
	*rest
}

var _ API = (*apiV2)(nil)

// v2Property is the collections-wire property shape (scalar type).
type v2Property struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Tokenization string `json:"tokenization,omitempty"`
}

// v2Collection is the collections-wire schema shape.
type v2Collection struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Properties  []v2Property            `json:"properties"`
	Vectorizer  string                  `json:"vectorizer,omitempty"`
	Vectors     map[string]VectorConfig `json:"vectors,omitempty"`
}

// toV2 converts the common in-memory form to the collections wire.
func toV2(c *Class) *v2Collection {
	out := &v2Collection{
		Name:        c.Class,
		Description: c.Description,
		Vectorizer:  c.Vectorizer,
		Vectors:     c.VectorConfig,
	}
	for _, p := range c.Properties {
		out.Properties = append(out.Properties, v2Property{
			Name:         p.Name,
			Type:         p.Type(),
			Tokenization: p.Tokenization,
		})
	}
	return out
}

// fromV2 converts a collections-wire schema back to the common form.
func fromV2(c *v2Collection) *Class {
	out := &Class{
		Class:        c.Name,
		Description:  c.Description,
		Vectorizer:   c.Vectorizer,
		VectorConfig: c.Vectors,
	}
	for _, p := range c.Properties {
		out.Properties = append(out.Properties, Property{
			Name:         p.Name,
			DataType:     []string{p.Type},
			Tokenization: p.Tokenization,
		})
	}
	return out
}

func (a *apiV2) Version() string { return endpoint.VersionV2 }

func (a *apiV2) Ready(ctx context.Context) error {
	_, err := a.do(ctx, "GET", "/v2/meta", nil)
	return err
}

func (a *apiV2) ListSchema(ctx context.Context) ([]string, error) {
	body, err := a.do(ctx, "GET", "/v2/collections", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weaviate: decode collection listing: %w", err)
	}

	names := make([]string, 0, len(resp.Collections))
	for _, c := range resp.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (a *apiV2) GetSchema(ctx context.Context, class string) (*Class, error) {
	body, err := a.do(ctx, "GET", "/v2/collections/"+url.PathEscape(class), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var c v2Collection
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("weaviate: decode collection %s: %w", class, err)
	}
	return fromV2(&c), nil
}

func (a *apiV2) CreateSchema(ctx context.Context, c *Class) error {
	_, err := a.do(ctx, "POST", "/v2/collections", toV2(c))
	return err
}

func (a *apiV2) CreateSchemaAlternate(ctx context.Context, c *Class) error {
	_, err := a.do(ctx, "POST", "/v2/collections/create", toV2(c))
	return err
}

func (a *apiV2) UpsertSchema(ctx context.Context, c *Class) error {
	_, err := a.do(ctx, "PUT", "/v2/collections/"+url.PathEscape(c.Class), toV2(c))
	return err
}

func (a *apiV2) DeleteSchema(ctx context.Context, class string) error {
	_, err := a.do(ctx, "DELETE", "/v2/collections/"+url.PathEscape(class), nil)
	return err
}

// v2Object is the per-collection object payload; the collection travels in
// the path, not the body.
type v2Object struct {
	ID         string               `json:"id,omitempty"`
	Properties map[string]any       `json:"properties"`
	Vector     []float32            `json:"vector,omitempty"`
	Vectors    map[string][]float32 `json:"vectors,omitempty"`
}

func toV2Object(obj *Object) *v2Object {
	return &v2Object{
		ID:         obj.ID,
		Properties: obj.Properties,
		Vector:     obj.Vector,
		Vectors:    obj.Vectors,
	}
}

func (a *apiV2) InsertObject(ctx context.Context, obj *Object) error {
	path := "/v2/collections/" + url.PathEscape(obj.Class) + "/objects"
	_, err := a.do(ctx, "POST", path, toV2Object(obj))
	return err
}

func (a *apiV2) BatchInsert(ctx context.Context, objs []*Object) (*BatchResult, error) {
	if len(objs) == 0 {
		return &BatchResult{}, nil
	}

	payload := make([]*v2Object, 0, len(objs))
	for _, obj := range objs {
		payload = append(payload, toV2Object(obj))
	}

	path := "/v2/collections/" + url.PathEscape(objs[0].Class) + "/objects/batch"
	body, err := a.do(ctx, "POST", path, map[string]any{"objects": payload})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		} `json:"results"`
		Inserted *int `json:"inserted,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		if len(resp.Results) > 0 {
			res := &BatchResult{PerObject: true}
			for _, r := range resp.Results {
				if r.Status == "error" {
					msg := r.Error
					if msg == "" {
						msg = "object rejected without detail"
					}
					res.Failures = append(res.Failures, msg)
					continue
				}
				res.Inserted++
			}
			return res, nil
		}
		if resp.Inserted != nil {
			return &BatchResult{Inserted: *resp.Inserted}, nil
		}
	}

	// No per-object report available; count the accepted chunk whole.
	return &BatchResult{Inserted: len(objs)}, nil
}

func (a *apiV2) Count(ctx context.Context, class string) (int64, error) {
	body, err := a.do(ctx, "GET", "/v2/collections/"+url.PathEscape(class)+"/count", nil)
	if err == nil {
		var resp struct {
			Count int64 `json:"count"`
		}
		if jerr := json.Unmarshal(body, &resp); jerr == nil {
			return resp.Count, nil
		}
	}
	// Older gateways only answer over GraphQL.
	return a.aggregateCount(ctx, class)
}

func (a *apiV2) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	return a.search(ctx, q)
}
