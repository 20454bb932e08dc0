package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/endpoint"
)

// apiV1 speaks the classic schema/objects wire: "class" keys, dataType
// arrays, /v1/batch bulk inserts. This is the universally supported surface
// and the default when version detection finds nothing newer.
type apiV1 struct {
	*rest
}

var _ API = (*apiV1)(nil)

func (a *apiV1) Version() string { return endpoint.VersionV1 }

func (a *apiV1) Ready(ctx context.Context) error {
	_, err := a.do(ctx, "GET", "/v1/.well-known/ready", nil)
	return err
}

func (a *apiV1) ListSchema(ctx context.Context) ([]string, error) {
	body, err := a.do(ctx, "GET", "/v1/schema", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Classes []struct {
			Class string `json:"class"`
		} `json:"classes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weaviate: decode schema listing: %w", err)
	}

	names := make([]string, 0, len(resp.Classes))
	for _, c := range resp.Classes {
		names = append(names, c.Class)
	}
	return names, nil
}

func (a *apiV1) GetSchema(ctx context.Context, class string) (*Class, error) {
	body, err := a.do(ctx, "GET", "/v1/schema/"+url.PathEscape(class), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var c Class
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("weaviate: decode schema for %s: %w", class, err)
	}
	return &c, nil
}

func (a *apiV1) CreateSchema(ctx context.Context, c *Class) error {
	_, err := a.do(ctx, "POST", "/v1/schema", c)
	return err
}

func (a *apiV1) CreateSchemaAlternate(ctx context.Context, c *Class) error {
	_, err := a.do(ctx, "POST", "/v1/schema/"+url.PathEscape(c.Class), c)
	return err
}

func (a *apiV1) UpsertSchema(ctx context.Context, c *Class) error {
	_, err := a.do(ctx, "PUT", "/v1/schema/"+url.PathEscape(c.Class), c)
	return err
}

func (a *apiV1) DeleteSchema(ctx context.Context, class string) error {
	_, err := a.do(ctx, "DELETE", "/v1/schema/"+url.PathEscape(class), nil)
	return err
}

func (a *apiV1) InsertObject(ctx context.Context, obj *Object) error {
	_, err := a.do(ctx, "POST", "/v1/objects", obj)
	return err
}

// v1BatchItem is one entry of the /v1/batch/objects response.
type v1BatchItem struct {
	Result struct {
		Status string `json:"status"`
		Errors struct {
			Error []struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"errors"`
	} `json:"result"`
}

func (a *apiV1) BatchInsert(ctx context.Context, objs []*Object) (*BatchResult, error) {
	body, err := a.do(ctx, "POST", "/v1/batch/objects", map[string]any{"objects": objs})
	if err != nil {
		return nil, err
	}

	var items []v1BatchItem
	if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
		// Some gateways strip the per-object report. Count the whole chunk
		// as accepted; the post-insert count check catches any loss.
		return &BatchResult{Inserted: len(objs)}, nil
	}

	res := &BatchResult{PerObject: true}
	for _, item := range items {
		if item.Result.Status == "FAILED" {
			for _, e := range item.Result.Errors.Error {
				res.Failures = append(res.Failures, e.Message)
			}
			if len(item.Result.Errors.Error) == 0 {
				res.Failures = append(res.Failures, "object rejected without detail")
			}
			continue
		}
		res.Inserted++
	}
	return res, nil
}

func (a *apiV1) Count(ctx context.Context, class string) (int64, error) {
	return a.aggregateCount(ctx, class)
}

func (a *apiV1) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	return a.search(ctx, q)
}
