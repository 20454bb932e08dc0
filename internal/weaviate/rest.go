package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/endpoint"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/transport"
)

// rest executes one REST call against the resolved endpoint. Both API
// adapters and the GraphQL querier share it, so every request benefits from
// the same prefix discovery, retry budget, and domain fallback.
type rest struct {
	tc  *transport.Client
	res *endpoint.Resolver
	log *slog.Logger
}

// newREST builds the shared request executor.
func newREST(tc *transport.Client, res *endpoint.Resolver, log *slog.Logger) *rest {
	return &rest{
		tc:  tc,
		res: res,
		log: logging.WithComponent(log, "weaviate"),
	}
}

// do marshals payload, sends it to the resolved URL, and returns the raw
// body. Non-2xx statuses become an [*APIError] carrying the server's
// human-readable message.
func (r *rest) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	base, err := r.res.NormalizeBase()
	if err != nil {
		return nil, fmt.Errorf("weaviate: %w", err)
	}
	prefix, _ := r.res.DiscoverPrefix(ctx, false)

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("weaviate: encode %s %s: %w", method, path, err)
		}
	}

	resp, err := r.tc.Do(ctx, method, base+prefix+path, body, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return resp.Body, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return resp.Body, nil
}

// errorMessage extracts a readable message from an error body. The server
// uses several envelope shapes across versions, so all of them are tried
// before falling back to the raw body.
func errorMessage(body []byte) string {
	var listEnv struct {
		Error []struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &listEnv); err == nil && len(listEnv.Error) > 0 {
		msgs := make([]string, 0, len(listEnv.Error))
		for _, e := range listEnv.Error {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	var flatEnv struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flatEnv); err == nil {
		if flatEnv.Error != "" {
			return flatEnv.Error
		}
		if flatEnv.Message != "" {
			return flatEnv.Message
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
