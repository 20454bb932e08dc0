package vecstore

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// ListCollections unions the typed client's cached list with both REST
// listings. Names only REST can see are logged as drift; REST is ground
// truth, the typed view is an optimization that sometimes lags.
func (s *Store) ListCollections(ctx context.Context) []string {
	typed := s.client.Collections(ctx)
	typedSet := make(map[string]struct{}, len(typed))
	for _, name := range typed {
		typedSet[name] = struct{}{}
	}

	union := make(map[string]struct{}, len(typed))
	for _, name := range typed {
		union[name] = struct{}{}
	}

	var drift []string
	addREST := func(names []string, err error) {
		if err != nil {
			s.log.Debug("rest listing unavailable", slog.String("error", err.Error()))
			return
		}
		for _, name := range names {
			if _, ok := union[name]; !ok {
				union[name] = struct{}{}
			}
			if _, ok := typedSet[name]; !ok {
				drift = append(drift, name)
			}
		}
	}

	if !s.cfg.DisableV2Probe {
		names, err := s.v2.ListSchema(ctx)
		addREST(names, err)
	}
	names, err := s.v1.ListSchema(ctx)
	addREST(names, err)

	if len(drift) > 0 {
		s.log.Warn("schema drift: collections visible over REST but absent from the typed client",
			slog.Any("collections", dedupeSorted(drift)),
		)
	}

	out := make([]string, 0, len(union))
	for name := range union {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RefreshSchema forces the typed client to reload its collection cache.
func (s *Store) RefreshSchema(ctx context.Context) error {
	return s.client.Refresh(ctx)
}

// WaitForVisibility runs a bounded refresh/recheck loop until the typed
// client can see the collection. A false return means the typed surface is
// still blind; callers fall back to REST-only operation.
func (s *Store) WaitForVisibility(ctx context.Context, name string, retries int, delay time.Duration) bool {
	storage := s.names.Register(name)

	for i := 0; i <= retries; i++ {
		if err := s.client.Refresh(ctx); err != nil {
			s.log.Debug("visibility refresh failed",
				slog.String("collection", name),
				slog.String("error", err.Error()),
			)
		}
		if s.client.Has(ctx, storage) {
			return true
		}
		if i == retries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
	return false
}

// dedupeSorted sorts names and drops duplicates, for stable drift logs.
func dedupeSorted(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	var prev string
	for i, name := range names {
		if i > 0 && name == prev {
			continue
		}
		out = append(out, name)
		prev = name
	}
	return out
}
