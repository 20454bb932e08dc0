package vecstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/budget"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/weaviate"
)

// objectNamespace seeds deterministic v5 object IDs. The same source and
// position always map to the same ID, so re-ingesting a batch upserts
// instead of duplicating.
var objectNamespace = uuid.MustParse("8c9a4f52-0e3d-4a87-b1c6-5f2d9e7a1b34")

// postCountRetries is how often the post-insert count is re-read while the
// server settles; visibility is eventually consistent after bulk writes.
const postCountRetries = 3

// postCountDelay separates post-insert count retries.
const postCountDelay = 500 * time.Millisecond

// Insert batch-ingests documents into the named collection and reports
// exactly what happened: objects attempted, accepted, and the observed
// count delta. Partial failure is recorded in the report's warnings; only
// total unreachability returns an error.
func (s *Store) Insert(ctx context.Context, name string, docs []Document) (*IngestionReport, error) {
	storage := s.names.Register(name)
	report := &IngestionReport{
		Collection: name,
		Attempted:  len(docs),
		PreCount:   -1,
		PostCount:  -1,
	}
	tracker := budget.NewTracker(s.cfg.MaxIngestDuration)
	defer func() { report.Duration = tracker.Elapsed() }()

	if len(docs) == 0 {
		return report, nil
	}

	if ok, err := s.EnsureCollection(ctx, name); !ok {
		// The typed chain failed outright; REST ground truth decides
		// whether a REST-only path can still serve the call.
		if !s.restVisible(ctx, storage) {
			report.Error = fmt.Sprintf("collection %s unusable: %v", name, err)
			return report, fmt.Errorf("vecstore: insert into %q: %w", name, err)
		}
		report.warn("typed surfaces unusable, using REST-only insertion")
	}

	// The typed handle may be blind right after creation; a bounded
	// visibility wait keeps the batching path available when possible.
	handle, herr := s.client.Collection(ctx, storage)
	if herr != nil {
		if s.WaitForVisibility(ctx, name, 2, 300*time.Millisecond) {
			handle, herr = s.client.Collection(ctx, storage)
		}
	}
	if herr != nil {
		if !s.restVisible(ctx, storage) {
			report.Error = fmt.Sprintf("collection %s not visible on any surface", name)
			return report, fmt.Errorf("vecstore: insert into %q: no surface can see the collection", name)
		}
		s.log.Info("typed client blind, inserting over REST",
			slog.String("collection", name),
		)
	}

	cls := s.schema(ctx, storage)
	report.PreCount = s.count(ctx, storage)

	objs, sizes := s.transform(docs, storage, cls)

	submitted := 0
	for _, chunk := range budget.Chunks(sizes, s.cfg.BatchSize, s.cfg.MaxBatchBytes) {
		if tracker.Exceeded() {
			report.warn(fmt.Sprintf("aborted after %s: submitted %d of %d objects",
				tracker.Elapsed().Round(time.Second), submitted, len(objs)))
			break
		}

		batch := objs[chunk.Start:chunk.End]
		var res *weaviate.BatchResult
		var err error
		if handle != nil {
			res, err = handle.BatchInsert(ctx, batch)
		} else {
			res, err = s.api.BatchInsert(ctx, batch)
			if err != nil {
				if o, ok := s.secondary(); ok {
					res, err = o.BatchInsert(ctx, batch)
				}
			}
		}
		if err != nil {
			report.warn(fmt.Sprintf("chunk of %d failed: %v", len(batch), err))
			submitted += len(batch)
			continue
		}

		report.Processed += res.Inserted
		for _, failure := range res.Failures {
			report.warn("object rejected: " + failure)
		}

		submitted += len(batch)
		if s.cfg.ProgressEvery > 0 && submitted/s.cfg.ProgressEvery > (submitted-len(batch))/s.cfg.ProgressEvery {
			s.log.Info("ingestion progress",
				slog.String("collection", name),
				slog.Int("submitted", submitted),
				slog.Int("total", len(objs)),
			)
		}
	}

	if report.Processed == 0 && len(report.Warnings) > 0 && submitted > 0 {
		report.Error = "no objects were accepted: " + report.Warnings[len(report.Warnings)-1]
		return report, fmt.Errorf("vecstore: insert into %q: %s", name, report.Error)
	}

	report.PostCount = s.settledCount(ctx, storage, report.PreCount, report.Processed)
	if report.PreCount >= 0 && report.PostCount >= 0 {
		delta := int(report.PostCount - report.PreCount)
		if delta < 0 {
			delta = 0
		}
		report.InsertedDelta = delta
	} else {
		report.InsertedDelta = report.Processed
	}

	if report.InsertedDelta < report.Attempted {
		report.warn(fmt.Sprintf("inserted delta %d is below the %d attempted",
			report.InsertedDelta, report.Attempted))
	}

	s.log.Info("ingestion finished",
		slog.String("collection", name),
		slog.Int("attempted", report.Attempted),
		slog.Int("processed", report.Processed),
		slog.Int("delta", report.InsertedDelta),
		slog.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

// transform turns Document Records into schema-filtered storage objects,
// returning the objects and their estimated sizes for chunk planning.
func (s *Store) transform(docs []Document, storage string, cls *weaviate.Class) ([]*weaviate.Object, []int) {
	now := time.Now().UTC().Format(time.RFC3339)

	objs := make([]*weaviate.Object, 0, len(docs))
	sizes := make([]int, 0, len(docs))
	for i, doc := range docs {
		props := map[string]any{
			s.cfg.ContentProperty: doc.Content,
			"source":              doc.Source,
			"source_type":         doc.SourceType,
			"created_at":          now,
		}
		if props["source_type"] == "" {
			props["source_type"] = inferSourceType(doc.Source)
		}
		if s.cfg.IncludeMetadata {
			for k, v := range doc.Metadata {
				if _, reserved := props[k]; !reserved {
					props[k] = v
				}
			}
		}

		// Unknown properties are dropped, not rejected.
		for k := range props {
			if _, declared := cls.Property(k); !declared {
				delete(props, k)
			}
		}

		obj := &weaviate.Object{
			ID:         uuid.NewSHA1(objectNamespace, fmt.Appendf(nil, "%s/%s/%d", storage, doc.Source, i)).String(),
			Class:      storage,
			Properties: props,
		}

		vectorElems := 0
		for slot, vec := range doc.Vectors {
			if cls.NamedVector(slot) {
				if obj.Vectors == nil {
					obj.Vectors = make(map[string][]float32, len(doc.Vectors))
				}
				obj.Vectors[slot] = vec
				vectorElems += len(vec)
			}
		}
		if len(doc.Vector) > 0 && obj.Vectors == nil {
			// A single default vector lands on the named slot only when the
			// schema declares one.
			if cls.NamedVector(s.cfg.ContentProperty) {
				obj.Vectors = map[string][]float32{s.cfg.ContentProperty: doc.Vector}
			} else {
				obj.Vector = doc.Vector
			}
			vectorElems += len(doc.Vector)
		}

		objs = append(objs, obj)
		sizes = append(sizes, budget.ObjectBytes(len(doc.Content), vectorElems))
	}
	return objs, sizes
}

// settledCount re-reads the post-insert count a few times, giving the
// server a moment to make the batch visible before the delta is computed.
func (s *Store) settledCount(ctx context.Context, storage string, pre int64, processed int) int64 {
	post := s.count(ctx, storage)
	for i := 0; i < postCountRetries; i++ {
		if post < 0 || pre < 0 || post >= pre+int64(processed) {
			break
		}
		select {
		case <-ctx.Done():
			return post
		case <-time.After(postCountDelay):
		}
		post = s.count(ctx, storage)
	}
	return post
}

// inferSourceType classifies a source string when the caller left the type
// empty. Explicit caller values always win over inference.
func inferSourceType(source string) string {
	if source == "" {
		return "text"
	}

	lower := strings.ToLower(source)
	name := lower
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		name = strings.ToLower(u.Path)
	}

	switch path.Ext(name) {
	case ".pdf":
		return "pdf"
	case ".html", ".htm":
		return "html"
	case ".md", ".markdown":
		return "markdown"
	case ".txt":
		return "text"
	}

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return "web"
	}
	return "file"
}
