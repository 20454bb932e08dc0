package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/embedder"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/ledger"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vectorizer"
)

// NewIngestCmd constructs the `weavectl ingest` command, which loads
// documents into a collection in budgeted batches and reports an honest
// per-run accounting.
func NewIngestCmd() *cobra.Command {
	var collection string
	var files []string
	var embed bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into a collection",
		Long: `Load documents into a collection from JSONL files or stdin.

Each input line is one JSON document:
  {"content": "...", "source": "minutes/2024-03.md", "metadata": {"year": "2024"}}

The target collection is created when missing. Ingestion is batched by object
count and payload size, and every run ends with a full accounting: documents
attempted, objects the store accepted, and the observed object-count delta.
Rejected objects are warnings, not errors — the run continues and the report
says exactly what went in.

For deployments without a server-side vectorizer, --embed fills missing
document vectors locally with the configured embedding backend (EMBEDDING_*
environment variables) before submission. Documents that already carry a
vector are left alone.

Examples:
  weavectl ingest --collection "Board Minutes 2024" --file minutes.jsonl
  cat docs.jsonl | weavectl ingest --collection ProjectDocs
  weavectl ingest -c ProjectDocs -f a.jsonl -f b.jsonl --embed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if collection == "" {
				return fmt.Errorf("ingest: --collection is required")
			}

			docs, err := readDocuments(files)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(docs) == 0 {
				return fmt.Errorf("ingest: no documents to ingest (provide --file or pipe JSONL via stdin)")
			}

			if embed {
				if err := embedDocuments(ctx, docs, log); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			} else if getEnvBool("SEARCH_CLIENT_VECTORS", false) {
				if err := embedder.ValidateClientVectors(log); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			log.Info("starting ingestion",
				slog.String("collection", collection),
				slog.Int("documents", len(docs)),
			)

			report, insertErr := store.Insert(ctx, collection, docs)

			if report != nil {
				printReport(report)
				if l := openLedger(log); l != nil {
					entry := ledger.Entry{
						Collection: report.Collection,
						Attempted:  report.Attempted,
						Processed:  report.Processed,
						PreCount:   report.PreCount,
						PostCount:  report.PostCount,
						Delta:      report.InsertedDelta,
						Duration:   report.Duration,
						Warnings:   report.Warnings,
						Error:      report.Error,
					}
					if err := l.Record(ctx, entry); err != nil {
						log.Warn("history: failed to record report", slog.Any("error", err))
					}
					_ = l.Close()
				}
			}

			if insertErr != nil {
				return fmt.Errorf("ingest: %w", insertErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Target collection name (required)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "JSONL file of documents (repeatable; stdin when omitted)")
	cmd.Flags().BoolVar(&embed, "embed", false, "Fill missing document vectors with the configured embedding backend")

	return cmd
}

// embedDocuments fills missing vectors in place using the configured
// embedding backend. Unlike search-time encoding, a failure here is an
// error: the caller explicitly asked for local vectors.
func embedDocuments(ctx context.Context, docs []vecstore.Document, log *slog.Logger) error {
	if err := embedder.ValidateClientVectors(log); err != nil {
		return err
	}

	var missing []int
	var texts []string
	for i := range docs {
		if len(docs[i].Vector) == 0 && len(docs[i].Vectors) == 0 {
			missing = append(missing, i)
			texts = append(texts, docs[i].Content)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	enc := vectorizer.NewEncoder(nil, log)
	vecs := enc.EncodeBatch(ctx, texts, os.Getenv("EMBEDDING_MODEL"))
	if len(vecs) != len(missing) {
		return fmt.Errorf("embedding failed for %d documents (check EMBEDDING_* settings)", len(missing))
	}
	for n, i := range missing {
		docs[i].Vector = vecs[n]
	}

	log.Info("documents embedded locally", slog.Int("count", len(missing)))
	return nil
}

// readDocuments reads JSONL documents from the given files, or from stdin
// when no files are named and stdin is piped.
func readDocuments(files []string) ([]vecstore.Document, error) {
	var docs []vecstore.Document

	if len(files) == 0 {
		stat, err := os.Stdin.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat stdin: %w", err)
		}
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			parsed, err := parseJSONL(os.Stdin, "stdin")
			if err != nil {
				return nil, err
			}
			docs = parsed
		}
		return docs, nil
	}

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %q: %w", path, err)
		}
		parsed, err := parseJSONL(f, path)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

// parseJSONL decodes one document per non-empty line. A malformed line fails
// the whole read; partial-failure accounting belongs to the store, not the
// file parser.
func parseJSONL(r io.Reader, name string) ([]vecstore.Document, error) {
	var docs []vecstore.Document
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc vecstore.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		if doc.Content == "" {
			return nil, fmt.Errorf("%s line %d: document has no content", name, line)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return docs, nil
}
