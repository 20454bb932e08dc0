package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
)

// NewSearchCmd constructs the `weavectl search` command, which queries a
// collection with tiered retrieval fallback.
func NewSearchCmd() *cobra.Command {
	var limit int
	var alpha float32
	var filterPairs []string

	cmd := &cobra.Command{
		Use:   "search [collection] [query]",
		Short: "Search a collection with tiered retrieval fallback",
		Long: `Search a collection. Retrieval starts with hybrid search and degrades on
rejection: pure vector or keyword-boosted next, then plain keyword matching,
then raw REST queries when the typed surface cannot see the collection.
An empty result is an answer, not an error.

Filters are equality matches on stored properties. When the deployment's
GraphQL rejects server-side filtering, the filter is applied client-side over
an unfiltered result set.

Examples:
  weavectl search ProjectDocs "deployment checklist"
  weavectl search "Board Minutes 2024" "budget approval" --limit 5
  weavectl search ProjectDocs "rollout plan" --alpha 0 --filter source_type=markdown`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			filters, err := parseFilters(filterPairs)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer store.Close()

			opts := vecstore.SearchOptions{Limit: limit, Filters: filters}

			var results []vecstore.SearchResult
			if cmd.Flags().Changed("alpha") {
				results, err = store.HybridSearch(ctx, args[0], args[1], alpha, opts)
			} else {
				results, err = store.Search(ctx, args[0], args[1], opts)
			}
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. [%.3f] %s\n", i+1, r.Score, r.Source)
				if r.Page > 0 {
					fmt.Printf("   page %d", r.Page)
					if r.Section != "" {
						fmt.Printf(", %s", r.Section)
					}
					fmt.Println()
				} else if r.Section != "" {
					fmt.Printf("   %s\n", r.Section)
				}
				fmt.Printf("   %s\n", snippet(r.Content, 200))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of results (0 = configured default)")
	cmd.Flags().Float32VarP(&alpha, "alpha", "a", 0.5, "Hybrid blend: 0 pure keyword, 1 pure vector")
	cmd.Flags().StringArrayVar(&filterPairs, "filter", nil, "Equality filter as key=value (repeatable)")

	return cmd
}

// snippet truncates content to at most n runes on a single line.
func snippet(s string, n int) string {
	out := make([]rune, 0, n)
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
		if len(out) >= n {
			return string(out) + "..."
		}
	}
	return string(out)
}
