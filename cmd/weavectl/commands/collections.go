package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/names"
)

// NewCollectionsCmd constructs the `weavectl collections` command group for
// listing and deleting collections.
func NewCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List and delete collections",
	}

	cmd.AddCommand(newCollectionsListCmd(), newCollectionsDeleteCmd())
	return cmd
}

func newCollectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections visible on any REST surface",
		Long: `List collections as the union of every reachable REST surface.

The deployment's two API versions can disagree about which collections exist;
the list merges both so nothing visible is hidden. A collection that only one
surface reports is still listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}
			defer store.Close()

			cols := store.ListCollections(ctx)
			if len(cols) == 0 {
				fmt.Println("no collections")
				return nil
			}
			for _, c := range cols {
				fmt.Println(c)
			}
			return nil
		},
	}
}

func newCollectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [collection]",
		Short: "Delete a collection from every REST surface",
		Long: `Delete a collection. The deletion is attempted on every REST surface so a
collection visible only to one API version still goes away. Deleting a
collection that does not exist is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}
			defer store.Close()

			deleted, err := store.DeleteCollection(ctx, args[0])
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}

			storage := names.Sanitize(args[0])
			if deleted {
				fmt.Printf("deleted collection %s\n", storage)
			} else {
				fmt.Printf("collection %s not found (nothing to delete)\n", storage)
			}
			return nil
		},
	}
}
