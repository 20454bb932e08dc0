package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/names"
)

// NewEnsureCmd constructs the `weavectl ensure` command, which makes a
// collection exist and usable, creating it if necessary.
func NewEnsureCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "ensure [collection]",
		Short: "Ensure a collection exists, creating it if necessary",
		Long: `Ensure that a collection exists and is usable on the connected store.

Collection names are sanitized to the store's class-name rules: spaces and
punctuation are dropped, the first letter is capitalized, and names starting
with a digit get a "C" prefix ("Board Minutes 2024" becomes "BoardMinutes2024").

Creation tries the richest surface first and degrades: typed client, then the
alternate REST wire format, then the classic one. A 405 on the standard
schema route triggers the curated alternate creation paths.

Examples:
  weavectl ensure "Board Minutes 2024"
  weavectl ensure ProjectDocs --wait 30s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ensure: %w", err)
			}
			defer store.Close()

			created, err := store.EnsureCollection(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ensure: %w", err)
			}

			storage := names.Sanitize(args[0])
			if created {
				fmt.Printf("created collection %s\n", storage)
			} else {
				fmt.Printf("collection %s already exists\n", storage)
			}

			if wait > 0 && !store.Ready(ctx, args[0], wait, 2*time.Second) {
				return fmt.Errorf("ensure: collection %s not visible within %s", storage, wait)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the collection to become visible (0 = don't wait)")

	return cmd
}
