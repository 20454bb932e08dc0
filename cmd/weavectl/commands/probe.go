package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
)

// NewProbeCmd constructs the `weavectl probe` command, which runs endpoint
// discovery against the configured store and prints what it found.
func NewProbeCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Discover how the configured store is mounted",
		Long: `Probe the configured store and report the discovered mount: base URL, path
prefix, and REST API version.

Discovery walks candidate prefixes (hints first, then the standard list)
against known probe paths, treating auth and method errors as proof that an
endpoint is mounted. Use --verbose to see every probe attempt — useful when a
deployment sits behind an unusual reverse-proxy mount.

Examples:
  WEAVIATE_URL=https://vectors.example.com weavectl probe
  weavectl probe --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}
			defer store.Close()

			desc, err := store.Describe(ctx)
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}

			fmt.Printf("base url:    %s\n", desc.BaseURL)
			if desc.Prefix == "" {
				fmt.Println("prefix:      (root)")
			} else {
				fmt.Printf("prefix:      %s\n", desc.Prefix)
			}
			fmt.Printf("api version: %s\n", desc.Version)
			fmt.Printf("schema url:  %s\n", desc.URL("/v1/schema"))

			if verbose {
				fmt.Println()
				for _, p := range store.Probes() {
					mark := "miss"
					if p.OK {
						mark = "ok"
					}
					if p.Err != "" {
						fmt.Printf("%-4s %s (%s)\n", mark, p.Target, p.Err)
					} else {
						fmt.Printf("%-4s %s (%d)\n", mark, p.Target, p.Status)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every discovery probe attempt")

	return cmd
}
