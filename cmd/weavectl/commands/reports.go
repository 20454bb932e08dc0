package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
)

// NewReportsCmd constructs the `weavectl reports` command, which prints
// recent ingestion run reports from the local history ledger.
func NewReportsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show recent ingestion run reports",
		Long: `Show recent ingestion runs recorded in the local history ledger
(~/.weavectl/history.db), newest first.

Each line shows the collection, the attempted/processed/delta accounting, the
run duration, and how many warnings the run produced.

Examples:
  weavectl reports
  weavectl reports --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			l := openLedger(log)
			if l == nil {
				return fmt.Errorf("reports: history ledger is unavailable")
			}
			defer func() { _ = l.Close() }()

			entries, err := l.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("reports: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-24s attempted=%d processed=%d count=%s delta=%d duration=%s warnings=%d\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Collection, e.Attempted, e.Processed,
					formatCountRange(e.PreCount, e.PostCount), e.Delta,
					e.Duration.Round(time.Millisecond), len(e.Warnings),
				)
				for _, w := range e.Warnings {
					fmt.Printf("    warning: %s\n", w)
				}
				if e.Error != "" {
					fmt.Printf("    error: %s\n", e.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to show")

	return cmd
}
