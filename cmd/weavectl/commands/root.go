// Package commands defines all Cobra CLI commands for the weavectl binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/audit"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/config"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "weavectl",
		Short: "weavectl — resilient CLI for Weaviate-compatible document stores",
		Long: `weavectl is a command-line access layer for Weaviate-compatible vector stores.

It discovers how a deployment is actually mounted (path prefix, REST API
version), creates and fills document collections with honest partial-failure
accounting, and searches them with tiered retrieval fallback — hybrid first,
then pure vector or keyword when the deployment rejects richer queries.

Connection settings come from environment variables (WEAVIATE_URL,
WEAVIATE_API_KEY) or a YAML config file (~/.weavectl/config.yaml).
See 'weavectl --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env if present; real env always wins.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.weavectl/config.yaml)")

	root.AddCommand(
		NewEnsureCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewCollectionsCmd(),
		NewProbeCmd(),
		NewReportsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
