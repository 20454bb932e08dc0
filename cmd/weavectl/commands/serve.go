package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/server"
)

// NewServeCmd constructs the `weavectl serve` command, which starts the HTTP
// server exposing search, ingestion, and collection management over REST.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the weavectl HTTP server",
		Long: `Start the weavectl HTTP server on localhost.

The server exposes the access layer over REST: POST /api/search,
POST /api/ingest, collection management under /api/collections, recent run
reports under /api/reports, plus health, readiness, and Prometheus metrics.
Set WEAVECTL_API_KEY to require Bearer authentication on the API routes.

Examples:
  weavectl serve
  weavectl serve --port 9090
  WEAVECTL_API_KEY=secret weavectl serve --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flags win over env; env (including YAML-layered values) wins
			// over the compiled-in defaults.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("SERVER_HOST"); v != "" {
					host = v
				}
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			log.Info("serve starting", slog.String("store", os.Getenv("WEAVIATE_URL")))

			store, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer store.Close()

			desc, err := store.Describe(ctx)
			if err != nil {
				return fmt.Errorf("serve: store discovery failed: %w", err)
			}
			log.Info("store discovered",
				slog.String("base_url", desc.BaseURL),
				slog.String("prefix", desc.Prefix),
				slog.String("version", desc.Version),
			)

			// Open the report ledger; the server degrades gracefully when
			// history is unavailable.
			var reportLedger server.Ledger
			pingers := []server.Pinger{server.NewStorePinger(store)}
			if l := openLedger(log); l != nil {
				reportLedger = l
				defer func() { _ = l.Close() }()
				pingers = append(pingers, server.NewLedgerPinger(l))
			}

			srv, err := server.New(store, reportLedger, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("WEAVECTL_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
