package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sercha-kb/internal/core/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serves uploads, URL ingestion, search and document listings as JSON
over HTTP. The server stops gracefully on SIGINT or SIGTERM. While it runs,
the index is reconciled against the metadata store every
schedule.reconcile_interval (0 disables it).

Examples:
  sercha-kb serve
  sercha-kb serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default http.addr from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureServices(ctx); err != nil {
		return err
	}

	cfg, err := activeConfig()
	if err != nil {
		return err
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}
	if addr == "" {
		addr = cfg.HTTP.Addr
	}

	server, err := httpapi.NewServer(httpapi.Ports{
		Ingest:   ingestService,
		Search:   searchService,
		Document: documentService,
	})
	if err != nil {
		return err
	}

	// Reconcile runs in the background while the server is up.
	scheduler := services.NewScheduler(documentService, cfg.Schedule.ReconcileInterval)
	go func() {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "scheduler stopped: %v\n", err)
		}
	}()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "scheduler stop error: %v\n", err)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "REST API listening on %s\n", addr)
	return server.Run(ctx, addr)
}
