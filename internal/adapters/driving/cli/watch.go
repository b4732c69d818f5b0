package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/watcher"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest PDFs as they are added to a directory",
	Long: `Watches a directory and ingests every PDF created or rewritten in it
once its writes have settled. Existing files are not ingested; use
'sercha-kb ingest pdf' for those.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watcher.DefaultSettle, "quiet period after the last write")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureServices(ctx); err != nil {
		return err
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	w := watcher.New(dir, func(_ context.Context, path string) error {
		doc, err := ingestFile(cmd, path)
		switch {
		case doc != nil && doc.Status == domain.StatusCompleted:
			cmd.Printf("  ok      [%d] %s (%d chunks)\n", doc.ID, path, doc.ChunksCount)
		case doc != nil:
			cmd.Printf("  failed  [%d] %s: %s\n", doc.ID, path, doc.StatusError)
		default:
			cmd.Printf("  error   %s: %v\n", path, err)
		}
		return err
	}, watcher.WithSettle(watchSettle))

	return w.Run(ctx)
}
