package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect the vector collection",
}

var collectionInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show collection size and the active embedding model",
	Args:  cobra.NoArgs,
	RunE:  runCollectionInfo,
}

var collectionVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare recorded chunk counts with indexed points",
	Long: `Checks every completed document and reports those whose recorded
chunk count differs from the number of points in the collection.
Nothing is repaired; re-ingest reported documents to fix them.`,
	Args: cobra.NoArgs,
	RunE: runCollectionVerify,
}

func init() {
	collectionCmd.AddCommand(collectionInfoCmd)
	collectionCmd.AddCommand(collectionVerifyCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionInfo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	info, err := documentService.IndexInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collection info: %w", err)
	}
	stats, err := documentService.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read document stats: %w", err)
	}

	cmd.Printf("Model:       %s\n", info.Model)
	cmd.Printf("Dimensions:  %d\n", info.Dimensions)
	cmd.Printf("Points:      %d\n", info.Points)
	cmd.Printf("Documents:   %d (%d completed, %d failed, %d pending)\n",
		stats.Total, stats.Completed, stats.Failed, stats.Pending)
	cmd.Printf("Chunks:      %d\n", stats.Chunks)
	if info.CollectionDimension > 0 && info.CollectionDimension != info.Dimensions {
		cmd.Printf("Warning: collection vectors have %d dimensions but the model produces %d\n",
			info.CollectionDimension, info.Dimensions)
	}
	return nil
}

func runCollectionVerify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	report, err := documentService.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	for _, m := range report.Mismatches {
		cmd.Printf("  document %d: %d chunks recorded, %d points indexed\n", m.DocumentID, m.ChunksCount, m.IndexPoints)
	}
	cmd.Printf("Checked %d documents, %d mismatched\n", report.Checked, len(report.Mismatches))
	if len(report.Mismatches) > 0 {
		return fmt.Errorf("%d documents are out of sync with the index", len(report.Mismatches))
	}
	return nil
}
