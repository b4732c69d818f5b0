package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List, view, reingest, or open ingested documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentReingestCmd = &cobra.Command{
	Use:   "reingest [doc-id]",
	Short: "Run the indexing pipeline again for a document",
	Long: `Re-extracts, re-chunks and re-embeds a completed or failed document.
Web pages are fetched again; profile pages need fresh cookies.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentReingest,
}

var documentOpenCmd = &cobra.Command{
	Use:   "open [doc-id]",
	Short: "Open the stored PDF in the default application",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentOpen,
}

var (
	documentStatus string
	documentLimit  int
	documentOffset int
	openSource     bool
)

func init() {
	documentListCmd.Flags().StringVarP(&documentStatus, "status", "s", "", "only documents in this status (pending, completed, failed)")
	documentListCmd.Flags().IntVarP(&documentLimit, "limit", "n", 50, "maximum number of documents")
	documentListCmd.Flags().IntVar(&documentOffset, "offset", 0, "documents to skip")
	addCookieFlags(documentReingestCmd)
	documentOpenCmd.Flags().BoolVar(&openSource, "source", false, "open the source URL instead of the stored PDF")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentReingestCmd)
	documentCmd.AddCommand(documentOpenCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	opts := domain.ListOptions{Limit: documentLimit, Offset: documentOffset}
	if documentStatus != "" {
		status, err := domain.ParseStatus(documentStatus)
		if err != nil {
			return err
		}
		opts.Status = status
	}

	docs, err := documentService.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		d := &docs[i]
		cmd.Printf("  [%d] %s\n", d.ID, d.OriginalFilename)
		cmd.Printf("      Status: %s", d.Status)
		if d.Status == domain.StatusCompleted {
			cmd.Printf(" (%d chunks)", d.ChunksCount)
		}
		cmd.Println()
		if d.SourceURL != "" {
			cmd.Printf("      URL: %s\n", d.SourceURL)
		}
	}

	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	doc, err := documentService.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	printDocument(cmd, doc)
	return nil
}

func runDocumentReingest(cmd *cobra.Command, args []string) error {
	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}
	cookies, err := readCookies(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	cmd.Printf("Reingesting document %d...\n", id)
	doc, err := ingestService.Reingest(ctx, id, cookies)
	if doc != nil {
		printDocument(cmd, doc)
	}
	if err != nil {
		return fmt.Errorf("reingest failed: %w", err)
	}
	return nil
}

func runDocumentOpen(cmd *cobra.Command, args []string) error {
	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	if err := documentService.Open(ctx, id, openSource); err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	cmd.Printf("Opened document %d in default application.\n", id)
	return nil
}

// printDocument writes the detail view shared by get, ingest and reingest.
func printDocument(cmd *cobra.Command, doc *domain.Document) {
	cmd.Printf("Document: %d\n\n", doc.ID)
	cmd.Printf("  File:     %s\n", doc.Filename)
	cmd.Printf("  Original: %s\n", doc.OriginalFilename)
	cmd.Printf("  Kind:     %s\n", doc.SourceKind)
	if doc.SourceURL != "" {
		cmd.Printf("  URL:      %s\n", doc.SourceURL)
	}
	cmd.Printf("  Size:     %d bytes\n", doc.FileSize)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	cmd.Printf("  Status:   %s\n", doc.Status)
	if doc.Status == domain.StatusCompleted {
		cmd.Printf("  Chunks:   %d\n", doc.ChunksCount)
	}
	if doc.StatusError != "" {
		cmd.Printf("  Error:    %s\n", doc.StatusError)
	}
}

func parseDocumentID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: document id must be a positive integer, got %q", domain.ErrInvalidInput, arg)
	}
	return id, nil
}
