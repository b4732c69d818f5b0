package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add documents to the knowledge base",
}

var ingestPDFCmd = &cobra.Command{
	Use:   "pdf [paths or globs...]",
	Short: "Ingest PDF files",
	Long: `Stores and indexes PDF files. Arguments may be paths or doublestar
globs such as "reports/**/*.pdf". Files are processed one at a time; a
failure is reported and the remaining files are still ingested.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngestPDF,
}

var ingestURLCmd = &cobra.Command{
	Use:   "url [url]",
	Short: "Render a web page to PDF and ingest it",
	Long: `Renders the page in a headless browser, stores the printed PDF and
indexes the readable text. Profile pages on the gated network need session
cookies, passed with --cookies-file or --cookies-stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestURL,
}

func init() {
	addCookieFlags(ingestURLCmd)
	ingestCmd.AddCommand(ingestPDFCmd)
	ingestCmd.AddCommand(ingestURLCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestPDF(cmd *cobra.Command, args []string) error {
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no files match %s", domain.ErrInvalidInput, strings.Join(args, " "))
	}

	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if len(paths) > 1 && term.IsTerminal(int(os.Stderr.Fd())) {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("ingesting"),
			progressbar.OptionSetWidth(32),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	failed := 0
	for _, path := range paths {
		doc, err := ingestFile(cmd, path)
		if bar != nil {
			_ = bar.Add(1)
		}
		switch {
		case doc != nil && doc.Status == domain.StatusCompleted:
			cmd.Printf("  ok      [%d] %s (%d chunks)\n", doc.ID, path, doc.ChunksCount)
		case doc != nil:
			failed++
			cmd.Printf("  failed  [%d] %s: %s\n", doc.ID, path, doc.StatusError)
		default:
			failed++
			cmd.Printf("  error   %s: %v\n", path, err)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	cmd.Printf("\nIngested %d of %d files\n", len(paths)-failed, len(paths))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func ingestFile(cmd *cobra.Command, path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ingestService.IngestPDF(cmd.Context(), filepath.Base(path), data)
}

func runIngestURL(cmd *cobra.Command, args []string) error {
	cookies, err := readCookies(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	cmd.Printf("Rendering %s...\n", args[0])
	doc, err := ingestService.IngestURL(ctx, args[0], cookies)
	if doc != nil {
		printDocument(cmd, doc)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}

// expandPaths resolves globs and drops duplicates. Plain paths are kept
// even when they do not exist so the error names them.
func expandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			add(filepath.Clean(arg))
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", domain.ErrInvalidInput, arg, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}

// addCookieFlags registers the cookie input flags on cmd.
func addCookieFlags(cmd *cobra.Command) {
	cmd.Flags().String("cookies-file", "", "read session cookies from this file")
	cmd.Flags().Bool("cookies-stdin", false, "read session cookies from stdin (no echo on a terminal)")
}

// readCookies returns the cookie blob selected by the flags. The value is
// wrapped at once and never printed.
func readCookies(cmd *cobra.Command) (domain.Secret, error) {
	file, _ := cmd.Flags().GetString("cookies-file")
	fromStdin, _ := cmd.Flags().GetBool("cookies-stdin")

	switch {
	case file != "" && fromStdin:
		return domain.Secret{}, errors.New("use either --cookies-file or --cookies-stdin, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return domain.Secret{}, fmt.Errorf("reading cookies file: %w", err)
		}
		return domain.NewSecret(strings.TrimSpace(string(data))), nil
	case fromStdin:
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprint(cmd.ErrOrStderr(), "Cookies: ")
			data, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return domain.Secret{}, fmt.Errorf("reading cookies: %w", err)
			}
			return domain.NewSecret(strings.TrimSpace(string(data))), nil
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return domain.Secret{}, fmt.Errorf("reading cookies: %w", err)
		}
		return domain.NewSecret(strings.TrimSpace(string(data))), nil
	default:
		return domain.Secret{}, nil
	}
}
