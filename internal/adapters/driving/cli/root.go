// Package cli implements the sercha-kb command line.
//
// Commands reach the core through the driving ports held in package
// variables. They are built from configuration on first use, so tests
// can install their own services before executing rootCmd.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/config"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// Driving ports used by the commands.
var (
	ingestService   driving.IngestionService
	searchService   driving.SearchService
	documentService driving.DocumentService
)

// current is the application built by ensureServices, if any.
var current *application

var rootCmd = &cobra.Command{
	Use:   "sercha-kb",
	Short: "Personal knowledge base over PDFs and web pages",
	Long: `sercha-kb ingests PDFs and rendered web pages, splits their text into
overlapping chunks, embeds them and answers similarity queries over the
indexed passages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sercha-kb/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command and returns the process exit code.
func Execute(buildVersion string) int {
	if buildVersion != "" {
		version = buildVersion
	}
	// A missing .env is normal.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		_ = closeServices()
		return 1
	}
	return 0
}

// loadConfig reads the configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := logger.SetFormat(cfg.Log.Format); err != nil {
		return nil, err
	}
	switch cfg.Log.Level {
	case "debug", "info":
		logger.SetVerbose(true)
	}
	for _, w := range cfg.Validate() {
		logger.Warn("config: %s", w)
	}
	return cfg, nil
}

// ensureServices builds the services from configuration unless they
// are already installed.
func ensureServices(ctx context.Context) error {
	if ingestService != nil && searchService != nil && documentService != nil {
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApplication(ctx, cfg, version)
	if err != nil {
		return err
	}
	current = a
	ingestService = a.ingest
	searchService = a.search
	documentService = a.documents
	return nil
}

// activeConfig returns the configuration of the running application,
// loading it when the services were installed some other way.
func activeConfig() (*config.Config, error) {
	if current != nil {
		return current.cfg, nil
	}
	return loadConfig()
}

func closeServices() error {
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	ingestService = nil
	searchService = nil
	documentService = nil
	return err
}

// userMessage shortens well-known errors for the terminal.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexUnavailable):
		return fmt.Sprintf("%v\nIs the vector engine running? Check vector.host and vector.port.", err)
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fmt.Sprintf("%v\nIs the embedding provider reachable? Check embedding.base_url.", err)
	case errors.Is(err, domain.ErrRendererUnavailable):
		return fmt.Sprintf("%v\nIs Chromium installed? Set extract.browser_bin to its path.", err)
	case errors.Is(err, domain.ErrSchemaMismatch):
		return fmt.Sprintf("%v\nThe collection was created for another model; use a new vector.collection.", err)
	default:
		return err.Error()
	}
}
