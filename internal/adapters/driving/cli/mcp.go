package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so assistants can search the
knowledge base, ingest URLs and read document metadata.

By default, the server communicates over stdio using JSON-RPC. Use --port
(or mcp.port in the config) to serve streamable HTTP instead.

Examples:
  # Stdio mode (default)
  sercha-kb mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  sercha-kb mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "sercha-kb": {
        "command": "/path/to/sercha-kb",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use mcp.port from config, or stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}
	if port == 0 {
		cfg, err := activeConfig()
		if err != nil {
			return err
		}
		port = cfg.MCP.Port
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:   searchService,
		Ingest:   ingestService,
		Document: documentService,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
