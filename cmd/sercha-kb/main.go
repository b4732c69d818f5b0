// Command sercha-kb is a personal knowledge base over PDFs and web pages.
package main

import (
	"os"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
