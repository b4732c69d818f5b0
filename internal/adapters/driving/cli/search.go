package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// snippetLength is the number of characters shown per result.
const snippetLength = 240

var (
	searchLimit         int
	searchJSON          bool
	searchHybrid        bool
	searchMinConfidence float64
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed passages",
	Long: `Embeds the query and returns the most similar indexed passages.
With --hybrid, a wider candidate set is reranked by keyword overlap; the
reported confidence stays the semantic similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", false, "rerank results by keyword overlap")
	searchCmd.Flags().Float64Var(&searchMinConfidence, "min-confidence", 0, "drop results below this similarity (0 to 1)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := domain.SearchQuery{
		Text:   args[0],
		Limit:  searchLimit,
		Hybrid: searchHybrid,
	}
	if cmd.Flags().Changed("min-confidence") {
		c := searchMinConfidence
		query.MinConfidence = &c
	}

	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	resp, err := searchService.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}

	return outputSearchTable(cmd, resp)
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.SearchResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	st := styles.DefaultStyles()
	snippetStyle := lipgloss.NewStyle().PaddingLeft(6).Width(88)
	cmd.Println(st.Title.Render(fmt.Sprintf("Results for %q:", resp.Query)))
	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]

		// Format: [N] filename #chunk (confidence)
		score := st.Confidence(r.Confidence).Render(fmt.Sprintf("%.2f", r.Confidence))
		cmd.Printf("  [%d] %s #%d (%s)\n", i+1, r.Filename, r.ChunkIndex, score)
		if resp.Params.Hybrid {
			cmd.Println(st.Muted.Render(fmt.Sprintf("      score %.2f, semantic %.2f, keyword %.2f", r.Score, r.SemanticScore, r.KeywordScore)))
		}
		if r.SourceURL != "" {
			cmd.Println(st.Muted.Render("      " + r.SourceURL))
		}
		cmd.Println(snippetStyle.Render(snippet(r.Text)))
		cmd.Println()
	}

	return nil
}

// snippet flattens whitespace and truncates to snippetLength characters.
func snippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= snippetLength {
		return s
	}
	return string([]rune(s)[:snippetLength]) + "..."
}
