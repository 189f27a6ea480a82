package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Find the passages that best match a question",
	Long: `Runs hybrid retrieval and reranking without generating an answer.
Combines keyword (full text) and semantic (vector) search, then orders
the candidates with the cross-encoder.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	requiresBackend(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	question := args[0]

	if queryService == nil {
		return errors.New("query service not configured")
	}

	results, err := queryService.Retrieve(cmd.Context(), question, searchLimit)
	if err != nil {
		return queryError(err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.Candidate) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.Candidate) error {
	if len(results) == 0 {
		cmd.Println(domain.NoDocumentsMessage)
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, c := range results {
		cmd.Printf("  [%d] %s p. %d (score %.3f, rerank %.3f)\n", i+1, c.Filename, c.PageNumber, c.Score, c.RerankScore)
		cmd.Printf("      %s\n", snippet(c.Content, 200))
		cmd.Println()
	}
	return nil
}

// snippet flattens whitespace and truncates to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
