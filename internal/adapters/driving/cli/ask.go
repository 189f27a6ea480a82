package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
	"github.com/custodia-labs/pdfrag/internal/core/services"
)

var askNoSources bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieves the most relevant passages, reranks them and streams an
answer from the language model. Every claim cites its source file and page.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNoSources, "no-sources", false, "do not list the sources after the answer")
	requiresBackend(askCmd)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	interactive := isTerminal(cmd.OutOrStdout())
	if interactive {
		cmd.PrintErrln("Searching documents...")
	}

	answer, err := queryService.Ask(cmd.Context(), args[0])
	if err != nil {
		return queryError(err)
	}
	defer answer.Close()

	if answer.State() == domain.QueryEmpty {
		cmd.Println(domain.NoDocumentsMessage)
		return nil
	}

	if interactive {
		cmd.Println()
	}
	if err := streamAnswer(cmd, answer); err != nil {
		return err
	}

	if !askNoSources {
		printSources(cmd, answer.Sources())
	}
	return nil
}

// streamAnswer prints tokens as they arrive.
func streamAnswer(cmd *cobra.Command, answer driving.Answer) error {
	for {
		token, done, err := answer.Next()
		if err != nil {
			cmd.Println()
			return fmt.Errorf("generation failed: %w", err)
		}
		if done {
			cmd.Println()
			return nil
		}
		cmd.Print(token)
	}
}

func printSources(cmd *cobra.Command, sources []domain.Candidate) {
	if len(sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, c := range sources {
		cmd.Printf("  %s (rerank %.3f)\n", services.SourceLabel(i+1, c), c.RerankScore)
	}
}

// queryError separates store failures from other query failures so a broken
// database is never mistaken for an empty result.
func queryError(err error) error {
	if errors.Is(err, domain.ErrStore) {
		return fmt.Errorf("database error, documents could not be searched: %w", err)
	}
	return fmt.Errorf("query failed: %w", err)
}
