package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentJSON bool

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List or delete documents stored in the database.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [filename]",
	Short: "Delete a document and its checkpoint",
	Long: `Removes every chunk stored for the file and any pending checkpoint,
so the next ingest processes it from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentDelete,
}

func init() {
	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	requiresBackend(documentListCmd)
	requiresBackend(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docs, err := ingestService.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested.")
		return nil
	}

	cmd.Printf("Documents (%d):\n", len(docs))
	for _, d := range docs {
		cmd.Printf("  %s (%d chunks, %d pages)\n", d.Filename, d.Chunks, d.Pages)
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	filename := args[0]
	n, err := ingestService.DeleteDocument(cmd.Context(), filename)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if n == 0 {
		cmd.Printf("No chunks stored for %s.\n", filename)
		return nil
	}
	cmd.Printf("Deleted %d chunks of %s.\n", n, filename)
	return nil
}
