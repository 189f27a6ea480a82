package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Long: `Creates the pgvector extension, the chunk table and its keyword,
filename and vector indexes. Safe to run more than once.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	requiresBackend(initCmd)
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	if schemaManager == nil {
		return errors.New("database not configured")
	}

	if err := schemaManager.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	cmd.Println("Database schema ready.")
	return nil
}
