package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect embedding checkpoints",
	Long: `Checkpoints record embedding progress for files whose ingestion was
interrupted. The next ingest resumes from them.`,
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending checkpoints",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointList,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear [filename]",
	Short: "Discard a pending checkpoint",
	Long:  `Discards saved progress so the next ingest of the file starts over.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointClear,
}

func init() {
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
	requiresBackend(checkpointListCmd)
	requiresBackend(checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpointList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	names, err := ingestService.ListCheckpoints(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	if len(names) == 0 {
		cmd.Println("No pending checkpoints.")
		return nil
	}

	cmd.Printf("Pending checkpoints (%d):\n", len(names))
	for _, name := range names {
		cmd.Printf("  %s\n", name)
	}
	return nil
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.ClearCheckpoint(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}

	cmd.Printf("Checkpoint for %s cleared.\n", args[0])
	return nil
}
