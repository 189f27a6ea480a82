package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/connectors/filesystem"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/services"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

var (
	ingestDir           string
	ingestRetryInterval time.Duration
	ingestRetries       int
	ingestWatch         bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Load PDF files into the database",
	Long: `Extracts, chunks, embeds and stores PDF files.

Without paths, every PDF in the data directory is ingested. Files already in
the database are skipped. An interrupted run resumes from the last checkpoint.
Failed runs are retried after --retry-interval until they succeed or
--retries attempts were made (0 retries forever).`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory to scan for PDFs (default from settings)")
	ingestCmd.Flags().DurationVar(&ingestRetryInterval, "retry-interval", 10*time.Second, "wait between retries")
	ingestCmd.Flags().IntVar(&ingestRetries, "retries", 0, "maximum attempts, 0 for unlimited")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and ingest new PDFs as they appear")
	requiresBackend(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := cmd.Context()
	dir := resolveDataDir()
	interval := resolveRetryInterval(cmd)

	err := services.RunWithRetry(ctx, nil, interval, ingestRetries, func(ctx context.Context) error {
		return ingestOnce(ctx, cmd, args, dir)
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestWatch {
		return watchAndIngest(ctx, cmd, dir)
	}
	return nil
}

// ingestOnce runs one pass. Files that cannot be read are reported but do not
// trigger a retry; any other failure does.
func ingestOnce(ctx context.Context, cmd *cobra.Command, args []string, dir string) error {
	paths := args
	if len(paths) == 0 {
		var err error
		paths, err = ingestService.Discover(dir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			cmd.Printf("No PDF files found in %s\n", dir)
			return nil
		}
	}

	cmd.Printf("Ingesting %d file(s)...\n", len(paths))
	reports, err := ingestService.IngestAll(ctx, paths)
	printReports(cmd, reports)

	if !retryable(reports, err) {
		return nil
	}
	return err
}

// retryable reports whether a pass failed for a reason other than unreadable files.
func retryable(reports []domain.IngestReport, err error) bool {
	if err == nil {
		return false
	}
	failed := 0
	for _, r := range reports {
		if r.Err == nil {
			continue
		}
		failed++
		if !errors.Is(r.Err, domain.ErrExtraction) {
			return true
		}
	}
	return failed == 0
}

func watchAndIngest(ctx context.Context, cmd *cobra.Command, dir string) error {
	watcher := filesystem.NewWatcher(dir, ingestService.SupportedExtensions(), filesystem.DefaultSettle)
	paths, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	cmd.Printf("Watching %s for new PDFs (Ctrl+C to stop)...\n", dir)
	for path := range paths {
		report, err := ingestService.IngestFile(ctx, path)
		printReport(cmd, report)
		if err != nil {
			logger.Error("%s: %v", report.Filename, err)
		}
	}
	return nil
}

func resolveDataDir() string {
	if ingestDir != "" {
		return ingestDir
	}
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil && settings.Ingest.DataDir != "" {
			return settings.Ingest.DataDir
		}
	}
	return domain.DefaultAppSettings().Ingest.DataDir
}

func resolveRetryInterval(cmd *cobra.Command) time.Duration {
	if cmd.Flags().Changed("retry-interval") || settingsService == nil {
		return ingestRetryInterval
	}
	if settings, err := settingsService.Get(); err == nil && settings.Ingest.RetryInterval > 0 {
		return settings.Ingest.RetryInterval
	}
	return ingestRetryInterval
}

func printReports(cmd *cobra.Command, reports []domain.IngestReport) {
	var loaded, skipped, failed int
	for _, r := range reports {
		printReport(cmd, r)
		switch r.Status {
		case domain.IngestLoaded:
			loaded++
		case domain.IngestSkipped:
			skipped++
		case domain.IngestFailed:
			failed++
		}
	}
	cmd.Printf("\nLoaded: %d, skipped: %d, failed: %d\n", loaded, skipped, failed)
}

func printReport(cmd *cobra.Command, r domain.IngestReport) {
	switch r.Status {
	case domain.IngestLoaded:
		resumed := ""
		if r.Resumed {
			resumed = ", resumed"
		}
		cmd.Printf("  loaded   %s (%d chunks, %s%s)\n", r.Filename, r.Chunks, r.Duration.Round(time.Second), resumed)
	case domain.IngestSkipped:
		cmd.Printf("  skipped  %s\n", r.Filename)
	default:
		cmd.Printf("  failed   %s: %v\n", r.Filename, r.Err)
	}
}
