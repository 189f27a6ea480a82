// Command pdfrag answers questions about PDF documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pdfrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/services"
	"github.com/custodia-labs/pdfrag/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	recorder := metrics.NewRecorder()

	cli.SetConfig(&cli.Config{
		Settings: services.NewSettingsService(configStore),
		Checker:  ai.NewConfigValidator(),
		Metrics:  recorder,
		OpenBackend: func(ctx context.Context, settings *domain.AppSettings) (*cli.Backend, error) {
			return openBackend(ctx, settings, recorder)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx)
}
