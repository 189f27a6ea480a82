// Package cli implements the pdfrag command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// annotationBackend marks commands that need the database and model providers.
const annotationBackend = "pdfrag/backend"

// SchemaManager creates the database objects the chunk store needs.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

// ConfigChecker probes the configured providers.
type ConfigChecker interface {
	ValidateAll(ctx context.Context, settings *domain.AppSettings) []ai.Check
}

// MetricsServer exposes metrics over HTTP until ctx is cancelled.
type MetricsServer interface {
	Serve(ctx context.Context, addr string) error
}

// Backend holds the services that need the database and model providers.
type Backend struct {
	Ingest driving.IngestService
	Query  driving.QueryService
	Schema SchemaManager

	// Close releases connections. May be nil.
	Close func() error
}

// BackendOpener connects to the store and providers.
type BackendOpener func(ctx context.Context, settings *domain.AppSettings) (*Backend, error)

// Config wires the CLI to the application.
type Config struct {
	Settings    driving.SettingsService
	Checker     ConfigChecker
	Metrics     MetricsServer
	OpenBackend BackendOpener
}

var (
	settingsService driving.SettingsService
	configChecker   ConfigChecker
	metricsServer   MetricsServer
	openBackend     BackendOpener

	ingestService driving.IngestService
	queryService  driving.QueryService
	schemaManager SchemaManager

	backendOpen  bool
	closeBackend func() error
	logFileClose func() error
	stopMetrics  context.CancelFunc
)

var (
	verbose     bool
	logFilePath string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "pdfrag",
	Short: "Ask questions about your PDF documents",
	Long: `pdfrag ingests PDF files into PostgreSQL with pgvector and answers
questions about them with cited sources.

Documents are split into overlapping chunks, embedded and stored. Questions
are answered by hybrid keyword and vector retrieval, cross-encoder reranking
and a streamed answer from a language model.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFilePath, "log-file", "", "append log output to this file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// SetConfig sets the services the commands use.
func SetConfig(cfg *Config) {
	settingsService = cfg.Settings
	configChecker = cfg.Checker
	metricsServer = cfg.Metrics
	openBackend = cfg.OpenBackend
}

// Execute runs the root command and releases whatever it opened.
func Execute(ctx context.Context) error {
	return execute(ctx, os.Stdout, os.Stderr)
}

// execute runs the root command with explicit streams. cmd.Print writes to
// stderr unless an output is set.
func execute(ctx context.Context, stdout, stderr io.Writer) error {
	defer shutdown()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}

// requiresBackend marks cmd as needing the database and providers.
func requiresBackend(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationBackend] = "true"
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if logFilePath != "" {
		if err := attachLogFile(logFilePath); err != nil {
			return err
		}
	}

	if cmd.Annotations[annotationBackend] == "" || openBackend == nil || ingestService != nil {
		return nil
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if logFilePath == "" && settings.LogFile != "" {
		if err := attachLogFile(settings.LogFile); err != nil {
			return err
		}
	}

	if metricsAddr != "" && metricsServer != nil {
		startMetrics(cmd.Context(), metricsAddr)
	}

	backend, err := openBackend(cmd.Context(), settings)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	ingestService = backend.Ingest
	queryService = backend.Query
	schemaManager = backend.Schema
	closeBackend = backend.Close
	backendOpen = true

	return nil
}

func attachLogFile(path string) error {
	if logFileClose != nil {
		return nil
	}
	f, err := logger.OpenLogFile(path)
	if err != nil {
		return err
	}
	logFileClose = func() error {
		logger.SetFileOutput(nil)
		return f.Close()
	}
	return nil
}

func startMetrics(ctx context.Context, addr string) {
	ctx, cancel := context.WithCancel(ctx)
	stopMetrics = cancel
	srv := metricsServer
	go func() {
		if err := srv.Serve(ctx, addr); err != nil {
			logger.Error("metrics server: %v", err)
		}
	}()
	logger.Info("Serving metrics on %s/metrics", addr)
}

// shutdown closes the backend, metrics server and log file.
func shutdown() {
	if stopMetrics != nil {
		stopMetrics()
		stopMetrics = nil
	}
	if backendOpen {
		if closeBackend != nil {
			if err := closeBackend(); err != nil {
				logger.Warn("close: %v", err)
			}
		}
		backendOpen = false
		closeBackend = nil
		ingestService = nil
		queryService = nil
		schemaManager = nil
	}
	if logFileClose != nil {
		_ = logFileClose()
		logFileClose = nil
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
