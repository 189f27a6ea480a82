package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

type fakeMetricsServer struct {
	mu      sync.Mutex
	addr    string
	started chan struct{}
	stopped chan struct{}
}

func newFakeMetricsServer() *fakeMetricsServer {
	return &fakeMetricsServer{
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (f *fakeMetricsServer) Serve(ctx context.Context, addr string) error {
	f.mu.Lock()
	f.addr = addr
	f.mu.Unlock()
	close(f.started)
	<-ctx.Done()
	close(f.stopped)
	return nil
}

func TestExecute_WritesResultsToStdout(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs([]string{"ask", "how do I raise max_connections?"})
	defer rootCmd.SetArgs(nil)

	err := execute(context.Background(), &stdout, &stderr)

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Set max_connections (Source: manual.pdf, p. 3).")
	assert.Contains(t, stdout.String(), "Sources:")
	assert.Empty(t, stderr.String())
}

func TestExecute_ErrorsGoToStderr(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs([]string{"ask"})
	defer rootCmd.SetArgs(nil)

	err := execute(context.Background(), &stdout, &stderr)

	require.Error(t, err)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "accepts 1 arg(s)")
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "pdfrag", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"verbose", "log-file", "metrics-addr"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestRootCmd_BackendCommands(t *testing.T) {
	tests := []struct {
		args    []string
		backend bool
	}{
		{args: []string{"init"}, backend: true},
		{args: []string{"ingest"}, backend: true},
		{args: []string{"ask"}, backend: true},
		{args: []string{"search"}, backend: true},
		{args: []string{"document", "list"}, backend: true},
		{args: []string{"checkpoint", "clear"}, backend: true},
		{args: []string{"settings", "show"}, backend: false},
		{args: []string{"version"}, backend: false},
	}

	for _, tt := range tests {
		cmd, _, err := rootCmd.Find(tt.args)
		require.NoError(t, err)
		assert.Equal(t, tt.backend, cmd.Annotations[annotationBackend] == "true", tt.args)
	}
}

func TestSetup_OpensBackendOnce(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	defer shutdown()

	mock := &mockIngestService{documents: []domain.DocumentInfo{{Filename: "a.pdf", Chunks: 1, Pages: 1}}}
	closed := 0
	opened := 0
	ingestService = nil
	queryService = nil
	require.NoError(t, settingsService.Set("log.file", ""))
	openBackend = func(_ context.Context, settings *domain.AppSettings) (*Backend, error) {
		opened++
		assert.Equal(t, 1000, settings.Chunking.Size)
		return &Backend{
			Ingest: mock,
			Query:  &mockQueryService{},
			Schema: &mockSchemaManager{},
			Close: func() error {
				closed++
				return nil
			},
		}, nil
	}

	out, err := runCommand("document", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "a.pdf (1 chunks, 1 pages)")

	_, err = runCommand("checkpoint", "list")
	require.NoError(t, err)
	assert.Equal(t, 1, opened)

	shutdown()
	assert.Equal(t, 1, closed)
	assert.Nil(t, ingestService)
	assert.Nil(t, queryService)
}

func TestSetup_SkipsBackendForLocalCommands(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	openBackend = func(context.Context, *domain.AppSettings) (*Backend, error) {
		t.Error("backend must not be opened")
		return nil, errors.New("unexpected")
	}
	ingestService = nil

	_, err := runCommand("version")
	require.NoError(t, err)
}

func TestSetup_BackendError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	ingestService = nil
	require.NoError(t, settingsService.Set("log.file", ""))
	openBackend = func(context.Context, *domain.AppSettings) (*Backend, error) {
		return nil, errors.New("connection refused")
	}

	_, err := runCommand("document", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start: connection refused")
}

func TestSetup_InvalidSettings(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	ingestService = nil
	require.NoError(t, settingsService.Set("chunking.overlap", "5000"))
	openBackend = func(context.Context, *domain.AppSettings) (*Backend, error) {
		t.Error("backend must not be opened with invalid settings")
		return nil, nil
	}

	_, err := runCommand("document", "list")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetup_LogFileFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	defer shutdown()
	defer logger.SetOutput(os.Stderr)
	logger.SetOutput(new(discard))

	path := filepath.Join(t.TempDir(), "logs", "pdfrag.log")

	_, err := runCommand("--log-file", path, "version")
	require.NoError(t, err)

	logger.Warn("disk almost full")
	shutdown()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk almost full")
}

func TestSetup_StartsMetricsServer(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	server := newFakeMetricsServer()
	metricsServer = server
	ingestService = nil
	require.NoError(t, settingsService.Set("log.file", ""))
	openBackend = func(context.Context, *domain.AppSettings) (*Backend, error) {
		return &Backend{Ingest: &mockIngestService{}, Query: &mockQueryService{}}, nil
	}

	_, err := runCommand("--metrics-addr", "127.0.0.1:9464", "checkpoint", "list")
	require.NoError(t, err)

	select {
	case <-server.started:
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server not started")
	}
	server.mu.Lock()
	assert.Equal(t, "127.0.0.1:9464", server.addr)
	server.mu.Unlock()

	shutdown()

	select {
	case <-server.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server not stopped")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
