package cli

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
	"github.com/custodia-labs/pdfrag/internal/core/services"
)

// ingestResult is one scripted IngestAll outcome.
type ingestResult struct {
	reports []domain.IngestReport
	err     error
}

type mockIngestService struct {
	mu sync.Mutex

	results     []ingestResult
	ingestCalls int
	ingested    [][]string

	discovered  []string
	discoverErr error
	discoverDir string

	documents []domain.DocumentInfo
	listErr   error

	deleteCount int64
	deleteErr   error
	deleted     []string

	checkpoints []string
	cleared     []string
	clearErr    error
}

func (m *mockIngestService) IngestFile(_ context.Context, path string) (domain.IngestReport, error) {
	return domain.IngestReport{Filename: domain.FilenameOf(path), Status: domain.IngestLoaded}, nil
}

func (m *mockIngestService) IngestAll(_ context.Context, paths []string) ([]domain.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ingested = append(m.ingested, paths)
	m.ingestCalls++
	if len(m.results) == 0 {
		reports := make([]domain.IngestReport, len(paths))
		for i, p := range paths {
			reports[i] = domain.IngestReport{Filename: domain.FilenameOf(p), Status: domain.IngestLoaded, Chunks: 3}
		}
		return reports, nil
	}
	r := m.results[min(m.ingestCalls, len(m.results))-1]
	return r.reports, r.err
}

func (m *mockIngestService) Discover(dir string) ([]string, error) {
	m.discoverDir = dir
	return m.discovered, m.discoverErr
}

func (m *mockIngestService) SupportedExtensions() []string {
	return []string{".pdf"}
}

func (m *mockIngestService) DeleteDocument(_ context.Context, filename string) (int64, error) {
	m.deleted = append(m.deleted, filename)
	return m.deleteCount, m.deleteErr
}

func (m *mockIngestService) ListDocuments(_ context.Context) ([]domain.DocumentInfo, error) {
	return m.documents, m.listErr
}

func (m *mockIngestService) ListCheckpoints(_ context.Context) ([]string, error) {
	return m.checkpoints, nil
}

func (m *mockIngestService) ClearCheckpoint(_ context.Context, filename string) error {
	m.cleared = append(m.cleared, filename)
	return m.clearErr
}

type mockQueryService struct {
	answer       *mockAnswer
	askErr       error
	candidates   []domain.Candidate
	retrieveErr  error
	lastQuestion string
	lastTopK     int
}

func (m *mockQueryService) Ask(_ context.Context, question string) (driving.Answer, error) {
	m.lastQuestion = question
	if m.askErr != nil {
		return nil, m.askErr
	}
	return m.answer, nil
}

func (m *mockQueryService) Retrieve(_ context.Context, question string, topK int) ([]domain.Candidate, error) {
	m.lastQuestion = question
	m.lastTopK = topK
	return m.candidates, m.retrieveErr
}

// mockAnswer yields tokens, then err if set, then done.
type mockAnswer struct {
	state   domain.QueryState
	tokens  []string
	err     error
	sources []domain.Candidate
	pos     int
	closed  bool
}

func (a *mockAnswer) ID() string                  { return "test-query" }
func (a *mockAnswer) State() domain.QueryState    { return a.state }
func (a *mockAnswer) Sources() []domain.Candidate { return a.sources }

func (a *mockAnswer) Next() (string, bool, error) {
	if a.state == domain.QueryEmpty {
		return "", true, nil
	}
	if a.pos < len(a.tokens) {
		a.pos++
		return a.tokens[a.pos-1], false, nil
	}
	if a.err != nil {
		a.state = domain.QueryFailed
		return "", true, a.err
	}
	a.state = domain.QueryDone
	return "", true, nil
}

func (a *mockAnswer) Close() error {
	a.closed = true
	return nil
}

type mockSchemaManager struct {
	calls int
	err   error
}

func (m *mockSchemaManager) EnsureSchema(_ context.Context) error {
	m.calls++
	return m.err
}

type mockConfigChecker struct {
	checks []ai.Check
}

func (m *mockConfigChecker) ValidateAll(_ context.Context, _ *domain.AppSettings) []ai.Check {
	return m.checks
}

func testSources() []domain.Candidate {
	return []domain.Candidate{
		{ID: 1, Content: "Set max_connections in postgresql.conf.", Filename: "manual.pdf", PageNumber: 3, Score: 1.25, RerankScore: 7.5},
		{ID: 2, Content: "Restart the server afterwards.", Filename: "guide.pdf", PageNumber: 10, Score: 0.8, RerankScore: 2.1},
	}
}

// newTestSettingsService returns a settings service over an in-memory store
// that ignores the real environment.
func newTestSettingsService() *services.SettingsService {
	svc := services.NewSettingsService(memory.NewConfigStore())
	svc.SetEnvLookup(func(string) string { return "" })
	return svc
}

// setupTestServices installs mock services and returns a cleanup function
// that restores the previous ones and resets command flags.
func setupTestServices() func() {
	oldIngest := ingestService
	oldQuery := queryService
	oldSettings := settingsService
	oldSchema := schemaManager
	oldChecker := configChecker
	oldOpen := openBackend
	oldMetrics := metricsServer

	ingestService = &mockIngestService{
		documents: []domain.DocumentInfo{
			{Filename: "guide.pdf", Chunks: 12, Pages: 4},
			{Filename: "manual.pdf", Chunks: 40, Pages: 18},
		},
		checkpoints: []string{"large.pdf"},
		deleteCount: 12,
	}
	queryService = &mockQueryService{
		answer: &mockAnswer{
			state:   domain.QueryGenerating,
			tokens:  []string{"Set ", "max_connections ", "(Source: manual.pdf, p. 3)."},
			sources: testSources(),
		},
		candidates: testSources(),
	}
	settingsService = newTestSettingsService()
	schemaManager = &mockSchemaManager{}
	configChecker = &mockConfigChecker{}
	openBackend = nil
	metricsServer = nil

	return func() {
		ingestService = oldIngest
		queryService = oldQuery
		settingsService = oldSettings
		schemaManager = oldSchema
		configChecker = oldChecker
		openBackend = oldOpen
		metricsServer = oldMetrics
		resetFlags()
	}
}

func resetFlags() {
	verbose = false
	logFilePath = ""
	metricsAddr = ""
	searchLimit = 5
	searchJSON = false
	askNoSources = false
	documentJSON = false
	ingestDir = ""
	ingestRetries = 0
	ingestWatch = false
	ingestRetryInterval = 10 * time.Second
	for _, name := range []string{"retry-interval", "retries", "dir", "watch"} {
		ingestCmd.Flags().Lookup(name).Changed = false
	}
}

// runCommand executes the root command with args and returns its output.
func runCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
