package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// --- Mock implementations ---

// fakeClock records sleeps and advances time instead of waiting.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
// errs is consumed one entry per call; a nil entry (or an exhausted queue)
// means success.
type mockEmbeddingService struct {
	mu        sync.Mutex
	calls     [][]string
	inputs    []domain.InputType
	errs      []error
	short     bool
	latency   time.Duration
	clock     *fakeClock
	onRequest func(call int)
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string, inputType domain.InputType) ([][]float32, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, append([]string(nil), texts...))
	m.inputs = append(m.inputs, inputType)
	var err error
	if len(m.errs) > 0 {
		err, m.errs = m.errs[0], m.errs[1:]
	}
	m.mu.Unlock()

	if m.onRequest != nil {
		m.onRequest(call)
	}
	if m.clock != nil && m.latency > 0 {
		m.clock.Advance(m.latency)
	}
	if err != nil {
		return nil, err
	}

	n := len(texts)
	if m.short {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

func (m *mockEmbeddingService) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbeddingService) Dimensions() int {
	return 2
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockExtractor implements driven.Extractor for testing.
type mockExtractor struct {
	pages map[string][]domain.Page
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, path string) ([]domain.Page, error) {
	m.calls++
	if m.err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: m.err}
	}
	pages, ok := m.pages[domain.FilenameOf(path)]
	if !ok {
		return nil, &domain.ExtractionError{Path: path, Err: errors.New("no such file")}
	}
	return pages, nil
}

func (m *mockExtractor) SupportedExtensions() []string {
	return []string{".pdf"}
}

// mockReranker implements driven.Reranker for testing.
type mockReranker struct {
	scores []float64
	err    error
	calls  int
	docs   []string
}

func (m *mockReranker) Predict(_ context.Context, _ string, documents []string) ([]float64, error) {
	m.calls++
	m.docs = documents
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

func (m *mockReranker) ModelName() string {
	return "mock-rerank"
}

func (m *mockReranker) Close() error {
	return nil
}

// mockGenerator implements driven.Generator for testing.
type mockGenerator struct {
	tokens    []string
	streamErr error
	midErr    error
	requests  []domain.GenerationRequest
	stream    *mockTokenStream
}

func (m *mockGenerator) Stream(_ context.Context, req domain.GenerationRequest) (driven.TokenStream, error) {
	m.requests = append(m.requests, req)
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	m.stream = &mockTokenStream{tokens: m.tokens, err: m.midErr}
	return m.stream, nil
}

func (m *mockGenerator) ModelName() string {
	return "mock-llm"
}

func (m *mockGenerator) Ping(_ context.Context) error {
	return nil
}

func (m *mockGenerator) Close() error {
	return nil
}

// mockTokenStream yields tokens, then err (if set) or done.
type mockTokenStream struct {
	mu     sync.Mutex
	tokens []string
	err    error
	closed int
}

func (s *mockTokenStream) Next() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) > 0 {
		tok := s.tokens[0]
		s.tokens = s.tokens[1:]
		return tok, false, nil
	}
	if s.err != nil {
		return "", false, s.err
	}
	return "", true, nil
}

func (s *mockTokenStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// recordingMetrics implements driven.MetricsRecorder for testing.
type recordingMetrics struct {
	mu          sync.Mutex
	requests    map[string]int
	embedded    int
	checkpoints int
	documents   map[domain.IngestStatus]int
	stages      map[domain.Stage]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		requests:  make(map[string]int),
		documents: make(map[domain.IngestStatus]int),
		stages:    make(map[domain.Stage]int),
	}
}

func (r *recordingMetrics) EmbeddingRequest(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[outcome]++
}

func (r *recordingMetrics) ChunksEmbedded(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedded += n
}

func (r *recordingMetrics) CheckpointSaved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints++
}

func (r *recordingMetrics) DocumentProcessed(status domain.IngestStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[status]++
}

func (r *recordingMetrics) StageDuration(stage domain.Stage, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage]++
}

// pagesOf builds n pages of distinct text, each long enough for one chunk
// at the test chunk size.
func pagesOf(n, width int) []domain.Page {
	pages := make([]domain.Page, n)
	for i := range pages {
		text := make([]byte, width)
		for j := range text {
			text[j] = byte('a' + (i+j)%26)
		}
		pages[i] = domain.Page{Number: i + 1, Text: string(text)}
	}
	return pages
}

// checkpointOf builds an unembedded checkpoint with n one-word chunks.
func checkpointOf(filename string, n int) *domain.Checkpoint {
	cp := &domain.Checkpoint{Filename: filename}
	for i := range n {
		cp.Chunks = append(cp.Chunks, string(rune('a'+i%26)))
		cp.Metadata = append(cp.Metadata, domain.ChunkMeta{Filename: filename, PageNumber: i/10 + 1})
	}
	return cp
}
