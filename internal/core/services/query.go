package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryConfig tunes retrieval, reranking and generation.
type QueryConfig struct {
	Retrieval domain.RetrievalOptions
	TopK      int
	Model     string
	NumCtx    int
}

// QueryService answers questions: embed, retrieve, rerank, generate.
// Calls are independent; the service holds no per-query state.
type QueryService struct {
	embedding driven.EmbeddingService
	store     driven.ChunkStore
	reranker  driven.Reranker
	generator driven.Generator
	prompts   driven.PromptStore
	cfg       QueryConfig
	clock     Clock
	metrics   driven.MetricsRecorder
}

// NewQueryService creates a new query service.
// The reranker and generator parameters are optional (can be nil).
func NewQueryService(
	embedding driven.EmbeddingService,
	store driven.ChunkStore,
	reranker driven.Reranker,
	generator driven.Generator,
	cfg QueryConfig,
) *QueryService {
	if cfg.Retrieval.Limit <= 0 {
		cfg.Retrieval.Limit = 20
	}
	if cfg.Retrieval.DistanceThreshold == 0 {
		cfg.Retrieval.DistanceThreshold = 0.5
	}
	if cfg.Retrieval.Lexical == "" {
		cfg.Retrieval.Lexical = domain.LexicalTSVector
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultRerankTopK
	}

	return &QueryService{
		embedding: embedding,
		store:     store,
		reranker:  reranker,
		generator: generator,
		cfg:       cfg,
		clock:     SystemClock{},
		metrics:   nopMetrics{},
	}
}

// SetPromptStore sets the prompt store for loading the answer preamble.
// If not set, the built-in preamble is used.
func (s *QueryService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// SetMetrics attaches a metrics recorder.
func (s *QueryService) SetMetrics(m driven.MetricsRecorder) {
	s.metrics = metricsOrNop(m)
}

// Retrieve returns the reranked candidates for a question without generation.
func (s *QueryService) Retrieve(ctx context.Context, question string, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	a := newAnswer()
	return s.retrieve(ctx, a, question, topK)
}

// Ask runs the query pipeline and starts streaming the answer.
func (s *QueryService) Ask(ctx context.Context, question string) (driving.Answer, error) {
	a := newAnswer()

	sources, err := s.retrieve(ctx, a, question, s.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		logger.Info("Query %s: no candidates", a.id)
		a.transition(domain.QueryEmpty)
		return a, nil
	}
	a.sources = sources

	if s.generator == nil {
		a.transition(domain.QueryFailed)
		return nil, &domain.StageError{Stage: domain.StageGenerating, Err: domain.ErrLLMUnavailable}
	}

	a.transition(domain.QueryGenerating)
	prompt := BuildPrompt(loadPreamble(s.prompts), strings.TrimSpace(question), sources)
	logger.Debug("Prompt: %d characters, %d sources", len(prompt), len(sources))

	stream, err := s.generator.Stream(ctx, domain.GenerationRequest{
		Model:  s.cfg.Model,
		Prompt: prompt,
		NumCtx: s.cfg.NumCtx,
	})
	if err != nil {
		a.transition(domain.QueryFailed)
		return nil, generationError(err)
	}
	a.stream = stream
	a.started = s.clock.Now()
	a.clock = s.clock
	a.metrics = s.metrics

	return a, nil
}

// retrieve performs embedding, retrieval and reranking, advancing a's state.
func (s *QueryService) retrieve(ctx context.Context, a *answer, question string, topK int) ([]domain.Candidate, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		a.transition(domain.QueryFailed)
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	logger.Section("Query " + a.id)
	logger.Debug("Question: %q", question)

	if s.embedding == nil {
		a.transition(domain.QueryFailed)
		return nil, &domain.StageError{Stage: domain.StageEmbedding, Err: domain.ErrEmbeddingUnavailable}
	}

	started := s.clock.Now()
	vectors, err := s.embedding.EmbedBatch(ctx, []string{question}, domain.InputQuery)
	if err == nil && len(vectors) != 1 {
		err = fmt.Errorf("got %d vectors for 1 query", len(vectors))
	}
	if err != nil {
		a.transition(domain.QueryFailed)
		logger.Error("Query %s: embedding failed: %v", a.id, err)
		return nil, &domain.StageError{
			Stage: domain.StageEmbedding,
			Err:   fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err),
		}
	}
	s.metrics.StageDuration(domain.StageEmbedding, s.clock.Now().Sub(started))

	a.transition(domain.QueryRetrieving)
	started = s.clock.Now()
	candidates, err := s.store.HybridSearch(ctx, question, vectors[0], s.cfg.Retrieval)
	if err != nil {
		a.transition(domain.QueryFailed)
		if !errors.Is(err, domain.ErrStore) {
			err = fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		logger.Error("Query %s: retrieval failed: %v", a.id, err)
		return nil, &domain.StageError{Stage: domain.StageRetrieving, Err: err}
	}
	s.metrics.StageDuration(domain.StageRetrieving, s.clock.Now().Sub(started))
	logger.Debug("Retrieved %d candidates", len(candidates))

	if len(candidates) == 0 {
		return []domain.Candidate{}, nil
	}

	a.transition(domain.QueryReranking)
	started = s.clock.Now()
	ranked, err := Rerank(ctx, s.reranker, question, candidates, topK)
	if err != nil {
		a.transition(domain.QueryFailed)
		logger.Error("Query %s: rerank failed: %v", a.id, err)
		return nil, err
	}
	s.metrics.StageDuration(domain.StageReranking, s.clock.Now().Sub(started))
	logger.Info("Query %s: %d sources after rerank", a.id, len(ranked))

	return ranked, nil
}

func generationError(err error) error {
	if !errors.Is(err, domain.ErrGeneration) {
		err = fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return &domain.StageError{Stage: domain.StageGenerating, Err: err}
}

// answer is the streamed result of Ask.
type answer struct {
	mu      sync.Mutex
	id      string
	state   domain.QueryState
	sources []domain.Candidate
	stream  driven.TokenStream
	err     error
	started time.Time
	clock   Clock
	metrics driven.MetricsRecorder
}

var _ driving.Answer = (*answer)(nil)

func newAnswer() *answer {
	return &answer{
		id:    uuid.NewString(),
		state: domain.QueryEmbedding,
	}
}

func (a *answer) transition(to domain.QueryState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	logger.Debug("Query %s: %s -> %s", a.id, a.state, to)
	a.state = to
}

// ID identifies the query in logs.
func (a *answer) ID() string { return a.id }

// State returns the current pipeline state.
func (a *answer) State() domain.QueryState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Sources returns the candidates passed to the model, in rank order.
func (a *answer) Sources() []domain.Candidate {
	return a.sources
}

// Next pulls one token from the model. The upstream read happens without
// holding the lock so Close can interrupt it from another goroutine.
func (a *answer) Next() (string, bool, error) {
	a.mu.Lock()
	switch a.state {
	case domain.QueryEmpty, domain.QueryDone:
		a.mu.Unlock()
		return "", true, nil
	case domain.QueryFailed:
		err := a.err
		a.mu.Unlock()
		return "", true, err
	}
	stream := a.stream
	a.mu.Unlock()

	if stream == nil {
		return "", true, nil
	}

	token, done, err := stream.Next()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == domain.QueryFailed {
		return "", true, a.err
	}
	if err != nil {
		a.err = generationError(err)
		a.state = domain.QueryFailed
		_ = stream.Close()
		logger.Error("Query %s: generation failed: %v", a.id, err)
		return "", true, a.err
	}
	if done {
		a.state = domain.QueryDone
		_ = stream.Close()
		a.observe()
		return "", true, nil
	}
	return token, false, nil
}

// Close stops generation. Closing an unfinished answer marks it failed.
func (a *answer) Close() error {
	a.mu.Lock()
	if a.state == domain.QueryGenerating {
		a.state = domain.QueryFailed
		a.err = generationError(context.Canceled)
	}
	stream := a.stream
	a.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Close()
}

// observe records the generation duration (caller holds lock).
func (a *answer) observe() {
	if a.clock == nil || a.metrics == nil || a.started.IsZero() {
		return
	}
	a.metrics.StageDuration(domain.StageGenerating, a.clock.Now().Sub(a.started))
}
