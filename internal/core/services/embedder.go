package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/pdfrag/internal/chunker"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Default pacing for the embedding provider.
const (
	DefaultSubBatchSize    = 10
	DefaultRequestInterval = 20500 * time.Millisecond
	DefaultCheckpointEvery = 100
	DefaultBackoffBase     = 5 * time.Second
	DefaultBackoffFactor   = 1.5
	DefaultBackoffMax      = 120 * time.Second
)

// EmbedderConfig controls request pacing, checkpointing and rate-limit backoff.
type EmbedderConfig struct {
	// SubBatchSize is the number of chunks per embedding request.
	SubBatchSize int

	// RequestInterval is the minimum time between request starts.
	RequestInterval time.Duration

	// CheckpointEvery saves progress when the embedded count is a multiple of it.
	CheckpointEvery int

	// BackoffBase is the first wait after a rate-limit rejection.
	BackoffBase time.Duration

	// BackoffFactor grows the wait after every rejection.
	BackoffFactor float64

	// BackoffMax is the ceiling; once the next wait would exceed it the run fails.
	BackoffMax time.Duration
}

// EmbedderConfigFromSettings maps resolved settings onto an embedder config.
func EmbedderConfigFromSettings(s domain.EmbeddingSettings) EmbedderConfig {
	return EmbedderConfig{
		SubBatchSize:    s.SubBatchSize,
		RequestInterval: s.RequestInterval,
		CheckpointEvery: s.CheckpointEvery,
		BackoffBase:     s.BackoffBase,
		BackoffFactor:   s.BackoffFactor,
		BackoffMax:      s.BackoffMax,
	}
}

// Embedder embeds a checkpoint's chunks in paced sub-batches, saving progress
// periodically so an interrupted run resumes where it stopped.
type Embedder struct {
	service     driven.EmbeddingService
	checkpoints driven.CheckpointStore
	cfg         EmbedderConfig
	clock       Clock
	metrics     driven.MetricsRecorder
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) EmbedderOption {
	return func(e *Embedder) {
		e.clock = c
	}
}

// WithEmbedderMetrics attaches a metrics recorder.
func WithEmbedderMetrics(m driven.MetricsRecorder) EmbedderOption {
	return func(e *Embedder) {
		e.metrics = metricsOrNop(m)
	}
}

// NewEmbedder creates a checkpointed embedder. Zero config fields take defaults.
func NewEmbedder(
	service driven.EmbeddingService,
	checkpoints driven.CheckpointStore,
	cfg EmbedderConfig,
	opts ...EmbedderOption,
) *Embedder {
	if cfg.SubBatchSize <= 0 {
		cfg.SubBatchSize = DefaultSubBatchSize
	}
	if cfg.RequestInterval < 0 {
		cfg.RequestInterval = 0
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = DefaultCheckpointEvery
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}

	e := &Embedder{
		service:     service,
		checkpoints: checkpoints,
		cfg:         cfg,
		clock:       SystemClock{},
		metrics:     nopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Embedder) Config() EmbedderConfig {
	return e.cfg
}

// Run embeds every chunk from cp.Cursor() onward, appending to cp.Vectors.
// On return without error, cp is complete. On error, cp holds every vector
// produced so far and the last multiple-of-CheckpointEvery state is durable.
func (e *Embedder) Run(ctx context.Context, cp *domain.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	total := len(cp.Chunks)
	start := cp.Cursor()
	if start >= total {
		return nil
	}
	if e.service == nil {
		return &domain.StageError{Filename: cp.Filename, Stage: domain.StageEmbedding, Err: domain.ErrEmbeddingUnavailable}
	}

	logger.Info("%s: embedding %d chunks (starting at %d)", cp.Filename, total-start, start)

	batches, err := chunker.Batch(cp.Chunks[start:], e.cfg.SubBatchSize)
	if err != nil {
		return err
	}

	for batch := range batches {
		requestStart := e.clock.Now()

		vectors, err := e.embedWithBackoff(ctx, cp.Filename, batch)
		if err != nil {
			return err
		}
		cp.Vectors = append(cp.Vectors, vectors...)
		e.metrics.ChunksEmbedded(len(vectors))

		done := cp.Cursor()
		logger.Info("%s: progress %d/%d", cp.Filename, done, total)

		if done%e.cfg.CheckpointEvery == 0 {
			if err := e.save(ctx, cp); err != nil {
				return err
			}
			logger.Info("%s: checkpoint saved at %d", cp.Filename, done)
		}

		if done < total {
			elapsed := e.clock.Now().Sub(requestStart)
			wait := max(0, e.cfg.RequestInterval-elapsed)
			logger.Debug("%s: batch took %s, sleeping %s", cp.Filename, elapsed.Round(time.Millisecond), wait)
			if err := e.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	return nil
}

// embedWithBackoff sends one sub-batch, waiting and retrying on rate limits.
// The same sub-batch is retried; no chunk is skipped.
func (e *Embedder) embedWithBackoff(ctx context.Context, filename string, batch []string) ([][]float32, error) {
	delay := e.cfg.BackoffBase

	for {
		vectors, err := e.service.EmbedBatch(ctx, batch, domain.InputDocument)
		if err == nil {
			e.metrics.EmbeddingRequest("ok")
			if len(vectors) != len(batch) {
				return nil, &domain.StageError{
					Filename: filename,
					Stage:    domain.StageEmbedding,
					Err: fmt.Errorf("%w: got %d vectors for %d texts",
						domain.ErrEmbeddingService, len(vectors), len(batch)),
				}
			}
			return vectors, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if !errors.Is(err, domain.ErrRateLimited) {
			e.metrics.EmbeddingRequest("error")
			logger.Error("%s: embedding error: %v", filename, err)
			return nil, &domain.StageError{
				Filename: filename,
				Stage:    domain.StageEmbedding,
				Err:      fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err),
			}
		}

		e.metrics.EmbeddingRequest("rate_limited")
		wait := delay
		var rl *domain.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > wait {
			wait = rl.RetryAfter
		}

		logger.Warn("%s: rate limit reached, retrying in %s", filename, wait)
		if err := e.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}

		delay = time.Duration(float64(delay) * e.cfg.BackoffFactor)
		if delay > e.cfg.BackoffMax {
			return nil, &domain.StageError{
				Filename: filename,
				Stage:    domain.StageEmbedding,
				Err:      fmt.Errorf("%w: next wait %s exceeds %s: %w", domain.ErrRateLimitExceeded, delay, e.cfg.BackoffMax, err),
			}
		}
	}
}

func (e *Embedder) save(ctx context.Context, cp *domain.Checkpoint) error {
	if err := e.checkpoints.Save(ctx, cp); err != nil {
		return &domain.StageError{
			Filename: cp.Filename,
			Stage:    domain.StageEmbedding,
			Err:      fmt.Errorf("save checkpoint: %w", err),
		}
	}
	e.metrics.CheckpointSaved()
	return nil
}

// Resume builds the work state for a file. With a checkpoint it returns the
// checkpoint as-is, so embedding continues at len(Vectors). Without one, it
// chunks every page and returns a fresh checkpoint with no vectors.
func Resume(cp *domain.Checkpoint, filename string, pages []domain.Page, size, overlap int) (*domain.Checkpoint, error) {
	if cp != nil {
		if err := cp.Validate(); err != nil {
			return nil, err
		}
		return cp, nil
	}

	chunks, meta, err := chunker.New(chunker.WithChunkSize(size), chunker.WithOverlap(overlap)).ChunkPages(filename, pages)
	if err != nil {
		return nil, err
	}

	return &domain.Checkpoint{
		Filename: filename,
		Chunks:   chunks,
		Metadata: meta,
		Vectors:  make([][]float32, 0, len(chunks)),
	}, nil
}
