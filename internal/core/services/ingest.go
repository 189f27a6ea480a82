package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/pdfrag/internal/chunker"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestConfig holds chunking parameters for ingestion.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// IngestService runs the ingestion pipeline: extract, chunk, embed, load.
type IngestService struct {
	extractor   driven.Extractor
	store       driven.ChunkStore
	checkpoints driven.CheckpointStore
	embedder    *Embedder
	cfg         IngestConfig
	clock       Clock
	metrics     driven.MetricsRecorder
}

// NewIngestService creates a new ingestion service.
func NewIngestService(
	extractor driven.Extractor,
	store driven.ChunkStore,
	checkpoints driven.CheckpointStore,
	embedder *Embedder,
	cfg IngestConfig,
) *IngestService {
	if cfg.ChunkSize == 0 && cfg.ChunkOverlap == 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
		cfg.ChunkOverlap = chunker.DefaultChunkOverlap
	}

	return &IngestService{
		extractor:   extractor,
		store:       store,
		checkpoints: checkpoints,
		embedder:    embedder,
		cfg:         cfg,
		clock:       SystemClock{},
		metrics:     nopMetrics{},
	}
}

// SetMetrics attaches a metrics recorder.
func (s *IngestService) SetMetrics(m driven.MetricsRecorder) {
	s.metrics = metricsOrNop(m)
}

// SetClock replaces the wall clock used for durations.
func (s *IngestService) SetClock(c Clock) {
	s.clock = c
}

// IngestFile ingests one PDF. The returned report is always populated; err is
// non-nil when the file failed.
func (s *IngestService) IngestFile(ctx context.Context, path string) (domain.IngestReport, error) {
	started := s.clock.Now()
	filename := domain.FilenameOf(path)
	report := domain.IngestReport{Filename: filename}

	logger.Section("Ingest " + filename)

	report, err := s.ingest(ctx, path, report)
	report.Duration = s.clock.Now().Sub(started)
	report.Err = err
	if err != nil {
		report.Status = domain.IngestFailed
	}
	s.metrics.DocumentProcessed(report.Status)

	return report, err
}

func (s *IngestService) ingest(ctx context.Context, path string, report domain.IngestReport) (domain.IngestReport, error) {
	filename := report.Filename

	exists, err := s.store.Exists(ctx, filename)
	if err != nil {
		return report, &domain.StageError{Filename: filename, Stage: domain.StageLoading, Err: err}
	}
	if exists {
		// Rows are only written once a load commits, so any checkpoint left
		// behind is stale.
		if err := s.checkpoints.Delete(ctx, filename); err != nil {
			logger.Warn("%s: remove stale checkpoint: %v", filename, err)
		}
		logger.Info("%s: already in database, skipping", filename)
		report.Status = domain.IngestSkipped
		return report, nil
	}

	cp, err := s.checkpoints.Load(ctx, filename)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cp = nil
	case err != nil:
		return report, &domain.StageError{Filename: filename, Stage: domain.StageEmbedding, Err: fmt.Errorf("load checkpoint: %w", err)}
	default:
		report.Resumed = true
		logger.Info("%s: resuming from checkpoint at %d/%d", filename, cp.Cursor(), len(cp.Chunks))
	}

	var pages []domain.Page
	if cp == nil {
		stageStart := s.clock.Now()
		pages, err = s.extractor.Extract(ctx, path)
		if err != nil {
			return report, &domain.StageError{Filename: filename, Stage: domain.StageExtracting, Err: err}
		}
		s.metrics.StageDuration(domain.StageExtracting, s.clock.Now().Sub(stageStart))
		logger.Debug("%s: extracted %d pages", filename, len(pages))
	}

	cp, err = Resume(cp, filename, pages, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return report, &domain.StageError{Filename: filename, Stage: domain.StageChunking, Err: err}
	}
	report.Chunks = len(cp.Chunks)

	if len(cp.Chunks) == 0 {
		logger.Warn("%s: no extractable text, skipping", filename)
		report.Status = domain.IngestSkipped
		return report, nil
	}

	stageStart := s.clock.Now()
	before := cp.Cursor()
	if err := s.embedder.Run(ctx, cp); err != nil {
		return report, err
	}
	s.metrics.StageDuration(domain.StageEmbedding, s.clock.Now().Sub(stageStart))

	// Persist the completed state unless the periodic save already did, so a
	// failed load can be retried without re-embedding.
	if cp.Cursor() > before && cp.Cursor()%s.embedder.Config().CheckpointEvery != 0 {
		if err := s.embedder.save(ctx, cp); err != nil {
			return report, err
		}
	}

	rows, err := cp.Rows()
	if err != nil {
		return report, &domain.StageError{Filename: filename, Stage: domain.StageLoading, Err: err}
	}

	stageStart = s.clock.Now()
	n, err := s.store.BulkLoad(ctx, rows)
	if err != nil {
		logger.Error("%s: database load failed, checkpoint kept: %v", filename, err)
		return report, &domain.StageError{Filename: filename, Stage: domain.StageLoading, Err: err}
	}
	s.metrics.StageDuration(domain.StageLoading, s.clock.Now().Sub(stageStart))
	logger.Info("%s: successfully ingested %d chunks", filename, n)

	if err := s.checkpoints.Delete(ctx, filename); err != nil {
		logger.Warn("%s: remove checkpoint: %v", filename, err)
	}

	report.Status = domain.IngestLoaded
	return report, nil
}

// IngestAll ingests paths in order. Extraction, embedding and load failures
// are recorded and the next file is attempted; an exhausted rate-limit
// backoff or a cancelled context ends the run.
func (s *IngestService) IngestAll(ctx context.Context, paths []string) ([]domain.IngestReport, error) {
	reports := make([]domain.IngestReport, 0, len(paths))
	var errs []error

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report, err := s.IngestFile(ctx, path)
		reports = append(reports, report)
		if err == nil {
			continue
		}

		errs = append(errs, err)
		if errors.Is(err, domain.ErrRateLimitExceeded) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if errors.Is(err, domain.ErrExtraction) {
			logger.Warn("%s: skipped, %v", report.Filename, err)
		}
	}

	return reports, errors.Join(errs...)
}

// Discover lists the files in dir the extractor can read, sorted by name.
func (s *IngestService) Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	exts := s.extractor.SupportedExtensions()
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(entry.Name()))) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// SupportedExtensions lists the file extensions the extractor accepts.
func (s *IngestService) SupportedExtensions() []string {
	return s.extractor.SupportedExtensions()
}

// DeleteDocument removes a document's chunks and any pending checkpoint.
func (s *IngestService) DeleteDocument(ctx context.Context, filename string) (int64, error) {
	n, err := s.store.Delete(ctx, filename)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", filename, err)
	}
	if err := s.checkpoints.Delete(ctx, filename); err != nil {
		return n, fmt.Errorf("delete checkpoint %s: %w", filename, err)
	}
	logger.Info("%s: deleted %d chunks", filename, n)
	return n, nil
}

// ListDocuments summarises stored documents.
func (s *IngestService) ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error) {
	return s.store.List(ctx)
}

// ListCheckpoints returns filenames with pending checkpoints.
func (s *IngestService) ListCheckpoints(ctx context.Context) ([]string, error) {
	return s.checkpoints.List(ctx)
}

// ClearCheckpoint discards a pending checkpoint.
func (s *IngestService) ClearCheckpoint(ctx context.Context, filename string) error {
	return s.checkpoints.Delete(ctx, filename)
}

// RunWithRetry calls fn until it succeeds, waiting interval between attempts.
// maxAttempts <= 0 retries until ctx is cancelled.
func RunWithRetry(ctx context.Context, clock Clock, interval time.Duration, maxAttempts int, fn func(context.Context) error) error {
	if clock == nil {
		clock = SystemClock{}
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		logger.Error("Ingest failed: %v. Retrying in %s", err, interval)
		if sleepErr := clock.Sleep(ctx, interval); sleepErr != nil {
			return err
		}
	}
}
