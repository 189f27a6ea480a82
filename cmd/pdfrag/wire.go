package main

import (
	"context"
	"fmt"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/extractor/pdf"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pdfrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/core/services"
	"github.com/custodia-labs/pdfrag/internal/logger"
	"github.com/custodia-labs/pdfrag/internal/metrics"
)

// openBackend connects the chunk store, checkpoint store and providers, and
// builds the ingest and query services on top of them.
func openBackend(ctx context.Context, settings *domain.AppSettings, recorder *metrics.Recorder) (*cli.Backend, error) {
	store, err := postgres.New(ctx, postgres.Config{
		ConnString: settings.Database.ConnString(),
		Dimensions: settings.Embedding.Dimensions,
		Lexical:    settings.Retrieval.Lexical,
	})
	if err != nil {
		return nil, err
	}

	checkpoints, closeCheckpoints, err := openCheckpoints(settings.Ingest)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	providers, err := ai.CreateServices(settings)
	if err != nil {
		closeCheckpoints()
		_ = store.Close()
		return nil, err
	}

	prompts, err := file.NewPromptStore("", map[string]string{
		driven.PromptAnswerSystem: services.DefaultAnswerPreamble,
	})
	if err != nil {
		logger.Warn("Prompt store unavailable, using built-in prompt: %v", err)
	}

	embedder := services.NewEmbedder(
		providers.Embedding,
		checkpoints,
		services.EmbedderConfigFromSettings(settings.Embedding),
		services.WithEmbedderMetrics(recorder),
	)

	ingest := services.NewIngestService(pdf.New(), store, checkpoints, embedder, services.IngestConfig{
		ChunkSize:    settings.Chunking.Size,
		ChunkOverlap: settings.Chunking.Overlap,
	})
	ingest.SetMetrics(recorder)

	query := services.NewQueryService(providers.Embedding, store, providers.Reranker, providers.Generator, services.QueryConfig{
		Retrieval: settings.Retrieval.Options(),
		TopK:      settings.Reranker.TopK,
		Model:     settings.LLM.Model,
		NumCtx:    settings.LLM.NumCtx,
	})
	if prompts != nil {
		query.SetPromptStore(prompts)
	}
	query.SetMetrics(recorder)

	logger.Debug("Backend ready: embedding=%s reranker=%s llm=%s checkpoints=%s",
		settings.Embedding.Provider, settings.Reranker.Provider, settings.LLM.Provider, settings.Ingest.CheckpointBackend)

	return &cli.Backend{
		Ingest: ingest,
		Query:  query,
		Schema: store,
		Close: func() error {
			providers.Close()
			closeCheckpoints()
			return store.Close()
		},
	}, nil
}

// openCheckpoints returns the configured checkpoint store and its closer.
func openCheckpoints(settings domain.IngestSettings) (driven.CheckpointStore, func(), error) {
	switch settings.CheckpointBackend {
	case domain.CheckpointSQLite:
		db, err := sqlite.NewStore(settings.CheckpointDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open checkpoint database: %w", err)
		}
		return db.CheckpointStore(), func() { _ = db.Close() }, nil

	default:
		store, err := file.NewCheckpointStore(settings.CheckpointDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
