// Package ai provides factory functions for creating model provider adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/pdfrag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/pdfrag/internal/adapters/driven/embedding/openai"
	voyageembed "github.com/custodia-labs/pdfrag/internal/adapters/driven/embedding/voyage"
	ollamallm "github.com/custodia-labs/pdfrag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/pdfrag/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/reranker/tei"
	voyagererank "github.com/custodia-labs/pdfrag/internal/adapters/driven/reranker/voyage"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Services holds the model adapters built from settings. Optional stages
// are nil when not configured.
type Services struct {
	Embedding driven.EmbeddingService
	Reranker  driven.Reranker
	Generator driven.Generator
}

// Close releases all resources held by the services.
func (s *Services) Close() {
	if s.Embedding != nil {
		_ = s.Embedding.Close()
	}
	if s.Reranker != nil {
		_ = s.Reranker.Close()
	}
	if s.Generator != nil {
		_ = s.Generator.Close()
	}
}

// CreateServices builds every configured adapter. An unconfigured stage is
// left nil; a misconfigured one is an error.
func CreateServices(settings *domain.AppSettings) (*Services, error) {
	embedding, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	reranker, err := CreateReranker(&settings.Reranker)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankerUnavailable, err)
	}
	generator, err := CreateGenerator(&settings.LLM)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	return &Services{Embedding: embedding, Reranker: reranker, Generator: generator}, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderVoyage:
		return voyageembed.NewEmbeddingService(voyageembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Dimensions:        dimensionsFor(settings),
			RequestsPerMinute: settings.RequestsPerMinute,
		})

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensionsFor(settings),
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensionsFor(settings),
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// dimensionsFor prefers the configured width, then the known model width.
func dimensionsFor(settings *domain.EmbeddingSettings) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	return domain.EmbeddingDimensions()[settings.Model]
}

// CreateReranker creates the configured cross-encoder. Returns nil when
// reranking is disabled.
func CreateReranker(settings *domain.RerankerSettings) (driven.Reranker, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderTEI:
		return tei.New(tei.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderVoyage:
		return voyagererank.New(voyagererank.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported reranker provider: %s", settings.Provider)
	}
}

// CreateGenerator creates the appropriate generation service based on settings.
// Returns nil if the provider is not configured.
func CreateGenerator(settings *domain.LLMSettings) (driven.Generator, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.New(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			NumCtx:  settings.NumCtx,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.New(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// pinger is implemented by adapters that can check connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// ping checks svc with a short timeout. Adapters without Ping pass.
func ping(ctx context.Context, svc any) error {
	p, ok := svc.(pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}
