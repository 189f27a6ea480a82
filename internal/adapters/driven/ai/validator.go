package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// Check is the outcome of validating one stage.
type Check struct {
	Stage    domain.Stage
	Provider domain.AIProvider
	Model    string

	// Skipped is true when the stage is not configured.
	Skipped bool
	Err     error
}

// ConfigValidator validates AI provider configurations by pinging them.
type ConfigValidator struct{}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding validates an embedding configuration by pinging the provider.
func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()
	return ping(ctx, svc)
}

// ValidateReranker validates a reranker configuration. Providers without a
// health endpoint are only constructed.
func (v *ConfigValidator) ValidateReranker(ctx context.Context, settings *domain.RerankerSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	r, err := CreateReranker(settings)
	if err != nil || r == nil {
		return err
	}
	defer r.Close()
	return ping(ctx, r)
}

// ValidateLLM validates an LLM configuration by pinging the provider.
func (v *ConfigValidator) ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	g, err := CreateGenerator(settings)
	if err != nil || g == nil {
		return err
	}
	defer g.Close()
	return ping(ctx, g)
}

// ValidateAll checks every stage and reports each outcome in pipeline order.
func (v *ConfigValidator) ValidateAll(ctx context.Context, settings *domain.AppSettings) []Check {
	checks := []Check{
		{
			Stage:    domain.StageEmbedding,
			Provider: settings.Embedding.Provider,
			Model:    settings.Embedding.Model,
			Skipped:  !settings.Embedding.IsConfigured(),
		},
		{
			Stage:    domain.StageReranking,
			Provider: settings.Reranker.Provider,
			Model:    settings.Reranker.Model,
			Skipped:  !settings.Reranker.IsConfigured(),
		},
		{
			Stage:    domain.StageGenerating,
			Provider: settings.LLM.Provider,
			Model:    settings.LLM.Model,
			Skipped:  !settings.LLM.IsConfigured(),
		},
	}

	checks[0].Err = wrapCheck(v.ValidateEmbedding(ctx, &settings.Embedding))
	checks[1].Err = wrapCheck(v.ValidateReranker(ctx, &settings.Reranker))
	checks[2].Err = wrapCheck(v.ValidateLLM(ctx, &settings.LLM))
	return checks
}

func wrapCheck(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("service unreachable: %w", err)
}
