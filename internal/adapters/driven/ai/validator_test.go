package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

func TestNewConfigValidator(t *testing.T) {
	validator := NewConfigValidator()

	require.NotNil(t, validator)
}

func TestConfigValidator_NilConfigs(t *testing.T) {
	validator := NewConfigValidator()
	ctx := context.Background()

	// nil config returns nil (graceful handling - nothing to validate)
	assert.NoError(t, validator.ValidateEmbedding(ctx, nil))
	assert.NoError(t, validator.ValidateReranker(ctx, nil))
	assert.NoError(t, validator.ValidateLLM(ctx, nil))
}

func TestConfigValidator_UnconfiguredProviders(t *testing.T) {
	validator := NewConfigValidator()
	ctx := context.Background()

	assert.NoError(t, validator.ValidateEmbedding(ctx, &domain.EmbeddingSettings{Model: "m"}))
	assert.NoError(t, validator.ValidateReranker(ctx, &domain.RerankerSettings{Provider: domain.AIProviderNone}))
	assert.NoError(t, validator.ValidateLLM(ctx, &domain.LLMSettings{Model: "m"}))
}

func newOllamaServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestConfigValidator_ValidateAll(t *testing.T) {
	healthy := newOllamaServer(t, true)
	down := newOllamaServer(t, false)

	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Embedding.BaseURL = healthy.URL
	settings.Reranker.BaseURL = down.URL
	settings.LLM.BaseURL = healthy.URL

	checks := NewConfigValidator().ValidateAll(context.Background(), &settings)
	require.Len(t, checks, 3)

	assert.Equal(t, domain.StageEmbedding, checks[0].Stage)
	assert.NoError(t, checks[0].Err)

	assert.Equal(t, domain.StageReranking, checks[1].Stage)
	require.Error(t, checks[1].Err)
	assert.Contains(t, checks[1].Err.Error(), "service unreachable")

	assert.Equal(t, domain.StageGenerating, checks[2].Stage)
	assert.Equal(t, domain.AIProviderOllama, checks[2].Provider)
	assert.NoError(t, checks[2].Err)
}

func TestConfigValidator_ValidateAll_Skipped(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Reranker.Provider = domain.AIProviderNone
	settings.LLM.Provider = domain.AIProviderNone

	checks := NewConfigValidator().ValidateAll(context.Background(), &settings)

	for _, c := range checks {
		assert.True(t, c.Skipped, c.Stage)
		assert.NoError(t, c.Err, c.Stage)
	}
}
