package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

func TestSettingsShowCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand("settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Current Settings")
	assert.Contains(t, out, "Config file: :memory:")
	assert.Contains(t, out, "[chunking]")
	assert.Contains(t, out, "  size: 1000")
	assert.Contains(t, out, "  overlap: 200")
	assert.Contains(t, out, "[embedding]")
	assert.Contains(t, out, "  provider: voyage")
	assert.Contains(t, out, "  api_key: (not set)")
	assert.Contains(t, out, "Warning: embedding provider is not configured.")
}

func TestSettingsCmd_DefaultsToShow(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand("settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Current Settings")
}

func TestSettingsShowCmd_MasksSecrets(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, settingsService.Set("embedding.api_key", "pa-1234567890abcdef"))

	out, err := runCommand("settings", "show")

	require.NoError(t, err)
	assert.NotContains(t, out, "pa-1234567890abcdef")
	assert.NotContains(t, out, "Warning: embedding provider is not configured.")
}

func TestSettingsSetCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand("settings", "set", "chunking.size", "800")

	require.NoError(t, err)
	assert.Contains(t, out, "chunking.size set to 800")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, 800, settings.Chunking.Size)
}

func TestSettingsSetCmd_MasksSecretEcho(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand("settings", "set", "llm.api_key", "sk-1234567890abcdef")

	require.NoError(t, err)
	assert.Contains(t, out, "llm.api_key set to sk-1...cdef")
}

func TestSettingsSetCmd_UnknownKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := runCommand("settings", "set", "search.mode", "hybrid")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsSetCmd_InvalidValue(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := runCommand("settings", "set", "embedding.provider", "tei")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set embedding.provider")
}

func TestSettingsSetCmd_ArgCount(t *testing.T) {
	_, err := runCommand("settings", "set", "a", "b", "c")

	require.Error(t, err)
}

func TestSettingsCheckCmd_AllReachable(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	configChecker = &mockConfigChecker{checks: []ai.Check{
		{Stage: domain.StageEmbedding, Provider: domain.AIProviderOllama, Model: "mxbai-embed-large"},
		{Stage: domain.StageReranking, Provider: domain.AIProviderNone, Skipped: true},
		{Stage: domain.StageGenerating, Provider: domain.AIProviderOllama, Model: "llama3.1"},
	}}

	out, err := runCommand("settings", "check")

	require.NoError(t, err)
	assert.Contains(t, out, "ollama (mxbai-embed-large): OK")
	assert.Contains(t, out, "none: skipped")
	assert.Contains(t, out, "All providers reachable.")
}

func TestSettingsCheckCmd_Failure(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	configChecker = &mockConfigChecker{checks: []ai.Check{
		{Stage: domain.StageEmbedding, Provider: domain.AIProviderVoyage, Model: "voyage-code-3", Err: errors.New("service unreachable")},
		{Stage: domain.StageGenerating, Provider: domain.AIProviderOllama, Model: "llama3.1"},
	}}

	out, err := runCommand("settings", "check")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 provider check(s) failed")
	assert.Contains(t, out, "voyage (voyage-code-3): FAILED: service unreachable")
}

func TestSettingsCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	settingsService = nil

	for _, args := range [][]string{{"settings", "show"}, {"settings", "set", "chunking.size", "1"}, {"settings", "check"}} {
		_, err := runCommand(args...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "settings service not configured")
	}
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, isSecretKey("embedding.api_key"))
	assert.True(t, isSecretKey("database.password"))
	assert.True(t, isSecretKey("database.url"))
	assert.False(t, isSecretKey("database.user"))
	assert.False(t, isSecretKey("llm.model"))
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.input))
		})
	}
}
