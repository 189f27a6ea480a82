package domain

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies a model provider for embeddings, reranking or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderVoyage is the Voyage AI cloud API.
	AIProviderVoyage AIProvider = "voyage"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or any compatible server.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderTEI is a HuggingFace text-embeddings-inference server hosting a cross-encoder.
	AIProviderTEI AIProvider = "tei"

	// AIProviderNone disables an optional stage.
	AIProviderNone AIProvider = "none"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderVoyage, AIProviderOllama, AIProviderOpenAI, AIProviderTEI, AIProviderNone:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderVoyage || p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderTEI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderVoyage:
		return "Voyage AI (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud or compatible)"
	case AIProviderTEI:
		return "Text Embeddings Inference (local)"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// DatabaseSettings locates the PostgreSQL chunk store.
type DatabaseSettings struct {
	// URL is a full connection string. When set it wins over the parts below.
	URL string

	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// ConnString returns URL, or a postgres:// URL composed from the parts.
func (d DatabaseSettings) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	return u.String()
}

// ChunkingSettings controls the sliding window chunker.
type ChunkingSettings struct {
	Size      int
	Overlap   int
	BatchSize int
}

// EmbeddingSettings holds embedding provider configuration and pacing.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for Voyage and OpenAI).
	APIKey string

	// Dimensions is the embedding vector size stored in the database.
	Dimensions int

	// SubBatchSize is the number of chunks sent per embedding request.
	SubBatchSize int

	// RequestInterval is the minimum wall time between request starts.
	RequestInterval time.Duration

	// CheckpointEvery saves progress whenever this many chunks have been embedded.
	CheckpointEvery int

	// BackoffBase is the first wait after a rate-limit rejection.
	BackoffBase time.Duration

	// BackoffFactor multiplies the wait after each consecutive rejection.
	BackoffFactor float64

	// BackoffMax is the ceiling above which a rejection becomes fatal.
	BackoffMax time.Duration

	// RequestsPerMinute throttles provider calls client-side. Zero disables it.
	RequestsPerMinute int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderNone || e.Provider == AIProviderTEI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings tunes the hybrid retriever.
type RetrievalSettings struct {
	Limit             int
	DistanceThreshold float64
	Lexical           LexicalBackend
}

// Options converts the settings into retriever options.
func (r RetrievalSettings) Options() RetrievalOptions {
	return RetrievalOptions{
		Limit:             r.Limit,
		DistanceThreshold: r.DistanceThreshold,
		Lexical:           r.Lexical,
	}
}

// RerankerSettings holds cross-encoder configuration.
type RerankerSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// TopK is the number of candidates kept after reranking.
	TopK int
}

// IsConfigured returns true if a reranker should be used.
func (r RerankerSettings) IsConfigured() bool {
	switch r.Provider {
	case AIProviderTEI:
		return true
	case AIProviderVoyage:
		return r.APIKey != ""
	default:
		return false
	}
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// NumCtx is the context window requested from the model.
	NumCtx int

	// Timeout bounds connecting and each silent gap in a streamed answer.
	Timeout time.Duration
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if l.Provider != AIProviderOllama && l.Provider != AIProviderOpenAI {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// CheckpointBackend selects where checkpoints are persisted.
type CheckpointBackend string

// Checkpoint backends.
const (
	CheckpointFile   CheckpointBackend = "file"
	CheckpointSQLite CheckpointBackend = "sqlite"
)

// IsValid returns true if the backend is recognised.
func (b CheckpointBackend) IsValid() bool {
	return b == CheckpointFile || b == CheckpointSQLite
}

// IngestSettings controls the ingestion job.
type IngestSettings struct {
	// DataDir is scanned for PDFs when no paths are given.
	DataDir string

	// CheckpointDir holds checkpoint files or the checkpoint database.
	CheckpointDir string

	// CheckpointBackend selects file or sqlite checkpoints.
	CheckpointBackend CheckpointBackend

	// RetryInterval is the wait between whole-run retries.
	RetryInterval time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Database  DatabaseSettings
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	Retrieval RetrievalSettings
	Reranker  RerankerSettings
	LLM       LLMSettings
	Ingest    IngestSettings

	// LogFile receives a copy of all log output when non-empty.
	LogFile string
}

// DefaultAppSettings returns settings with the defaults the pipeline was tuned with.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Database: DatabaseSettings{
			Host: "localhost",
			Port: "5432",
			Name: "postgres",
		},
		Chunking: ChunkingSettings{
			Size:      1000,
			Overlap:   200,
			BatchSize: 128,
		},
		Embedding: EmbeddingSettings{
			Provider:        AIProviderVoyage,
			Model:           "voyage-code-3",
			Dimensions:      1024,
			SubBatchSize:    10,
			RequestInterval: 20500 * time.Millisecond,
			CheckpointEvery: 100,
			BackoffBase:     5 * time.Second,
			BackoffFactor:   1.5,
			BackoffMax:      120 * time.Second,
		},
		Retrieval: RetrievalSettings{
			Limit:             20,
			DistanceThreshold: 0.5,
			Lexical:           LexicalTSVector,
		},
		Reranker: RerankerSettings{
			Provider: AIProviderTEI,
			Model:    "cross-encoder/ms-marco-MiniLM-L-6-v2",
			BaseURL:  "http://localhost:8080",
			TopK:     5,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    "llama3.1",
			BaseURL:  "http://localhost:11434",
			NumCtx:   8192,
			Timeout:  60 * time.Second,
		},
		Ingest: IngestSettings{
			DataDir:           "data",
			CheckpointDir:     "data/checkpoints",
			CheckpointBackend: CheckpointFile,
			RetryInterval:     10 * time.Second,
		},
		LogFile: "rag_system.log",
	}
}

// Validate checks settings that would otherwise fail deep inside the pipeline.
func (s *AppSettings) Validate() error {
	switch {
	case s.Chunking.Size <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, s.Chunking.Size)
	case s.Chunking.Overlap < 0:
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidInput, s.Chunking.Overlap)
	case s.Chunking.Overlap >= s.Chunking.Size:
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrInvalidInput, s.Chunking.Overlap, s.Chunking.Size)
	case s.Chunking.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidInput, s.Chunking.BatchSize)
	case s.Embedding.SubBatchSize <= 0:
		return fmt.Errorf("%w: embedding sub-batch size must be positive", ErrInvalidInput)
	case s.Embedding.CheckpointEvery <= 0:
		return fmt.Errorf("%w: checkpoint interval must be positive", ErrInvalidInput)
	case s.Embedding.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factor must be at least 1", ErrInvalidInput)
	case s.Retrieval.Limit <= 0:
		return fmt.Errorf("%w: retrieval limit must be positive", ErrInvalidInput)
	case !s.Retrieval.Lexical.IsValid():
		return fmt.Errorf("%w: unknown lexical backend %q", ErrInvalidInput, s.Retrieval.Lexical)
	case s.Reranker.TopK <= 0:
		return fmt.Errorf("%w: rerank top-k must be positive", ErrInvalidInput)
	case !s.Ingest.CheckpointBackend.IsValid():
		return fmt.Errorf("%w: unknown checkpoint backend %q", ErrInvalidInput, s.Ingest.CheckpointBackend)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderVoyage,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllRerankerProviders returns providers that support reranking.
func AllRerankerProviders() []AIProvider {
	return []AIProvider{
		AIProviderTEI,
		AIProviderVoyage,
		AIProviderNone,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderVoyage: "voyage-code-3",
		AIProviderOllama: "mxbai-embed-large",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"voyage-code-3":          1024,
		"voyage-3":               1024,
		"voyage-3-lite":          512,
		"mxbai-embed-large":      1024,
		"nomic-embed-text":       768,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
	}
}
