package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtraction indicates a document could not be opened or parsed.
	// The document is skipped; other documents in the same run continue.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbeddingService indicates a non rate-limit failure from the embedding provider.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrRateLimited indicates the provider rejected a request because of its rate limit.
	// The request may succeed if retried later.
	ErrRateLimited = errors.New("rate limited")

	// ErrRateLimitExceeded indicates backoff grew past its ceiling without a successful request.
	ErrRateLimitExceeded = errors.New("rate limit backoff exceeded")

	// ErrStore indicates the chunk store could not be read or written.
	ErrStore = errors.New("chunk store error")

	// ErrGeneration indicates the language model failed before or during streaming.
	ErrGeneration = errors.New("generation failed")

	// ErrLLMUnavailable indicates the generation service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRerankerUnavailable indicates the reranker is not configured.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
)

// ExtractionError reports a document that could not be read.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error { return e.Err }

// Is reports ErrExtraction as a match so callers can test the category.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// RateLimitError is returned by embedding adapters when the provider answers 429.
// RetryAfter is zero when the provider did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: %v", ErrRateLimited, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RateLimitError) Unwrap() error { return e.Err }

// Is reports ErrRateLimited as a match.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// StageError attaches the failing pipeline stage and document to an error.
type StageError struct {
	Filename string
	Stage    Stage
	Err      error
}

func (e *StageError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Filename, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error { return e.Err }

// Stage names a step of the ingestion or query pipeline.
type Stage string

// Pipeline stages.
const (
	StageExtracting Stage = "extracting"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageLoading    Stage = "loading"
	StageRetrieving Stage = "retrieving"
	StageReranking  Stage = "reranking"
	StageGenerating Stage = "generating"
)

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}
