// Package openai provides a streaming generation adapter using the OpenAI
// chat completions API or any compatible server.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Config holds configuration for the OpenAI generator.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is used when a request names none (default: gpt-4o-mini).
	Model string

	// Timeout bounds connecting, waiting for the response headers and each
	// gap between streamed deltas. Zero means no limit.
	Timeout time.Duration
}

// Generator streams chat completions.
type Generator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// New creates a new OpenAI generator.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = httpapi.StreamingHTTPClient(cfg.Timeout)

	return &Generator{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Stream sends the prompt as a single user message and streams the reply.
// NumCtx has no OpenAI equivalent and is ignored.
func (g *Generator) Stream(ctx context.Context, req domain.GenerationRequest) (driven.TokenStream, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Stream: true,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: openai: %w", domain.ErrGeneration, err)
	}

	return &tokenStream{stream: stream, cancel: cancel, idle: httpapi.NewIdleTimer(g.timeout, cancel)}, nil
}

// tokenStream adapts a go-openai stream to driven.TokenStream.
type tokenStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
	idle   *httpapi.IdleTimer

	closeOnce sync.Once
	closeErr  error
	finished  bool
}

// Next returns the next non-empty content delta.
func (s *tokenStream) Next() (string, bool, error) {
	if s.finished {
		return "", true, nil
	}

	defer s.idle.Disarm()

	for {
		s.idle.Arm()
		resp, err := s.stream.Recv()
		if s.idle.Fired() {
			return "", true, fmt.Errorf("%w: openai: no data for %s", domain.ErrGeneration, s.idle.Timeout())
		}
		if errors.Is(err, io.EOF) {
			s.finished = true
			return "", true, nil
		}
		if err != nil {
			return "", true, fmt.Errorf("%w: openai: %w", domain.ErrGeneration, err)
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				return choice.Delta.Content, false, nil
			}
		}
	}
}

// Close cancels the request and releases the connection.
func (s *tokenStream) Close() error {
	s.closeOnce.Do(func() {
		s.idle.Disarm()
		s.cancel()
		s.closeErr = s.stream.Close()
	})
	return s.closeErr
}

// ModelName returns the default model.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the API key by listing models.
func (g *Generator) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}
