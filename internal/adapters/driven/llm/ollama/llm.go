// Package ollama provides a streaming generation adapter using Ollama.
package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1"
	DefaultNumCtx  = 8192
)

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is used when a request names none (default: llama3.1).
	Model string

	// NumCtx is used when a request sets none (default: 8192).
	NumCtx int

	// Timeout bounds connecting, waiting for the response headers and each
	// gap between streamed chunks. A slow but live stream is never cut.
	// Zero means no limit.
	Timeout time.Duration
}

// Generator streams completions from /api/generate.
type Generator struct {
	api     *httpapi.Client
	model   string
	numCtx  int
	timeout time.Duration
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
}

// options holds generation parameters.
type options struct {
	NumCtx int `json:"num_ctx,omitempty"`
}

// generateChunk is one NDJSON line of a streamed /api/generate response.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// New creates a new Ollama generator.
func New(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.NumCtx == 0 {
		cfg.NumCtx = DefaultNumCtx
	}

	return &Generator{
		api:     httpapi.NewStreaming("ollama", cfg.BaseURL, cfg.Timeout),
		model:   cfg.Model,
		numCtx:  cfg.NumCtx,
		timeout: cfg.Timeout,
	}
}

// Stream starts a streamed generation. The response body stays open until
// the stream finishes or is closed.
func (g *Generator) Stream(ctx context.Context, req domain.GenerationRequest) (driven.TokenStream, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}
	numCtx := req.NumCtx
	if numCtx == 0 {
		numCtx = g.numCtx
	}

	ctx, cancel := context.WithCancel(ctx)
	resp, err := g.api.Do(ctx, http.MethodPost, "/api/generate", generateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		Stream:  true,
		Options: options{NumCtx: numCtx},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	return newTokenStream(resp.Body, cancel, httpapi.NewIdleTimer(g.timeout, cancel)), nil
}

// tokenStream decodes NDJSON chunks one line at a time.
type tokenStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	idle    *httpapi.IdleTimer

	closeOnce sync.Once
	closeErr  error
	finished  bool
}

func newTokenStream(body io.ReadCloser, cancel context.CancelFunc, idle *httpapi.IdleTimer) *tokenStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &tokenStream{body: body, scanner: scanner, cancel: cancel, idle: idle}
}

// Next returns the next non-empty fragment.
func (s *tokenStream) Next() (string, bool, error) {
	if s.finished {
		return "", true, nil
	}

	s.idle.Arm()
	defer s.idle.Disarm()

	for s.scanner.Scan() {
		s.idle.Arm()
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", true, fmt.Errorf("%w: ollama: decode chunk: %w", domain.ErrGeneration, err)
		}
		if chunk.Error != "" {
			return "", true, fmt.Errorf("%w: ollama: %s", domain.ErrGeneration, chunk.Error)
		}
		if chunk.Done {
			s.finished = true
			if chunk.Response != "" {
				return chunk.Response, false, nil
			}
			return "", true, nil
		}
		if chunk.Response != "" {
			return chunk.Response, false, nil
		}
	}

	if s.idle.Fired() {
		return "", true, fmt.Errorf("%w: ollama: no data for %s", domain.ErrGeneration, s.idle.Timeout())
	}
	if err := s.scanner.Err(); err != nil {
		return "", true, fmt.Errorf("%w: ollama: read stream: %w", domain.ErrGeneration, err)
	}
	return "", true, fmt.Errorf("%w: ollama: %w", domain.ErrGeneration, errors.New("stream ended before done"))
}

// Close cancels the request and closes the body.
func (s *tokenStream) Close() error {
	s.closeOnce.Do(func() {
		s.idle.Disarm()
		s.cancel()
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// ModelName returns the default model.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (g *Generator) Ping(ctx context.Context) error {
	if err := g.api.Get(ctx, "/api/tags"); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}
