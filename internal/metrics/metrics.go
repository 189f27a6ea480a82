// Package metrics records pipeline measurements as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// Namespace prefixes every metric name.
const Namespace = "pdfrag"

// Recorder implements driven.MetricsRecorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	embeddingRequests  *prometheus.CounterVec
	chunksEmbedded     prometheus.Counter
	checkpointsSaved   prometheus.Counter
	documentsProcessed *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
}

// NewRecorder creates a recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		embeddingRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "embedding_requests_total",
				Help:      "Embedding provider calls by outcome (ok, rate_limited, error).",
			},
			[]string{"outcome"},
		),
		chunksEmbedded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chunks_embedded_total",
			Help:      "Chunks embedded during ingestion.",
		}),
		checkpointsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkpoints_saved_total",
			Help:      "Embedding checkpoints persisted.",
		}),
		documentsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_processed_total",
				Help:      "Documents processed by ingestion outcome (loaded, skipped, failed).",
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 1800},
			},
			[]string{"stage"},
		),
	}
}

// EmbeddingRequest counts one provider call by outcome.
func (r *Recorder) EmbeddingRequest(outcome string) {
	r.embeddingRequests.WithLabelValues(outcome).Inc()
}

// ChunksEmbedded adds n freshly embedded chunks.
func (r *Recorder) ChunksEmbedded(n int) {
	r.chunksEmbedded.Add(float64(n))
}

// CheckpointSaved counts a persisted checkpoint.
func (r *Recorder) CheckpointSaved() {
	r.checkpointsSaved.Inc()
}

// DocumentProcessed counts one ingestion outcome.
func (r *Recorder) DocumentProcessed(status domain.IngestStatus) {
	r.documentsProcessed.WithLabelValues(string(status)).Inc()
}

// StageDuration observes how long a pipeline stage took.
func (r *Recorder) StageDuration(stage domain.Stage, d time.Duration) {
	r.stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return r.serve(ctx, ln)
}

func (r *Recorder) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Debug("Serving metrics on http://%s/metrics", ln.Addr())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
