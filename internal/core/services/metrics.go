package services

import (
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// nopMetrics discards measurements.
type nopMetrics struct{}

var _ driven.MetricsRecorder = nopMetrics{}

func (nopMetrics) EmbeddingRequest(string)                   {}
func (nopMetrics) ChunksEmbedded(int)                        {}
func (nopMetrics) CheckpointSaved()                          {}
func (nopMetrics) DocumentProcessed(domain.IngestStatus)     {}
func (nopMetrics) StageDuration(domain.Stage, time.Duration) {}

func metricsOrNop(m driven.MetricsRecorder) driven.MetricsRecorder {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
