package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline and session Prometheus metrics.
var (
	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingestions_total",
			Help:      "Document ingestions by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)

	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Extract, chunk and index duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	IngestedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ingested_chunks",
			Help:      "Chunks per successful ingestion",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	SkippedPagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extraction_skipped_pages_total",
			Help:      "Pages skipped because text extraction failed",
		},
	)

	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "questions_total",
			Help:      "Questions asked by outcome",
		},
		[]string{"status"}, // "ok" / "no_index" / "error"
	)

	ImageAnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "image_analyses_total",
			Help:      "Image analyses by audience role and outcome",
		},
		[]string{"role", "status"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		},
	)

	EvictedSessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "evicted_sessions_total",
			Help:      "Sessions evicted after the idle TTL",
		},
	)
)

var registerOnce sync.Once

// Register registers the HTTP, provider and pipeline metrics with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpRequestsInFlight,
			httpRequestBytes,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingCacheTotal,
			GenerationRequestsTotal,
			GenerationRequestDuration,
			GenerationTokensTotal,
			IngestionsTotal,
			IngestionDuration,
			IngestedChunks,
			SkippedPagesTotal,
			QuestionsTotal,
			ImageAnalysesTotal,
			ActiveSessions,
			EvictedSessionsTotal,
		)
	})
}
