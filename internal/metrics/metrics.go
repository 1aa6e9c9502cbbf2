// Package metrics collects per-run counters and writes them in the
// Prometheus text format next to the run's other artifacts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ragbench"

// Run holds the metrics of one run. A nil *Run is valid and records nothing.
type Run struct {
	registry *prometheus.Registry

	DocumentsLoaded prometheus.Counter
	ChunksEmbedded  prometheus.Counter
	EmbedBatches    prometheus.Counter
	Questions       prometheus.Counter
	LLMErrors       prometheus.Counter
	LLMLatency      *prometheus.HistogramVec
	EmbedLatency    prometheus.Histogram
	SourcesPerTurn  prometheus.Histogram
}

// New registers a fresh set of run metrics labelled with the llm and
// embedder under test.
func New(llmName, embedderName string) *Run {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"llm": llmName, "embedder": embedderName}
	r := &Run{
		registry: reg,
		DocumentsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "documents_loaded_total",
			Help: "Source document pages loaded.", ConstLabels: labels,
		}),
		ChunksEmbedded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_embedded_total",
			Help: "Chunks embedded and persisted into the vector store.", ConstLabels: labels,
		}),
		EmbedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "embed_batches_total",
			Help: "Embedding batches processed.", ConstLabels: labels,
		}),
		Questions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "questions_total",
			Help: "Questions answered.", ConstLabels: labels,
		}),
		LLMErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_errors_total",
			Help: "Failed LLM calls.", ConstLabels: labels,
		}),
		LLMLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_request_duration_seconds",
			Help: "LLM call latency by step.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"step"}),
		EmbedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "embed_request_duration_seconds",
			Help: "Single text embedding latency.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		SourcesPerTurn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "sources_per_turn",
			Help: "Distinct source documents cited per answer.", ConstLabels: labels,
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		}),
	}
	reg.MustRegister(r.DocumentsLoaded, r.ChunksEmbedded, r.EmbedBatches, r.Questions,
		r.LLMErrors, r.LLMLatency, r.EmbedLatency, r.SourcesPerTurn)
	return r
}

func (r *Run) AddDocuments(n int) {
	if r != nil {
		r.DocumentsLoaded.Add(float64(n))
	}
}

func (r *Run) AddBatch(chunks int) {
	if r != nil {
		r.EmbedBatches.Inc()
		r.ChunksEmbedded.Add(float64(chunks))
	}
}

func (r *Run) ObserveEmbed(d time.Duration) {
	if r != nil {
		r.EmbedLatency.Observe(d.Seconds())
	}
}

// ObserveLLM records one LLM call for step ("condense" or "answer").
func (r *Run) ObserveLLM(step string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.LLMLatency.WithLabelValues(step).Observe(d.Seconds())
	if err != nil {
		r.LLMErrors.Inc()
	}
}

func (r *Run) ObserveTurn(sources int) {
	if r != nil {
		r.Questions.Inc()
		r.SourcesPerTurn.Observe(float64(sources))
	}
}

// WriteFile writes every metric to path in the text exposition format.
func (r *Run) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
