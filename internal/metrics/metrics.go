// Package metrics exposes Prometheus instrumentation for the content lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	// Lifecycle counters
	ContentSubmitted  prometheus.Counter
	QuotaDenials      prometheus.Counter
	StatusTransitions *prometheus.CounterVec

	// Generation
	GenerationRuns     *prometheus.CounterVec
	GenerationDuration prometheus.Histogram

	// Publishing
	PublishAttempts *prometheus.CounterVec
	PublishRetries  prometheus.Counter

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// Recycling
	ContentRecycled prometheus.Counter
}

// New creates a Metrics instance backed by its own registry, so tests can
// create as many as they like without duplicate-registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ContentSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopost_content_submitted_total",
			Help: "Content items accepted through the quota gate",
		}),
		QuotaDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopost_quota_denials_total",
			Help: "Submissions rejected because the monthly post limit was reached",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gopost_status_transitions_total",
			Help: "Content status transitions by target status",
		}, []string{"to"}),

		GenerationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gopost_generation_runs_total",
			Help: "AI generation runs by outcome",
		}, []string{"outcome"}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gopost_generation_duration_seconds",
			Help:    "Wall time of AI generation calls",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		PublishAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gopost_publish_attempts_total",
			Help: "Per-platform publish attempts by outcome",
		}, []string{"platform", "outcome"}),
		PublishRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopost_publish_retries_total",
			Help: "Publish attempts that were retried after a transient failure",
		}),

		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gopost_jobs_processed_total",
			Help: "Background jobs processed by kind and outcome",
		}, []string{"kind", "outcome"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gopost_job_duration_seconds",
			Help:    "Background job processing time by kind",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"kind"}),

		ContentRecycled: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopost_content_recycled_total",
			Help: "Derived drafts created by the recycling sweep",
		}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJob records one processed job.
func (m *Metrics) ObserveJob(kind, outcome string, elapsed time.Duration) {
	m.JobsProcessed.WithLabelValues(kind, outcome).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
