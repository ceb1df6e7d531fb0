// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the cybermed backend.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "cybermed-agent"

// Span is a type alias for trace.Span.
type Span = trace.Span

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	DocumentsClassified    prometheus.Counter
	DocumentsFailed        prometheus.Counter
	ClassificationDuration prometheus.Histogram

	DocumentsCrawled  prometheus.Counter
	DocumentsIndexed  prometheus.Counter
	IndexSearches     prometheus.Counter
	JobStartsRejected prometheus.Counter
}

// Provider wraps the telemetry providers.
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics.
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// StartSpan starts a tracing span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return p.Tracer.Start(ctx, name)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	return &Metrics{
		DocumentsClassified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybermed_documents_classified_total",
			Help: "Total number of documents successfully classified",
		}),
		DocumentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybermed_documents_failed_total",
			Help: "Total number of documents that failed classification",
		}),
		ClassificationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cybermed_classification_duration_seconds",
			Help:    "Duration of single-document classification",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		DocumentsCrawled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybermed_documents_crawled_total",
			Help: "Total number of documents fetched by the crawler",
		}),
		DocumentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybermed_documents_indexed_total",
			Help: "Total number of documents indexed for search",
		}),
		IndexSearches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybermed_index_searches_total",
			Help: "Total number of index search requests",
		}),
		JobStartsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybermed_job_starts_rejected_total",
			Help: "Total number of classification starts rejected while a job was running",
		}),
	}
}
