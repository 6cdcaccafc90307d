// Package metrics provides Prometheus metrics for docsplit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for docsplit.
type Metrics struct {
	RendersTotal      *prometheus.CounterVec
	UnsupportedBlocks *prometheus.CounterVec
	ChunksPerDocument prometheus.Histogram

	JobsTotal   *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	QueueDepth  prometheus.Gauge

	HTTPRequestsTotal *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RendersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsplit_renders_total",
				Help: "Block tree renders by outcome",
			},
			[]string{"status"},
		),
		UnsupportedBlocks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsplit_unsupported_blocks_total",
				Help: "Blocks rendered as empty because their type has no Markdown form",
			},
			[]string{"type"},
		),
		ChunksPerDocument: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docsplit_chunks_per_document",
				Help:    "Number of chunks produced per document",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsplit_jobs_total",
				Help: "Finished import jobs by source and status",
			},
			[]string{"source", "status"},
		),
		JobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsplit_job_duration_seconds",
				Help:    "Import job processing time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsplit_queue_depth",
				Help: "Jobs waiting for a worker",
			},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsplit_http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),
	}
}

// RecordRender counts one render attempt.
func (m *Metrics) RecordRender(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RendersTotal.WithLabelValues(status).Inc()
}

// RecordJob records a finished job.
func (m *Metrics) RecordJob(source, status string, d time.Duration) {
	m.JobsTotal.WithLabelValues(source, status).Inc()
	m.JobDuration.WithLabelValues(source).Observe(d.Seconds())
}
