// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. Batch jobs exit before a scrape would see them, so values
// accumulate in a private registry and Flush pushes the whole registry.
package prompush

import (
	"context"
	"fmt"
	"strings"

	"phenoetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Options configures the backend.
type Options struct {
	// URL of the Pushgateway, e.g. http://pushgateway:9091.
	URL string
	// JobName defaults to "phenoetl".
	JobName string
	// Grouping labels as "key:value" tags; malformed tags are skipped.
	Tags []string
	// Client overrides the HTTP client (tests).
	Client push.HTTPDoer
}

// Backend implements metrics.Backend on a private Prometheus registry.
type Backend struct {
	pusher *push.Pusher
	ctx    context.Context

	steps     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	records   *prometheus.CounterVec
	batches   prometheus.Counter
}

// New builds the registry and pusher. Nothing is sent until Flush.
func New(ctx context.Context, opts Options) (*Backend, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	job := opts.JobName
	if job == "" {
		job = "phenoetl"
	}

	b := &Backend{
		ctx: ctx,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions by outcome.",
		}, []string{"step", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline stage wall time.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows read, written or inserted.",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Storage insert batches.",
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(b.steps, b.durations, b.records, b.batches)

	p := push.New(opts.URL, job).Gatherer(reg)
	for _, tag := range opts.Tags {
		k, v, ok := strings.Cut(tag, ":")
		if !ok || k == "" || v == "" {
			continue
		}
		p = p.Grouping(k, v)
	}
	if opts.Client != nil {
		p = p.Client(opts.Client)
	}
	b.pusher = p
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		if labels["kind"] == "" {
			return
		}
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batches.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}
	b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush replaces this job's metric group on the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.PushContext(b.ctx); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}

// Close pushes the final values.
func (b *Backend) Close() error {
	return b.Flush()
}

var _ metrics.Backend = (*Backend)(nil)
var _ metrics.Flusher = (*Backend)(nil)
