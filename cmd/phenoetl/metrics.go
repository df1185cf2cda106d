package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"phenoetl/internal/metrics"
	"phenoetl/internal/metrics/datadog"
	"phenoetl/internal/metrics/prompush"
)

const defaultPushgatewayURL = "http://localhost:9091"

// metricsSelection is the resolved metrics setup for one run.
type metricsSelection struct {
	Backend        string
	PushgatewayURL string
	FlushEvery     time.Duration
	Job            string
	Tags           []string
}

// resolve fills unset fields: flag, then environment, then default.
func (s metricsSelection) resolve(getenv func(string) string) metricsSelection {
	if s.Backend == "" {
		s.Backend = getenv("METRICS_BACKEND")
	}
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = "none"
	}
	if s.PushgatewayURL == "" {
		s.PushgatewayURL = getenv("PUSHGATEWAY_URL")
	}
	if s.PushgatewayURL == "" {
		s.PushgatewayURL = defaultPushgatewayURL
	}
	if s.Job == "" {
		s.Job = "phenoetl"
	}
	if s.Tags == nil {
		s.Tags = datadog.ParseTagsCSV(getenv("METRICS_TAGS"))
	}
	return s
}

// installMetrics sets the process metrics backend. The returned func flushes
// and stops it; for "none" it is a no-op.
func installMetrics(ctx context.Context, sel metricsSelection, log *zap.Logger) (func() error, error) {
	switch sel.Backend {
	case "none":
		log.Debug("metrics disabled")
		return func() error { return nil }, nil

	case "pushgateway":
		b, err := prompush.New(ctx, prompush.Options{URL: sel.PushgatewayURL, JobName: sel.Job, Tags: sel.Tags})
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		log.Info("metrics enabled", zap.String("backend", sel.Backend), zap.String("url", sel.PushgatewayURL), zap.String("job", sel.Job))
		return func() error {
			defer metrics.SetBackend(nil)
			return b.Close()
		}, nil

	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{JobName: sel.Job, Tags: sel.Tags, FlushEvery: sel.FlushEvery})
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		log.Info("metrics enabled", zap.String("backend", sel.Backend), zap.String("job", sel.Job), zap.Strings("tags", sel.Tags))
		return func() error {
			defer metrics.SetBackend(nil)
			return b.Close()
		}, nil

	default:
		return nil, fmt.Errorf("unknown metrics backend %q", sel.Backend)
	}
}
