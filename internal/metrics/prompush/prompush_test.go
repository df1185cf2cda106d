package prompush

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"phenoetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method string
	path   string
	body   []byte
}

func gateway(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{r.Method, r.URL.Path, body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(context.Background(), Options{URL: " "})
	assert.Error(t, err)
}

func TestRecordAndPush(t *testing.T) {
	srv, reqs := gateway(t, http.StatusOK)

	b, err := New(context.Background(), Options{
		URL:  srv.URL,
		Tags: []string{"env:test", "bogus", ":x"},
	})
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "group_mean", "status": "ok"})
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "group_mean", "status": "ok"})
	b.IncCounter(metrics.RecordsTotal, 10, metrics.Labels{"kind": "read"})
	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{})
	b.IncCounter(metrics.BatchesTotal, 0, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "group_mean", "status": "ok"})
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "group_mean", "status": "ok"})

	assert.Equal(t, 2.0, testutil.ToFloat64(b.steps.WithLabelValues("group_mean", "ok")))
	assert.Equal(t, 10.0, testutil.ToFloat64(b.records.WithLabelValues("read")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.batches))
	assert.Equal(t, 1, testutil.CollectAndCount(b.durations))

	require.NoError(t, b.Close())

	got := reqs()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/metrics/job/phenoetl/env/test", got[0].path)
	assert.Contains(t, string(got[0].body), metrics.StepTotal)
}

func TestFlushSurfacesGatewayError(t *testing.T) {
	srv, _ := gateway(t, http.StatusInternalServerError)

	b, err := New(context.Background(), Options{URL: srv.URL, JobName: "nightly"})
	require.NoError(t, err)
	b.IncCounter(metrics.BatchesTotal, 1, nil)

	err = b.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompush:")
}
