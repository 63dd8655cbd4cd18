// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts job client activity in a Prometheus registry and
// writes it in the node-exporter textfile format at the end of a run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/molsearch/internal/jobs"
	"github.com/pdiddy/molsearch/pkg/types"
)

// Metrics implements jobs.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	submitted prometheus.Counter
	finished  *prometheus.CounterVec
	polls     prometheus.Counter
	requests  *prometheus.CounterVec
	wait      prometheus.Histogram
	rows      prometheus.Counter
}

var _ jobs.Recorder = (*Metrics)(nil)

// New registers the molsearch metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		submitted: f.NewCounter(prometheus.CounterOpts{
			Name: "molsearch_jobs_submitted_total",
			Help: "Remote jobs created on the Search Service.",
		}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "molsearch_jobs_finished_total",
			Help: "Remote jobs that stopped being polled, by final status.",
		}, []string{"status"}),
		polls: f.NewCounter(prometheus.CounterOpts{
			Name: "molsearch_status_polls_total",
			Help: "Status endpoint answers received.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "molsearch_http_requests_total",
			Help: "Search Service responses, by endpoint and HTTP status code.",
		}, []string{"endpoint", "code"}),
		// 1s to ~34min.
		wait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "molsearch_job_wait_seconds",
			Help:    "Time from the first poll to a terminal state or timeout.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		rows: f.NewCounter(prometheus.CounterOpts{
			Name: "molsearch_result_rows_total",
			Help: "Result rows kept after filtering.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) JobSubmitted() { m.submitted.Inc() }

func (m *Metrics) JobFinished(status types.JobStatus, waited time.Duration) {
	m.finished.WithLabelValues(string(status)).Inc()
	m.wait.Observe(waited.Seconds())
}

func (m *Metrics) StatusPolled() { m.polls.Inc() }

func (m *Metrics) Request(op string, code int) {
	m.requests.WithLabelValues(op, strconv.Itoa(code)).Inc()
}

func (m *Metrics) RowsKept(n int) { m.rows.Add(float64(n)) }

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
