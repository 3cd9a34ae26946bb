// Package metrics defines the prometheus metrics shared by the probe and the
// patchy server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Probe metrics. They describe attempts in aggregate and are never read back
// by the probe itself.
var (
	ProbeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patchy_probe_attempts_total",
			Help: "Number of probe attempts by result.",
		},
		[]string{"result"},
	)
	ProbeAttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "patchy_probe_attempt_duration_seconds",
			Help: "A histogram of successful probe attempt latencies.",
			Buckets: []float64{
				.005, .01, .025, .05, .075,
				.1, .15, .25, .4, .6,
				.8, 1, 1.5, 2, 3},
		},
	)
	ProbeRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patchy_probe_runs_total",
			Help: "Number of completed probe runs by verdict.",
		},
		[]string{"verdict"},
	)
)

// Server metrics.
var (
	PingBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "patchy_ping_bytes_total",
			Help: "Number of payload bytes served by the ping handler.",
		},
	)
	Results = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patchy_results_total",
			Help: "Number of submitted results by status.",
		},
		[]string{"status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "patchy_http_request_duration_seconds",
			Help: "A histogram of request latencies per handler.",
		},
		[]string{"handler", "code"},
	)
)
