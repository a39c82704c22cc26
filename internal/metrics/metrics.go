// Package metrics defines the Prometheus collectors exported by provider-cli.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "provider"

	labelStatus     = "status"
	labelPhase      = "phase"
	labelDependency = "dependency"
	labelOutcome    = "outcome"
	labelReason     = "reason"
)

// External dependency labels.
const (
	DependencyRegistry = "registry"
	DependencyWebsite  = "website"
	DependencyOracle   = "oracle"
	DependencyOCR      = "ocr"
	DependencySource   = "source"
)

var recordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_total",
		Help:      "records processed, partitioned by final status label",
	},
	[]string{labelStatus},
)

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "jobs that reached a terminal phase",
	},
	[]string{labelPhase},
)

var jobsRunning = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_running",
		Help:      "jobs currently executing in this process",
	},
)

var externalCallSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "external_call_duration_seconds",
		Help:      "latency of calls to external dependencies",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{labelDependency, labelOutcome},
)

var oracleFallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_fallbacks_total",
		Help:      "oracle results replaced by an empty default",
	},
	[]string{labelReason},
)

func init() {
	prometheus.MustRegister(recordsTotal, jobsTotal, jobsRunning, externalCallSeconds, oracleFallbacksTotal)
}

// RecordProcessed counts one finished record.
func RecordProcessed(status string) {
	recordsTotal.With(prometheus.Labels{labelStatus: status}).Inc()
}

// JobFinished counts a job that reached phase.
func JobFinished(phase string) {
	jobsTotal.With(prometheus.Labels{labelPhase: phase}).Inc()
}

// JobStarted increments the running gauge and returns a func that
// decrements it.
func JobStarted() func() {
	jobsRunning.Inc()
	return jobsRunning.Dec
}

// ObserveCall records the latency of one external call. A nil err is
// labelled "ok", anything else "error".
func ObserveCall(dependency string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	externalCallSeconds.With(prometheus.Labels{
		labelDependency: dependency,
		labelOutcome:    outcome,
	}).Observe(time.Since(start).Seconds())
}

// OracleFallback counts one substituted oracle result.
func OracleFallback(reason string) {
	oracleFallbacksTotal.With(prometheus.Labels{labelReason: reason}).Inc()
}
