// Package metrics collects per-run Prometheus counters for the pipeline and
// exports them as a node-exporter textfile.
package metrics

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "metaledger"

// Recorder holds the pipeline collectors. A nil Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	extracted     *prometheus.CounterVec
	validated     *prometheus.CounterVec
	transformed   *prometheus.CounterVec
	transmitted   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	ledgerRows    *prometheus.GaugeVec
	lastRun       prometheus.Gauge
}

// New registers the collectors on a private registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		extracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Source records handled by extraction, by outcome.",
		}, []string{"outcome"}),
		validated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_validated_total",
			Help:      "Validation checks by side and outcome.",
		}, []string{"side", "outcome"}),
		transformed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_transformed_total",
			Help:      "Transformations by outcome.",
		}, []string{"outcome"}),
		transmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_transmitted_total",
			Help:      "Index POSTs by ledger and HTTP status code.",
		}, []string{"ledger", "code"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each stage run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		ledgerRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_rows",
			Help:      "Active ledger rows by transmission status at the end of the run.",
		}, []string{"transmission"}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Extracted(outcome string) {
	if r == nil {
		return
	}
	r.extracted.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Validated(side, outcome string) {
	if r == nil {
		return
	}
	r.validated.WithLabelValues(side, outcome).Inc()
}

func (r *Recorder) Transformed(outcome string) {
	if r == nil {
		return
	}
	r.transformed.WithLabelValues(outcome).Inc()
}

// Transmitted counts one POST. code 0 means the request never completed.
func (r *Recorder) Transmitted(ledger string, code int) {
	if r == nil {
		return
	}
	r.transmitted.WithLabelValues(ledger, strconv.Itoa(code)).Inc()
}

func (r *Recorder) StageFinished(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// LedgerRows sets the per-status gauges from a status count snapshot.
func (r *Recorder) LedgerRows(byStatus map[string]int) {
	if r == nil {
		return
	}
	r.ledgerRows.Reset()
	for status, n := range byStatus {
		r.ledgerRows.WithLabelValues(status).Set(float64(n))
	}
}

func (r *Recorder) RunFinished(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every collector to path in the Prometheus text format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
