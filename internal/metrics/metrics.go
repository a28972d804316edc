// Package metrics exports pipeline run statistics as Prometheus metrics.
//
// VATA is a batch tool, so metrics are written in the text exposition
// format to a file after every run, for the node exporter's textfile
// collector to pick up, rather than served over HTTP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Manik0107/VATA/internal/models"
)

const namespace = "vata"

// ErrNilReport is returned by RecordRun when given no report.
var ErrNilReport = errors.New("metrics: nil report")

// Recorder accumulates run metrics in its own registry and optionally
// rewrites a textfile after each run. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry
	path     string
	mu       sync.Mutex

	runs          *prometheus.CounterVec
	strategyStops *prometheus.CounterVec
	validations   *prometheus.CounterVec
	repairs       *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRun       prometheus.Gauge
}

// New creates a Recorder. textfilePath may be empty to keep metrics in
// memory only.
func New(textfilePath string) (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		path:     textfilePath,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		strategyStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_stops_total",
			Help:      "Generation strategies stopped, by strategy and stop reason.",
		}, []string{"strategy", "reason"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validated candidates by strategy, stage reached and status.",
		}, []string{"strategy", "stage", "status"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repairs_total",
			Help:      "Repair calls by strategy and result.",
		}, []string{"strategy", "result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished.",
		}),
	}

	for _, c := range []prometheus.Collector{r.runs, r.strategyStops, r.validations, r.repairs, r.runDuration, r.lastRun} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordRun folds report into the metrics and rewrites the textfile.
func (r *Recorder) RecordRun(ctx context.Context, report *models.ProvenanceReport) error {
	if report == nil {
		return ErrNilReport
	}

	r.runs.WithLabelValues(string(report.Outcome)).Inc()
	r.runDuration.Observe(report.Elapsed().Seconds())
	if !report.FinishedAt.IsZero() {
		r.lastRun.Set(float64(report.FinishedAt.Unix()))
	}

	for _, sr := range report.Strategies {
		strategy := string(sr.Strategy)
		r.strategyStops.WithLabelValues(strategy, string(sr.StopReason)).Inc()
		for _, a := range sr.Attempts {
			if a.Attempt > 0 {
				result := "ok"
				if a.RepairError != "" {
					result = "error"
				}
				r.repairs.WithLabelValues(strategy, result).Inc()
			}
			if a.CandidateID != "" && a.Stage != "" {
				r.validations.WithLabelValues(strategy, a.Stage, string(a.Status)).Inc()
			}
		}
	}

	return r.writeTextfile()
}

func (r *Recorder) writeTextfile() error {
	if r.path == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
