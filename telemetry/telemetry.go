// Package telemetry records per-run training metrics in a private Prometheus
// registry. A batch run has no scrape endpoint, so the registry is written
// once to a text file in the node_exporter textfile format.
package telemetry

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

const namespace = "regpipe"

// Recorder collects the metrics of a single pipeline run.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.GaugeVec
	fitDuration   *prometheus.GaugeVec
	testScore     *prometheus.GaugeVec
	bestScore     prometheus.Gauge
	lastRun       prometheus.Gauge
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
		}, []string{"stage"}),
		fitDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_fit_duration_seconds",
			Help:      "Wall time spent searching and fitting each candidate model.",
		}, []string{"model"}),
		testScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_test_r2",
			Help:      "R2 score of each candidate model on the held-out split.",
		}, []string{"model"}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_test_r2",
			Help:      "R2 score of the selected model.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the run finished.",
		}),
	}
	r.registry.MustRegister(r.stageDuration, r.fitDuration, r.testScore, r.bestScore, r.lastRun)
	return r
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// ObserveCandidate records the fit duration and held-out score of one model.
func (r *Recorder) ObserveCandidate(model string, d time.Duration, score float64) {
	if r == nil {
		return
	}
	r.fitDuration.WithLabelValues(model).Set(d.Seconds())
	r.testScore.WithLabelValues(model).Set(score)
}

// SetBest records the score of the selected model.
func (r *Recorder) SetBest(score float64) {
	if r == nil {
		return
	}
	r.bestScore.Set(score)
}

// Gatherer exposes the private registry, e.g. for promhttp or tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile stamps the run time and writes every metric to path.
func (r *Recorder) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	r.lastRun.SetToCurrentTime()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create metrics directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}

// Timer measures a span started with Start.
type Timer struct {
	start time.Time
}

// Start begins a new Timer.
func Start() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since Start.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
