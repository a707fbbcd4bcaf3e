package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWriteFile(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage("ingestion", 1500*time.Millisecond)
	r.ObserveCandidate("Random Forest", 2*time.Second, 0.85)
	r.ObserveCandidate("Linear Regression", 250*time.Millisecond, 0.88)
	r.SetBest(0.88)

	path := filepath.Join(t.TempDir(), "nested", "metrics.prom")
	require.NoError(t, r.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.Contains(t, out, `regpipe_stage_duration_seconds{stage="ingestion"} 1.5`)
	assert.Contains(t, out, `regpipe_candidate_fit_duration_seconds{model="Random Forest"} 2`)
	assert.Contains(t, out, `regpipe_candidate_test_r2{model="Linear Regression"} 0.88`)
	assert.Contains(t, out, "regpipe_best_test_r2 0.88")
	assert.Contains(t, out, "regpipe_last_run_timestamp_seconds")
	assert.Contains(t, out, "# HELP regpipe_candidate_test_r2")
}

func TestRecorderGatherer(t *testing.T) {
	r := NewRecorder()
	r.ObserveCandidate("Decision Tree", time.Second, 0.7)

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "regpipe_candidate_test_r2")
	assert.Contains(t, names, "regpipe_candidate_fit_duration_seconds")
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStage("trainer", time.Second)
		r.ObserveCandidate("x", time.Second, 1)
		r.SetBest(1)
	})
	assert.NoError(t, r.WriteFile(filepath.Join(t.TempDir(), "metrics.prom")))
}

func TestTimer(t *testing.T) {
	timer := Start()
	assert.GreaterOrEqual(t, timer.Elapsed(), time.Duration(0))
}
