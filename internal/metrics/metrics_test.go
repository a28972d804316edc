package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manik0107/VATA/internal/models"
)

func sampleReport() *models.ProvenanceReport {
	started := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	return &models.ProvenanceReport{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		ElapsedMS:  42000,
		Outcome:    models.OutcomeSucceeded,
		Strategies: []models.StrategyRecord{
			{
				Strategy:   models.StrategyFullGeneration,
				StopReason: models.StopNoProgress,
				Attempts: []models.AttemptRecord{
					{CandidateID: "a", Stage: "logic", Status: models.StatusFail},
					{CandidateID: "b", ParentID: "a", Attempt: 1, Stage: "logic", Status: models.StatusFail},
				},
			},
			{
				Strategy:   models.StrategyChunkedScene,
				StopReason: models.StopSucceeded,
				Attempts: []models.AttemptRecord{
					{CandidateID: "c", Stage: "runtime", Status: models.StatusFail},
					{ParentID: "c", Attempt: 1, RepairError: "timeout"},
				},
			},
		},
	}
}

func TestRecordRunUpdatesCounters(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)
	require.NoError(t, r.RecordRun(context.Background(), sampleReport()))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.strategyStops.WithLabelValues("full-generation", "no-progress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.strategyStops.WithLabelValues("chunked-scene", "succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.validations.WithLabelValues("full-generation", "logic", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.repairs.WithLabelValues("full-generation", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.repairs.WithLabelValues("chunked-scene", "error")))
	assert.Equal(t, float64(sampleReport().FinishedAt.Unix()), testutil.ToFloat64(r.lastRun))
	assert.Equal(t, 1, testutil.CollectAndCount(r.runDuration))
}

func TestRecordRunWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "vata.prom")
	r, err := New(path)
	require.NoError(t, err)
	require.NoError(t, r.RecordRun(context.Background(), sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `vata_runs_total{outcome="succeeded"} 1`)
	assert.Contains(t, body, `vata_repairs_total{result="error",strategy="chunked-scene"} 1`)
	assert.Contains(t, body, "vata_run_duration_seconds_count 1")
}

func TestRecordRunNilReport(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)
	assert.ErrorIs(t, r.RecordRun(context.Background(), nil), ErrNilReport)
}

func TestRecordersAreIndependent(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)
	b, err := New("")
	require.NoError(t, err)
	require.NoError(t, a.RecordRun(context.Background(), sampleReport()))

	assert.Equal(t, 0.0, testutil.ToFloat64(b.runs.WithLabelValues("succeeded")))
	assert.NotSame(t, a.Registry(), b.Registry())
}
