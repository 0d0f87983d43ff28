package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit", "gridguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTrainingLogNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTrainingLog(TrainingLog{ModelName: "random_forest", Accuracy: 0.8, TrainedAt: base, DataPoints: 100}))
	require.NoError(t, store.SaveTrainingLog(TrainingLog{ModelName: "random_forest", Accuracy: 0.9, TrainedAt: base.Add(time.Hour), DataPoints: 120}))

	logs, err := store.LoadTrainingLog(0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 0.9, logs[0].Accuracy)
	assert.True(t, logs[0].TrainedAt.Equal(base.Add(time.Hour)))

	logs, err = store.LoadTrainingLog(1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestSavePredictions(t *testing.T) {
	store := openTestStore(t)
	risk := 0.75
	require.NoError(t, store.SavePredictions("req-1", "api", []Prediction{{Label: 1, Probability: &risk}, {Label: 0}}))

	n, err := store.CountPredictions("req-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Error(t, store.SavePredictions("", "api", []Prediction{{Label: 1}}))
}

func TestBatches(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.SaveBatch(Batch{ID: "b1", Filename: "survey.csv", Rows: 3, Healthy: 2, Failures: 1, FilledColumns: []string{"POWER"}, Fallbacks: 4, ScoredAt: now}))
	require.NoError(t, store.SaveBatch(Batch{ID: "b2", Filename: "other.csv", Rows: 1, Healthy: 1, ScoredAt: now.Add(time.Minute)}))

	batches, err := store.RecentBatches(10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "b2", batches[0].ID)
	assert.Nil(t, batches[0].FilledColumns)
	assert.Equal(t, []string{"POWER"}, batches[1].FilledColumns)
	assert.Equal(t, 4, batches[1].Fallbacks)
}

func TestNilStore(t *testing.T) {
	var store *Store
	assert.ErrorIs(t, store.SaveBatch(Batch{}), ErrNotInitialized)
	_, err := store.LoadTrainingLog(1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, store.Close())
}
