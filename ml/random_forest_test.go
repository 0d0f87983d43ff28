package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomForestSeparatesClasses(t *testing.T) {
	X, y := separableData()
	forest := NewRandomForest(ForestConfig{Trees: 15, MaxFeatures: 3, Seed: 42})
	require.NoError(t, forest.Fit(X, y))

	got, err := forest.Predict([][]float64{{15, 0, 2}, {1250, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got)
	assert.Equal(t, []int{0, 1}, forest.Classes())
	assert.Equal(t, 3, forest.NumFeatures())
}

func TestRandomForestProbabilitiesSumToOne(t *testing.T) {
	X, y := separableData()
	forest := NewRandomForest(ForestConfig{Trees: 9, Seed: 7})
	require.NoError(t, forest.Fit(X, y))

	proba, err := forest.PredictProba(X)
	require.NoError(t, err)
	for i, row := range proba {
		require.Len(t, row, 2)
		assert.InDelta(t, 1.0, row[0]+row[1], 1e-9, "row %d", i)
	}
}

func TestRandomForestDeterministicAcrossWorkers(t *testing.T) {
	X, y := separableData()
	serial := NewRandomForest(ForestConfig{Trees: 12, Seed: 42, Workers: 1})
	parallel := NewRandomForest(ForestConfig{Trees: 12, Seed: 42, Workers: 4})
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, parallel.Fit(X, y))

	a, err := serial.PredictProba(X)
	require.NoError(t, err)
	b, err := parallel.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRandomForestFeatureCountMismatch(t *testing.T) {
	X, y := separableData()
	forest := NewRandomForest(ForestConfig{Trees: 3, Seed: 1})
	require.NoError(t, forest.Fit(X, y))

	_, err := forest.Predict([][]float64{{1, 2}})
	assert.ErrorContains(t, err, "feature count mismatch")
}

func TestRandomForestUntrained(t *testing.T) {
	_, err := NewRandomForest(DefaultForestConfig()).Predict([][]float64{{1}})
	assert.Error(t, err)
}
