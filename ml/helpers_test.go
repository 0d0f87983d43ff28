package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridguard/pipeline"
)

// separable rows: class 1 whenever A is large.
func separableData() ([][]float64, []int) {
	X := [][]float64{
		{10, 0, 1}, {20, 1, 2}, {30, 0, 3}, {40, 1, 1},
		{1000, 0, 3}, {1100, 1, 2}, {1200, 0, 1}, {1300, 1, 3},
	}
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}
	return X, y
}

func newTestModel(t *testing.T) *TrainedModel {
	t.Helper()
	X, y := separableData()
	forest := NewRandomForest(ForestConfig{Trees: 7, MinSamplesLeaf: 1, MaxFeatures: 3, Seed: 42})
	require.NoError(t, forest.Fit(X, y))
	target := pipeline.TargetEncoding{Kind: pipeline.TargetNumeric, PositiveClass: pipeline.DefaultPositiveClass}
	model, err := NewTrainedModel(ClassifierRandomForest, forest, pipeline.NewSchema([]string{"A", "B", "C"}), target, Metrics{}, time.Unix(0, 0).UTC())
	require.NoError(t, err)
	return model
}
