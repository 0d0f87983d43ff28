package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gridguard/config"
	"gridguard/ml"
)

func TestTrainConfigFromDefaults(t *testing.T) {
	tc := trainConfig(config.Default().Training)

	assert.Equal(t, ml.ClassifierRandomForest, tc.Classifier)
	assert.Equal(t, 100, tc.Forest.Trees)
	assert.Equal(t, int64(42), tc.Seed)
	assert.Equal(t, tc.Seed, tc.Forest.Seed)
	assert.Equal(t, 0.2, tc.TestRatio)
	assert.Equal(t, ml.DefaultTarget, tc.Options.Target)
}

func TestTrainConfigOverrides(t *testing.T) {
	training := config.Default().Training
	training.Classifier = ml.ClassifierDecisionTree
	training.Target = "Failed"
	training.PositiveLabel = "yes"
	training.MaxDepth = 4
	training.Exclude = []string{"LOCATION"}

	tc := trainConfig(training)
	assert.Equal(t, ml.ClassifierDecisionTree, tc.Classifier)
	assert.Equal(t, 4, tc.Forest.MaxDepth)
	assert.Equal(t, "Failed", tc.Options.Target)
	assert.Equal(t, "yes", tc.Options.PositiveLabel)
	assert.Equal(t, []string{"LOCATION"}, tc.Options.Exclude)
}
