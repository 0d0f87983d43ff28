package ml

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridguard/pipeline"
)

func surveyCSV(rows int) string {
	var b strings.Builder
	b.WriteString("LOCATION,POWER,Number of users,Criterion,Burned_transformers_2019\n")
	for i := 0; i < rows; i++ {
		burned := "no"
		power := 50 + i%3
		if i%2 == 1 {
			burned = "yes"
			power = 1000 + i
		}
		fmt.Fprintf(&b, "%d,\"%d,%03d\",%d,STRATUM %d,%s\n", i, power/1000, power%1000, 10+i, i%4, burned)
	}
	return b.String()
}

func TestBuildTrainingSet(t *testing.T) {
	table := readTestTable(t, surveyCSV(10))

	set, err := BuildTrainingSet(table, TrainingOptions{Exclude: []string{"location"}, PositiveLabel: "yes"})
	require.NoError(t, err)

	assert.Equal(t, []string{"POWER", "Number of users", "Criterion"}, set.Schema.Names())
	assert.Equal(t, []string{"no", "yes"}, set.Target.Labels)
	assert.Equal(t, 1, set.Target.PositiveClass)
	assert.Len(t, set.X, 10)
	assert.Equal(t, []float64{1001, 11, 0}, set.X[1])
	assert.Equal(t, 10, set.Report.FallbackCounts()["Criterion"])
}

func TestBuildTrainingSetWarnsWithoutPositiveLabel(t *testing.T) {
	set, err := BuildTrainingSet(readTestTable(t, surveyCSV(6)), TrainingOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, set.Warnings)
	assert.Contains(t, set.Warnings[0], "no positive label configured")
}

func TestBuildTrainingSetErrors(t *testing.T) {
	_, err := BuildTrainingSet(readTestTable(t, "A,B\n1,2\n"), TrainingOptions{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = BuildTrainingSet(readTestTable(t, "A,label\n1,x\n2,x\n"), TrainingOptions{Target: "label"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = BuildTrainingSet(readTestTable(t, "label\n1\n"), TrainingOptions{Target: "label"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// Rows coerced for training must be the vectors the invoker builds for the
// same values at inference time.
func TestTrainingInferenceAgreement(t *testing.T) {
	table := readTestTable(t, surveyCSV(12))
	set, err := BuildTrainingSet(table, TrainingOptions{PositiveLabel: "yes"})
	require.NoError(t, err)

	model := newTestModelWithSchema(t, set)
	names := set.Schema.Names()
	for i, row := range table.Rows {
		record := pipeline.RawRecord{}
		for col, name := range table.Header {
			record[name] = row[col]
		}
		X, _, err := Vectorize(model, Record(record))
		require.NoError(t, err)
		assert.Equal(t, set.X[i], X[0], "row %d (%v)", i, names)
	}
}

func newTestModelWithSchema(t *testing.T, set *TrainingSet) *TrainedModel {
	t.Helper()
	tree := NewDecisionTree(TreeConfig{})
	require.NoError(t, tree.Fit(set.X, set.Y))
	model, err := NewTrainedModel(ClassifierDecisionTree, tree, set.Schema, set.Target, Metrics{}, time.Now())
	require.NoError(t, err)
	return model
}

func TestTrainEndToEnd(t *testing.T) {
	config := DefaultTrainConfig()
	config.Forest.Trees = 10
	config.Options.PositiveLabel = "yes"
	config.Options.Features = []string{"POWER", "Criterion"}

	result, err := Train(readTestTable(t, surveyCSV(40)), config, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	metrics := result.Model.Metrics()
	assert.Equal(t, 32, metrics.TrainRows)
	assert.Equal(t, 8, metrics.TestRows)
	assert.Equal(t, 1.0, metrics.Accuracy)
	assert.Equal(t, ClassifierRandomForest, result.Model.Name())

	prediction, _, err := NewInvoker(HolderFor(result.Model)).PredictRecord(pipeline.RawRecord{
		"location": 3, "power": "1,500", "number_of_users": 40, "criterion": "STRATUM 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "yes", prediction.LabelName)
}

func TestTrainIsDeterministic(t *testing.T) {
	config := DefaultTrainConfig()
	config.Forest.Trees = 5
	table := surveyCSV(20)

	a, err := Train(readTestTable(t, table), config, time.Unix(0, 0))
	require.NoError(t, err)
	b, err := Train(readTestTable(t, table), config, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, a.Model.Metrics(), b.Model.Metrics())
}

func TestSplitDataset(t *testing.T) {
	X := make([][]float64, 10)
	y := make([]int, 10)
	for i := range X {
		X[i] = []float64{float64(i)}
		y[i] = i
	}
	trainX, trainY, testX, testY := splitDataset(X, y, 0.2, 42)
	assert.Len(t, trainX, 8)
	assert.Len(t, testX, 2)
	seen := map[int]bool{}
	for _, label := range append(trainY, testY...) {
		seen[label] = true
	}
	assert.Len(t, seen, 10)

	trainX, _, testX, _ = splitDataset(X[:1], y[:1], 0.9, 1)
	assert.Len(t, trainX, 1)
	assert.Empty(t, testX)
}
