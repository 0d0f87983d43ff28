package ml

import (
	"fmt"
	"math/rand"
	"time"

	"gridguard/pipeline"
)

// TrainConfig configures one training run.
type TrainConfig struct {
	Classifier string
	Forest     ForestConfig
	TestRatio  float64
	Seed       int64
	Options    TrainingOptions
}

// DefaultTrainConfig matches the settings of the production model.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Classifier: ClassifierRandomForest,
		Forest:     DefaultForestConfig(),
		TestRatio:  0.2,
		Seed:       42,
		Options:    TrainingOptions{Target: DefaultTarget},
	}
}

// TrainResult is a fitted model and what was learned about its input.
type TrainResult struct {
	Model    *TrainedModel
	Report   pipeline.Report
	Warnings []string
}

// Train fits a classifier on table and evaluates it on a held-out split.
func Train(table *pipeline.Table, config TrainConfig, now time.Time) (*TrainResult, error) {
	set, err := BuildTrainingSet(table, config.Options)
	if err != nil {
		return nil, err
	}
	trainX, trainY, testX, testY := splitDataset(set.X, set.Y, config.TestRatio, config.Seed)

	var classifier Classifier
	switch config.Classifier {
	case "", ClassifierRandomForest:
		config.Classifier = ClassifierRandomForest
		classifier = NewRandomForest(config.Forest)
	case ClassifierDecisionTree:
		classifier = NewDecisionTree(TreeConfig{
			MaxDepth:       config.Forest.MaxDepth,
			MinSamplesLeaf: config.Forest.MinSamplesLeaf,
			Seed:           config.Forest.Seed,
		})
	default:
		return nil, fmt.Errorf("unsupported classifier %q", config.Classifier)
	}
	if err := classifier.Fit(trainX, trainY); err != nil {
		return nil, fmt.Errorf("fit %s: %w", config.Classifier, err)
	}

	metrics, err := evaluate(classifier, testX, testY, set.Target.PositiveClass)
	if err != nil {
		return nil, err
	}
	metrics.TrainRows = len(trainX)
	metrics.TestRows = len(testX)

	model, err := NewTrainedModel(config.Classifier, classifier, set.Schema, set.Target, metrics, now.UTC())
	if err != nil {
		return nil, err
	}
	return &TrainResult{Model: model, Report: set.Report, Warnings: set.Warnings}, nil
}

// splitDataset shuffles row indices with seed and holds out testRatio of
// them. At least one row is always kept for training.
func splitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	order := rand.New(rand.NewSource(seed)).Perm(len(features))
	test := int(float64(len(features)) * testRatio)
	if test >= len(features) {
		test = len(features) - 1
	}
	for i, idx := range order {
		if i < test {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		} else {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}

func evaluate(model Classifier, testX [][]float64, testY []int, positive int) (Metrics, error) {
	if len(testX) == 0 {
		return Metrics{}, nil
	}
	predicted, err := model.Predict(testX)
	if err != nil {
		return Metrics{}, fmt.Errorf("evaluate: %w", err)
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, label := range predicted {
		if label == testY[i] {
			correct++
		}
		if label == positive {
			predictedPositive++
		}
		if testY[i] == positive {
			actualPositive++
			if label == positive {
				truePositive++
			}
		}
	}

	m := Metrics{Accuracy: float64(correct) / float64(len(testX))}
	if predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}
	return m, nil
}
