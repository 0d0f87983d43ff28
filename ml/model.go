package ml

import (
	"fmt"
	"time"

	"gridguard/pipeline"
)

// Classifier is the batch contract every model satisfies. Rows of X are
// feature vectors in schema order.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) ([]int, error)
	Classes() []int
	NumFeatures() int
}

// ProbabilityEstimator is implemented by classifiers that expose class
// probabilities. Column k of the result matches Classes()[k].
type ProbabilityEstimator interface {
	PredictProba(X [][]float64) ([][]float64, error)
}

// Metrics summarizes the held-out evaluation of a model.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// TrainedModel bundles a fitted classifier with the schema it was fit on and
// the target encoding. It is never modified after construction and is safe
// for concurrent use.
type TrainedModel struct {
	name       string
	classifier Classifier
	normalizer *pipeline.Normalizer
	target     pipeline.TargetEncoding
	metrics    Metrics
	createdAt  time.Time
}

// NewTrainedModel checks that classifier and schema agree on the feature count.
func NewTrainedModel(name string, classifier Classifier, schema pipeline.FeatureSchema, target pipeline.TargetEncoding, metrics Metrics, createdAt time.Time) (*TrainedModel, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: no classifier", ErrModelUnavailable)
	}
	normalizer, err := pipeline.NewNormalizer(schema)
	if err != nil {
		return nil, err
	}
	if classifier.NumFeatures() != schema.Len() {
		return nil, fmt.Errorf("%w: classifier expects %d features, schema has %d", ErrSchemaMismatch, classifier.NumFeatures(), schema.Len())
	}
	if target.Categorical() && (target.PositiveClass < 0 || target.PositiveClass >= len(target.Labels)) {
		return nil, fmt.Errorf("%w: positive class %d is not one of %d encoded labels", ErrSchemaMismatch, target.PositiveClass, len(target.Labels))
	}
	target.Labels = append([]string(nil), target.Labels...)
	return &TrainedModel{
		name:       name,
		classifier: classifier,
		normalizer: normalizer,
		target:     target,
		metrics:    metrics,
		createdAt:  createdAt,
	}, nil
}

// Name identifies the classifier type.
func (m *TrainedModel) Name() string {
	return m.name
}

// Schema returns the feature schema the classifier was fit on.
func (m *TrainedModel) Schema() pipeline.FeatureSchema {
	return m.normalizer.Schema()
}

// Target returns a copy of the label encoding.
func (m *TrainedModel) Target() pipeline.TargetEncoding {
	target := m.target
	target.Labels = append([]string(nil), m.target.Labels...)
	return target
}

// PositiveClass is the class code reported as failure.
func (m *TrainedModel) PositiveClass() int {
	return m.target.PositiveClass
}

func (m *TrainedModel) Metrics() Metrics {
	return m.metrics
}

func (m *TrainedModel) CreatedAt() time.Time {
	return m.createdAt
}

// Classes returns the class codes known to the classifier.
func (m *TrainedModel) Classes() []int {
	return m.classifier.Classes()
}
