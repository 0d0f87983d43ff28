package ml

import (
	"fmt"

	"gridguard/pipeline"
)

// Prediction is the outcome for one record.
type Prediction struct {
	Label     int    `json:"label"`
	LabelName string `json:"label_name,omitempty"`
	Failure   bool   `json:"failure"`
	// Probability of the failure class; nil when the classifier has no
	// probability estimates.
	Probability *float64 `json:"probability,omitempty"`
	// Confidence is the probability of the predicted class.
	Confidence *float64 `json:"confidence,omitempty"`
}

// Result holds the predictions for an Input in input order.
type Result struct {
	Predictions []Prediction    `json:"predictions"`
	Report      pipeline.Report `json:"report"`
	Batch       bool            `json:"-"`
}

// Vectorize turns input records into feature vectors using the model's own
// schema, never a caller-supplied column list.
func Vectorize(model *TrainedModel, in Input) ([][]float64, pipeline.Report, error) {
	report := pipeline.Report{Rows: in.Len()}
	if model == nil {
		return nil, report, ErrModelUnavailable
	}
	if in.Len() == 0 {
		return nil, report, fmt.Errorf("%w: no records", ErrInvalidInput)
	}
	schema := model.normalizer.Schema()
	X := make([][]float64, 0, in.Len())
	for row, record := range in.named {
		normalized := model.normalizer.Record(record)
		report.AddFilled(normalized.Filled...)
		X = append(X, pipeline.CoerceRow(schema, row, normalized.Values, &report))
	}
	for row, values := range in.positional {
		aligned, err := model.normalizer.Positional(values)
		if err != nil {
			if in.batch {
				return nil, report, fmt.Errorf("record %d: %w", row, err)
			}
			return nil, report, err
		}
		X = append(X, pipeline.CoerceRow(schema, row, aligned, &report))
	}
	return X, report, nil
}

// Predict scores every record of in. A single record is scored as a batch
// of one, so both paths share the classifier's batch contract.
func Predict(model *TrainedModel, in Input) (*Result, error) {
	X, report, err := Vectorize(model, in)
	if err != nil {
		return nil, err
	}
	predictions, err := classify(model, X)
	if err != nil {
		return nil, err
	}
	return &Result{Predictions: predictions, Report: report, Batch: in.batch}, nil
}

func classify(model *TrainedModel, X [][]float64) ([]Prediction, error) {
	labels, err := model.classifier.Predict(X)
	if err != nil {
		return nil, inferenceFailure(err)
	}
	if len(labels) != len(X) {
		return nil, inferenceFailure(fmt.Errorf("classifier returned %d labels for %d rows", len(labels), len(X)))
	}

	var proba [][]float64
	positive := -1
	column := make(map[int]int)
	if estimator, ok := model.classifier.(ProbabilityEstimator); ok {
		proba, err = estimator.PredictProba(X)
		if err != nil {
			return nil, inferenceFailure(err)
		}
		if len(proba) != len(X) {
			return nil, inferenceFailure(fmt.Errorf("classifier returned %d probability rows for %d rows", len(proba), len(X)))
		}
		for k, class := range model.classifier.Classes() {
			column[class] = k
			if class == model.PositiveClass() {
				positive = k
			}
		}
	}

	target := model.target
	predictions := make([]Prediction, len(labels))
	for i, label := range labels {
		p := Prediction{Label: label, Failure: label == target.PositiveClass}
		if target.Categorical() {
			p.LabelName = target.Decode(label)
		}
		if proba != nil {
			risk := 0.0
			if positive >= 0 && positive < len(proba[i]) {
				risk = proba[i][positive]
			}
			p.Probability = &risk
			confidence := 0.0
			if k, ok := column[label]; ok && k < len(proba[i]) {
				confidence = proba[i][k]
			}
			p.Confidence = &confidence
		}
		predictions[i] = p
	}
	return predictions, nil
}

// Invoker runs predictions against the process-wide model.
type Invoker struct {
	models *ModelHolder
}

func NewInvoker(models *ModelHolder) *Invoker {
	return &Invoker{models: models}
}

// Model returns the served model or ErrModelUnavailable.
func (iv *Invoker) Model() (*TrainedModel, error) {
	return iv.models.Get()
}

func (iv *Invoker) Predict(in Input) (*Result, error) {
	model, err := iv.models.Get()
	if err != nil {
		return nil, err
	}
	return Predict(model, in)
}

// PredictRecord scores one named record.
func (iv *Invoker) PredictRecord(record pipeline.RawRecord) (Prediction, pipeline.Report, error) {
	result, err := iv.Predict(Record(record))
	if err != nil {
		return Prediction{}, pipeline.Report{}, err
	}
	return result.Predictions[0], result.Report, nil
}
