package ml

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"gridguard/pipeline"
)

// Columns appended to a scored table.
const (
	PredictionColumn  = "prediction"
	ProbabilityColumn = "failure_probability_%"
)

// BatchResult is a scored table and its aggregate counts.
type BatchResult struct {
	Table       *pipeline.Table
	Predictions []Prediction
	Report      pipeline.Report
	// ClassCounts maps each predicted class code to its row count.
	ClassCounts map[int]int
	Healthy     int
	Failures    int
}

// ScoreTable annotates every row of table with its prediction. Columns the
// model expects but the table lacks are added with their default so the
// output shows what was actually scored. The table is modified in place.
func ScoreTable(model *TrainedModel, table *pipeline.Table) (*BatchResult, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: table has no data rows", ErrInvalidInput)
	}

	schema := model.normalizer.Schema()
	mapping := model.normalizer.Columns(table.Header)
	report := pipeline.Report{Rows: len(table.Rows)}
	report.AddFilled(mapping.Filled...)

	X := make([][]float64, len(table.Rows))
	for i, row := range table.Rows {
		X[i] = pipeline.CoerceRow(schema, i, mapping.Row(row), &report)
	}
	predictions, err := classify(model, X)
	if err != nil {
		return nil, err
	}

	for i, slot := range schema.Slots {
		if mapping.Source(i) >= 0 {
			continue
		}
		fill := make([]string, len(table.Rows))
		for r := range fill {
			fill[r] = strconv.FormatFloat(slot.Default, 'f', -1, 64)
		}
		if err := table.AppendColumn(slot.Name, fill); err != nil {
			return nil, err
		}
	}

	result := &BatchResult{Table: table, Predictions: predictions, Report: report, ClassCounts: make(map[int]int)}
	labels := make([]string, len(predictions))
	var risks []string
	for i, p := range predictions {
		labels[i] = strconv.Itoa(p.Label)
		if model.target.Categorical() {
			labels[i] = p.LabelName
		}
		result.ClassCounts[p.Label]++
		if p.Failure {
			result.Failures++
		} else {
			result.Healthy++
		}
		if p.Probability != nil {
			risks = append(risks, Percent(*p.Probability))
		}
	}
	if err := table.AppendColumn(PredictionColumn, labels); err != nil {
		return nil, err
	}
	if len(risks) == len(predictions) {
		if err := table.AppendColumn(ProbabilityColumn, risks); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Percent renders a probability as a percentage with two decimals.
func Percent(p float64) string {
	return decimal.NewFromFloat(p).Shift(2).StringFixed(2)
}
