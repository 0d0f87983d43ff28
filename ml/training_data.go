package ml

import (
	"fmt"

	"gridguard/pipeline"
)

// DefaultTarget is the label column of the transformer survey.
const DefaultTarget = "Burned_transformers_2019"

// TrainingOptions select the target and feature columns of a training table.
type TrainingOptions struct {
	Target        string
	PositiveLabel string
	// Features pins the schema; empty means every non-target column in file order.
	Features []string
	Exclude  []string
	Defaults map[string]float64
	Aliases  map[string][]string
}

// TrainingSet is a coerced feature matrix with its encoded labels.
type TrainingSet struct {
	X        [][]float64
	Y        []int
	Schema   pipeline.FeatureSchema
	Target   pipeline.TargetEncoding
	Report   pipeline.Report
	Warnings []string
}

// BuildTrainingSet derives the schema from the table and coerces every row
// through the same normalizer and coercer the inference path uses.
func BuildTrainingSet(table *pipeline.Table, opts TrainingOptions) (*TrainingSet, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: training table has no data rows", ErrInvalidInput)
	}
	target := opts.Target
	if target == "" {
		target = DefaultTarget
	}
	targetCol := table.FindColumn(target)
	if targetCol < 0 {
		return nil, fmt.Errorf("%w: target column %q not found", ErrInvalidInput, target)
	}

	names := opts.Features
	if len(names) == 0 {
		excluded := make(map[string]bool, len(opts.Exclude))
		for _, name := range opts.Exclude {
			excluded[pipeline.NormalizeName(name)] = true
		}
		for col, name := range table.Header {
			if col == targetCol || excluded[pipeline.NormalizeName(name)] {
				continue
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no feature columns besides the target", ErrInvalidInput)
	}

	schema := pipeline.NewSchema(names).WithDefaults(opts.Defaults).WithAliases(opts.Aliases)
	normalizer, err := pipeline.NewNormalizer(schema)
	if err != nil {
		return nil, err
	}

	raw := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		raw[i] = row[targetCol]
	}
	y, encoding, err := pipeline.EncodeTarget(raw, opts.PositiveLabel)
	if err != nil {
		return nil, err
	}

	set := &TrainingSet{Y: y, Schema: schema, Target: encoding, Report: pipeline.Report{Rows: len(table.Rows)}}
	mapping := normalizer.Columns(table.Header)
	set.Report.AddFilled(mapping.Filled...)
	set.X = make([][]float64, len(table.Rows))
	for i, row := range table.Rows {
		set.X[i] = pipeline.CoerceRow(schema, i, mapping.Row(row), &set.Report)
	}

	if encoding.Categorical() && len(encoding.Labels) <= encoding.PositiveClass {
		return nil, fmt.Errorf("%w: target %q has a single class %q", ErrInvalidInput, target, encoding.Labels[0])
	}
	if encoding.Categorical() && opts.PositiveLabel == "" {
		set.Warnings = append(set.Warnings, fmt.Sprintf("no positive label configured; %q (code %d) is reported as failure",
			encoding.Decode(encoding.PositiveClass), encoding.PositiveClass))
	}
	set.Warnings = append(set.Warnings, set.Report.Warnings()...)
	return set, nil
}
