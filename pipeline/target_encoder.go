package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Target kinds.
const (
	TargetNumeric     = "numeric"
	TargetCategorical = "categorical"
)

// DefaultPositiveClass is the code of the failure class for numeric targets.
const DefaultPositiveClass = 1

// TargetEncoding records how training labels were mapped to class codes.
type TargetEncoding struct {
	Kind string `json:"kind"`
	// Labels[code] is the original label of a categorical target.
	Labels []string `json:"labels,omitempty"`
	// PositiveClass is the code whose probability is reported as failure risk.
	PositiveClass int `json:"positive_class"`
}

// EncodeTarget converts raw labels into class codes. A column whose every
// value is an integral number passes through unchanged; anything else is
// encoded by lexical order of the distinct labels. positiveLabel pins the
// failure class; when empty the failure class is code 1.
func EncodeTarget(raw []string, positiveLabel string) ([]int, TargetEncoding, error) {
	if len(raw) == 0 {
		return nil, TargetEncoding{}, fmt.Errorf("%w: target column is empty", ErrInvalidInput)
	}
	if codes, ok := numericCodes(raw); ok {
		enc := TargetEncoding{Kind: TargetNumeric, PositiveClass: DefaultPositiveClass}
		if positiveLabel != "" {
			v, ok := CoerceValue(positiveLabel)
			if !ok || v != math.Trunc(v) {
				return nil, TargetEncoding{}, fmt.Errorf("%w: positive label %q is not a class of a numeric target", ErrInvalidInput, positiveLabel)
			}
			enc.PositiveClass = int(v)
		}
		return codes, enc, nil
	}

	cleaned := make([]string, len(raw))
	distinct := make(map[string]struct{})
	for i, label := range raw {
		cleaned[i] = cleanLabel(label)
		distinct[cleaned[i]] = struct{}{}
	}
	labels := make([]string, 0, len(distinct))
	for label := range distinct {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	byLabel := make(map[string]int, len(labels))
	for code, label := range labels {
		byLabel[label] = code
	}
	codes := make([]int, len(cleaned))
	for i, label := range cleaned {
		codes[i] = byLabel[label]
	}

	enc := TargetEncoding{Kind: TargetCategorical, Labels: labels, PositiveClass: DefaultPositiveClass}
	if positiveLabel != "" {
		code, ok := byLabel[cleanLabel(positiveLabel)]
		if !ok {
			return nil, TargetEncoding{}, fmt.Errorf("%w: positive label %q not found in target column", ErrInvalidInput, positiveLabel)
		}
		enc.PositiveClass = code
	}
	return codes, enc, nil
}

// cleanLabel drops commas and surrounding whitespace. Inner spaces are part
// of the label.
func cleanLabel(label string) string {
	return strings.TrimSpace(strings.ReplaceAll(label, ",", ""))
}

func numericCodes(raw []string) ([]int, bool) {
	codes := make([]int, len(raw))
	for i, label := range raw {
		v, ok := CoerceValue(label)
		if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return nil, false
		}
		codes[i] = int(v)
	}
	return codes, true
}

// Decode returns the human-facing label of a class code.
func (e TargetEncoding) Decode(code int) string {
	if e.Kind == TargetCategorical && code >= 0 && code < len(e.Labels) {
		return e.Labels[code]
	}
	return strconv.Itoa(code)
}

// Categorical reports whether labels were text-encoded.
func (e TargetEncoding) Categorical() bool {
	return e.Kind == TargetCategorical
}
