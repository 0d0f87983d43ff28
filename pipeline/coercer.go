package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// FallbackValue replaces any value that cannot be read as a number.
const FallbackValue = 0.0

// groupingRunes are dropped from text before parsing, so "1,000" and
// "1 000" both read as 1000.
var groupingRunes = strings.NewReplacer(
	",", "",
	"'", "",
	" ", "",
	"\u00a0", "",
	"\u2009", "",
	"\u202f", "",
)

// CleanText trims text and drops digit grouping punctuation.
func CleanText(s string) string {
	return groupingRunes.Replace(strings.TrimSpace(s))
}

// CoerceValue converts one raw scalar to a finite number. ok is false when
// the fallback value was substituted. Booleans are not numbers and fall back.
func CoerceValue(raw any) (value float64, ok bool) {
	switch v := raw.(type) {
	case nil, bool:
		return FallbackValue, false
	case float64:
		return finite(v)
	case string:
		cleaned := CleanText(v)
		if cleaned == "" {
			return FallbackValue, false
		}
		raw = cleaned
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return FallbackValue, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return FallbackValue, false
	}
	return f, true
}

// CoerceRow converts schema-ordered raw values into a feature vector,
// recording every substituted cell in report.
func CoerceRow(schema FeatureSchema, row int, values []any, report *Report) []float64 {
	vector := make([]float64, len(values))
	for i, raw := range values {
		v, ok := CoerceValue(raw)
		if !ok && report != nil {
			column := ""
			if i < schema.Len() {
				column = schema.Slots[i].Name
			}
			report.AddFallback(Fallback{Row: row, Column: column, Raw: describe(raw)})
		}
		vector[i] = v
	}
	return vector
}

func describe(raw any) string {
	if raw == nil {
		return ""
	}
	return fmt.Sprint(raw)
}
