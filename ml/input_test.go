package ml

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputShapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		batch bool
		size  int
	}{
		{name: "flat vector", raw: `[1, 2, 3]`, size: 1},
		{name: "batch of vectors", raw: `[[1, 2, 3], [4, 5, 6]]`, batch: true, size: 2},
		{name: "named record", raw: `{"A": "1,000", "B": "x"}`, size: 1},
		{name: "batch of records", raw: `[{"A": 1}, {"B": 2}]`, batch: true, size: 2},
		{name: "strings in a vector", raw: `["1,000", "STRATUM 2", null]`, size: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseInput(json.RawMessage(tt.raw), "")
			require.NoError(t, err)
			assert.Equal(t, tt.batch, in.IsBatch())
			assert.Equal(t, tt.size, in.Len())
		})
	}
}

func TestParseInputRejectsAmbiguousShapes(t *testing.T) {
	tests := map[string]string{
		"missing":         ``,
		"null":            `null`,
		"empty list":      `[]`,
		"empty row":       `[[]]`,
		"mixed nesting":   `[1, [2, 3]]`,
		"ragged kinds":    `[[1, 2], 3]`,
		"records and row": `[{"A": 1}, [1]]`,
		"deep nesting":    `[[[1]]]`,
		"scalar":          `42`,
		"malformed":       `[1, 2`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInput(json.RawMessage(raw), "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestParseInputDeclaredShape(t *testing.T) {
	_, err := ParseInput(json.RawMessage(`[1, 2, 3]`), ShapeRecord)
	require.NoError(t, err)

	_, err = ParseInput(json.RawMessage(`[1, 2, 3]`), ShapeBatch)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in, err := ParseInput(json.RawMessage(`[[1, 2, 3]]`), ShapeBatch)
	require.NoError(t, err)
	assert.True(t, in.IsBatch())

	_, err = ParseInput(json.RawMessage(`[1]`), "matrix")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseInputMissingFieldMessage(t *testing.T) {
	_, err := ParseInput(nil, "")
	assert.EqualError(t, err, "invalid input: JSON must contain 'input' field")
}
