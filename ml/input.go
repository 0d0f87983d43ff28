package ml

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gridguard/pipeline"
)

// Input is one record or a batch of records, either named or positional.
// The single/batch distinction is explicit and never inferred from values.
type Input struct {
	batch      bool
	named      []pipeline.RawRecord
	positional [][]any
}

// Record wraps one named record.
func Record(r pipeline.RawRecord) Input {
	return Input{named: []pipeline.RawRecord{r}}
}

// Records wraps a batch of named records.
func Records(rs []pipeline.RawRecord) Input {
	return Input{batch: true, named: rs}
}

// Vector wraps one record whose values are in schema order.
func Vector(values []any) Input {
	return Input{positional: [][]any{values}}
}

// Vectors wraps a batch of positional records.
func Vectors(rows [][]any) Input {
	return Input{batch: true, positional: rows}
}

func (in Input) IsBatch() bool {
	return in.batch
}

func (in Input) Len() int {
	return len(in.named) + len(in.positional)
}

// Input shape tags accepted from callers.
const (
	ShapeRecord = "record"
	ShapeBatch  = "batch"
)

// ParseInput decodes the JSON value of a request's input field. Accepted
// shapes: a flat sequence of scalars (one positional record), a sequence of
// such sequences (batch), an object (one named record) or a sequence of
// objects (batch). shape, when set to ShapeRecord or ShapeBatch, must agree
// with the structure.
func ParseInput(raw json.RawMessage, shape string) (Input, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Input{}, fmt.Errorf("%w: JSON must contain 'input' field", ErrInvalidInput)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return Input{}, fmt.Errorf("%w: input: %v", ErrInvalidInput, err)
	}

	in, err := structure(value)
	if err != nil {
		return Input{}, err
	}
	switch shape {
	case "":
	case ShapeRecord, ShapeBatch:
		if (shape == ShapeBatch) != in.batch {
			return Input{}, fmt.Errorf("%w: input shape does not match declared kind %q", ErrInvalidInput, shape)
		}
	default:
		return Input{}, fmt.Errorf("%w: unknown input kind %q", ErrInvalidInput, shape)
	}
	return in, nil
}

func structure(value any) (Input, error) {
	switch v := value.(type) {
	case map[string]any:
		return Record(v), nil
	case []any:
		if len(v) == 0 {
			return Input{}, fmt.Errorf("%w: input is empty", ErrInvalidInput)
		}
		switch v[0].(type) {
		case []any:
			rows := make([][]any, len(v))
			for i, item := range v {
				row, ok := item.([]any)
				if !ok {
					return Input{}, fmt.Errorf("%w: input[%d] is not a sequence like input[0]", ErrInvalidInput, i)
				}
				if err := scalars(row, i); err != nil {
					return Input{}, err
				}
				rows[i] = row
			}
			return Vectors(rows), nil
		case map[string]any:
			records := make([]pipeline.RawRecord, len(v))
			for i, item := range v {
				record, ok := item.(map[string]any)
				if !ok {
					return Input{}, fmt.Errorf("%w: input[%d] is not an object like input[0]", ErrInvalidInput, i)
				}
				records[i] = record
			}
			return Records(records), nil
		default:
			if err := scalars(v, -1); err != nil {
				return Input{}, err
			}
			return Vector(v), nil
		}
	default:
		return Input{}, fmt.Errorf("%w: input must be a sequence or an object", ErrInvalidInput)
	}
}

func scalars(row []any, rowIdx int) error {
	if len(row) == 0 {
		return fmt.Errorf("%w: input[%d] is empty", ErrInvalidInput, rowIdx)
	}
	for i, item := range row {
		switch item.(type) {
		case []any, map[string]any:
			if rowIdx < 0 {
				return fmt.Errorf("%w: input mixes values and sequences at position %d", ErrInvalidInput, i)
			}
			return fmt.Errorf("%w: input[%d][%d] is not a scalar", ErrInvalidInput, rowIdx, i)
		}
	}
	return nil
}
