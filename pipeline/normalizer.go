package pipeline

import (
	"fmt"
	"sort"
)

// RawRecord is one input row keyed by arbitrary column names.
type RawRecord map[string]any

// NormalizedRecord holds one raw value per schema slot, in schema order.
type NormalizedRecord struct {
	Values []any
	// Filled lists slots that were absent from the input and took their default.
	Filled []string
	// Extras keeps input columns that are not part of the schema.
	Extras map[string]any
}

// Normalizer maps input columns onto a feature schema.
type Normalizer struct {
	schema FeatureSchema
	index  map[string]int
}

// NewNormalizer validates schema and prepares name matching for it.
func NewNormalizer(schema FeatureSchema) (*Normalizer, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	index, err := schema.keyIndex()
	if err != nil {
		return nil, err
	}
	return &Normalizer{schema: schema.clone(), index: index}, nil
}

// Schema returns the schema the normalizer matches against.
func (n *Normalizer) Schema() FeatureSchema {
	return n.schema.clone()
}

// Record aligns a named record to the schema. When several input keys
// normalize onto one slot, an exact name match wins, then the lexically
// first key; the losers are kept as extras.
func (n *Normalizer) Record(record RawRecord) NormalizedRecord {
	values := make([]any, n.schema.Len())
	bound := make([]bool, n.schema.Len())
	used := make(map[string]bool, len(record))

	for i, slot := range n.schema.Slots {
		if v, ok := record[slot.Name]; ok {
			values[i] = v
			bound[i] = true
			used[slot.Name] = true
		}
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		if !used[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	extras := make(map[string]any)
	for _, key := range keys {
		pos, ok := n.index[NormalizeName(key)]
		if !ok || bound[pos] {
			extras[key] = record[key]
			continue
		}
		values[pos] = record[key]
		bound[pos] = true
	}

	var filled []string
	for i, slot := range n.schema.Slots {
		if !bound[i] {
			values[i] = slot.Default
			filled = append(filled, slot.Name)
		}
	}
	return NormalizedRecord{Values: values, Filled: filled, Extras: extras}
}

// Positional aligns an unnamed record whose values are already in schema order.
func (n *Normalizer) Positional(values []any) ([]any, error) {
	if len(values) != n.schema.Len() {
		return nil, fmt.Errorf("%w: record has %d values, model expects %d", ErrInvalidInput, len(values), n.schema.Len())
	}
	return append([]any(nil), values...), nil
}

// ColumnMapping binds each schema slot to a column of a table header.
type ColumnMapping struct {
	schema  FeatureSchema
	sources []int
	// Filled lists slots with no matching column; every row takes the default.
	Filled []string
}

// Columns matches a table header against the schema. The first matching
// header column wins for each slot.
func (n *Normalizer) Columns(header []string) ColumnMapping {
	sources := make([]int, n.schema.Len())
	for i := range sources {
		sources[i] = -1
	}
	for col, name := range header {
		pos, ok := n.index[NormalizeName(name)]
		if !ok {
			continue
		}
		if sources[pos] < 0 || (name == n.schema.Slots[pos].Name && header[sources[pos]] != name) {
			sources[pos] = col
		}
	}
	var filled []string
	for i, src := range sources {
		if src < 0 {
			filled = append(filled, n.schema.Slots[i].Name)
		}
	}
	return ColumnMapping{schema: n.schema, sources: sources, Filled: filled}
}

// Row returns the schema-ordered raw values of one table row.
func (m ColumnMapping) Row(row []string) []any {
	values := make([]any, len(m.sources))
	for i, src := range m.sources {
		switch {
		case src < 0:
			values[i] = m.schema.Slots[i].Default
		case src < len(row):
			values[i] = row[src]
		default:
			values[i] = ""
		}
	}
	return values
}

// Source returns the header column bound to slot i, or -1.
func (m ColumnMapping) Source(i int) int {
	return m.sources[i]
}
