package pipeline

import (
	"fmt"
	"math"
)

// Slot is one named input of a feature schema.
type Slot struct {
	Name    string   `json:"name"`
	Default float64  `json:"default"`
	Aliases []string `json:"aliases,omitempty"`
}

// FeatureSchema is the ordered list of features a classifier was fit on.
// Slot order is the column order of every feature vector.
type FeatureSchema struct {
	Slots []Slot `json:"slots"`
}

// NewSchema builds a schema with a zero default for every name.
func NewSchema(names []string) FeatureSchema {
	slots := make([]Slot, len(names))
	for i, name := range names {
		slots[i] = Slot{Name: name}
	}
	return FeatureSchema{Slots: slots}
}

// Len returns the number of slots.
func (s FeatureSchema) Len() int {
	return len(s.Slots)
}

// Names returns slot names in schema order.
func (s FeatureSchema) Names() []string {
	names := make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		names[i] = slot.Name
	}
	return names
}

// Defaults returns slot defaults in schema order.
func (s FeatureSchema) Defaults() []float64 {
	defaults := make([]float64, len(s.Slots))
	for i, slot := range s.Slots {
		defaults[i] = slot.Default
	}
	return defaults
}

// WithDefaults returns a copy of s with defaults applied by column name.
// Names are matched after normalization; unknown names are ignored.
func (s FeatureSchema) WithDefaults(defaults map[string]float64) FeatureSchema {
	out := s.clone()
	if len(defaults) == 0 {
		return out
	}
	byKey := make(map[string]float64, len(defaults))
	for name, value := range defaults {
		byKey[NormalizeName(name)] = value
	}
	for i := range out.Slots {
		if value, ok := byKey[NormalizeName(out.Slots[i].Name)]; ok {
			out.Slots[i].Default = value
		}
	}
	return out
}

// WithAliases returns a copy of s with extra spellings registered per slot.
func (s FeatureSchema) WithAliases(aliases map[string][]string) FeatureSchema {
	out := s.clone()
	if len(aliases) == 0 {
		return out
	}
	byKey := make(map[string][]string, len(aliases))
	for name, spellings := range aliases {
		key := NormalizeName(name)
		byKey[key] = append(byKey[key], spellings...)
	}
	for i := range out.Slots {
		if extra, ok := byKey[NormalizeName(out.Slots[i].Name)]; ok {
			out.Slots[i].Aliases = append(out.Slots[i].Aliases, extra...)
		}
	}
	return out
}

// Validate reports ErrSchemaMismatch when the schema cannot be used to
// build feature vectors.
func (s FeatureSchema) Validate() error {
	if len(s.Slots) == 0 {
		return fmt.Errorf("%w: schema has no slots", ErrSchemaMismatch)
	}
	_, err := s.keyIndex()
	return err
}

// keyIndex maps every normalized name and alias to its slot position.
func (s FeatureSchema) keyIndex() (map[string]int, error) {
	index := make(map[string]int, len(s.Slots))
	add := func(name string, pos int) error {
		key := NormalizeName(name)
		if key == "" {
			return fmt.Errorf("%w: slot %d has an empty name %q", ErrSchemaMismatch, pos, name)
		}
		if prev, ok := index[key]; ok && prev != pos {
			return fmt.Errorf("%w: %q collides with slot %q", ErrSchemaMismatch, name, s.Slots[prev].Name)
		}
		index[key] = pos
		return nil
	}
	for i, slot := range s.Slots {
		if math.IsNaN(slot.Default) || math.IsInf(slot.Default, 0) {
			return nil, fmt.Errorf("%w: slot %q has a non-finite default", ErrSchemaMismatch, slot.Name)
		}
		if err := add(slot.Name, i); err != nil {
			return nil, err
		}
		for _, alias := range slot.Aliases {
			if err := add(alias, i); err != nil {
				return nil, err
			}
		}
	}
	return index, nil
}

func (s FeatureSchema) clone() FeatureSchema {
	slots := make([]Slot, len(s.Slots))
	for i, slot := range s.Slots {
		slots[i] = slot
		slots[i].Aliases = append([]string(nil), slot.Aliases...)
	}
	return FeatureSchema{Slots: slots}
}
