package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"underscored", "Burning_rate_Failures_year", "burning_rate_failures_year"},
		{"punctuated", "Burning rate  [Failures/year]", "burning_rate_failures_year"},
		{"hyphen", "SELF-PROTECTION", "self_protection"},
		{"trailing colon", "km of network LT:", "km_of_network_lt"},
		{"surrounding space", "  POWER ", "power"},
		{"full width", "ＰＯＷＥＲ", "power"},
		{"only punctuation", "[]/:", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}
