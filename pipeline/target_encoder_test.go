package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTargetNumericPassesThrough(t *testing.T) {
	codes, enc, err := EncodeTarget([]string{"0", "1", " 1 ", "0"}, "")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 1, 0}, codes)
	assert.Equal(t, TargetNumeric, enc.Kind)
	assert.Equal(t, 1, enc.PositiveClass)
	assert.Equal(t, "1", enc.Decode(1))
}

func TestEncodeTargetCategoricalIsLexical(t *testing.T) {
	codes, enc, err := EncodeTarget([]string{"YES", "NO", "NO", "YES"}, "YES")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0, 0, 1}, codes)
	assert.Equal(t, []string{"NO", "YES"}, enc.Labels)
	assert.Equal(t, 1, enc.PositiveClass)
	assert.Equal(t, "YES", enc.Decode(1))
	assert.True(t, enc.Categorical())
}

func TestEncodeTargetPinsPositiveClass(t *testing.T) {
	codes, enc, err := EncodeTarget([]string{"burned", "ok", "ok"}, "burned")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 1}, codes)
	assert.Equal(t, 0, enc.PositiveClass)
}

func TestEncodeTargetErrors(t *testing.T) {
	_, _, err := EncodeTarget(nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = EncodeTarget([]string{"a", "b"}, "c")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = EncodeTarget([]string{"0", "1"}, "yes")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEncodeTargetIsDeterministic(t *testing.T) {
	_, first, err := EncodeTarget([]string{"c", "a", "b", "a"}, "")
	require.NoError(t, err)
	_, second, err := EncodeTarget([]string{"b", "a", "c"}, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncodeTargetKeepsInnerSpelling(t *testing.T) {
	codes, enc, err := EncodeTarget([]string{"Not burned", "Burned", " Not burned ", "Notburned", "O'Brien", "Burned,"}, "Burned")
	require.NoError(t, err)

	assert.Equal(t, []string{"Burned", "Not burned", "Notburned", "O'Brien"}, enc.Labels)
	assert.Equal(t, []int{1, 0, 1, 2, 3, 0}, codes)
	assert.Equal(t, 0, enc.PositiveClass)
	assert.Equal(t, "Not burned", enc.Decode(1))
	assert.NotEqual(t, enc.Decode(codes[0]), enc.Decode(codes[3]))
}
