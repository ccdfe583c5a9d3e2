package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	limit := DefaultMaxInputSize

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeInput(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeInput_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("bad \xff byte")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitizeInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	_, err := SanitizeInput("12345678901")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = SanitizeInput("12345")
	assert.NoError(t, err)
}

func TestSanitizeValue(t *testing.T) {
	in := map[string]any{
		"name\x07": "Ada\x1b",
		"tags":     []any{"a\x00", float64(1), true},
		"nested":   map[string]any{"note": "line\nbreak"},
	}
	assert.Equal(t, map[string]any{
		"name":   "Ada",
		"tags":   []any{"a", float64(1), true},
		"nested": map[string]any{"note": "line\nbreak"},
	}, SanitizeValue(in))

	assert.Nil(t, SanitizeMap(nil))
}
