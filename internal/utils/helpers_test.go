package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "UNKNOWN"},
		{"blank string", "   ", "UNKNOWN"},
		{"trimmed string", "  ACME  ", "ACME"},
		{"float", 12.5, "12.5"},
		{"whole float", float64(40), "40"},
		{"int", 7, "7"},
		{"bool", true, "true"},
		{"list", []any{"a", " ", "b", nil}, "a, b"},
		{"empty list", []any{}, "UNKNOWN"},
		{"blank list", []any{"", "  "}, "UNKNOWN"},
		{"string list", []string{"x", "y"}, "x, y"},
		{"map sorted", map[string]any{"b": "2", "a": nil}, "a=UNKNOWN; b=2"},
		{"empty map", map[string]any{}, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(nil))
	assert.True(t, IsBlank(" "))
	assert.True(t, IsBlank([]any{}))
	assert.True(t, IsBlank(map[string]any{}))
	assert.False(t, IsBlank("x"))
	assert.False(t, IsBlank(0.0))
}

func TestMillis(t *testing.T) {
	assert.Equal(t, int64(1500), *Millis(1500*time.Millisecond))
}
