package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAndDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single element",
			input:    []string{"kafka:9092"},
			expected: []string{"kafka:9092"},
		},
		{
			name:     "splits a comma separated env value",
			input:    []string{"kafka-1:9092,kafka-2:9092"},
			expected: []string{"kafka-1:9092", "kafka-2:9092"},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  products  ", "reviews , recommendations"},
			expected: []string{"products", "reviews", "recommendations"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"products", "reviews", "products"},
			expected: []string{"products", "reviews"},
		},
		{
			name:     "removes empty entries",
			input:    []string{"a", "", " , ", "b,"},
			expected: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitAndDedupe(tt.input))
		})
	}
}
