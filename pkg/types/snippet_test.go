package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet_Hex(t *testing.T) {
	tests := []struct {
		name     string
		snippet  Snippet
		expected string
	}{
		{
			name:     "with context",
			snippet:  Snippet{Before: []byte{0x00, 0x10}, Matching: []byte{0x48, 0x2E, 0x99}, After: []byte{0x48, 0x2E}},
			expected: "0010[482e99]482e",
		},
		{
			name:     "no context",
			snippet:  Snippet{Matching: []byte{0xCC}},
			expected: "[cc]",
		},
		{
			name:     "nil everything",
			snippet:  Snippet{},
			expected: "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.snippet.Hex())
		})
	}
}
