package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractContext(t *testing.T) {
	content := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}

	tests := []struct {
		name       string
		start      int
		end        int
		n          int
		wantBefore []byte
		wantAfter  []byte
	}{
		{name: "middle", start: 4, end: 6, n: 2, wantBefore: []byte{0x02, 0x03}, wantAfter: []byte{0x06, 0x07}},
		{name: "clamped at start", start: 1, end: 2, n: 4, wantBefore: []byte{0x00}, wantAfter: []byte{0x02, 0x03, 0x04, 0x05}},
		{name: "clamped at end", start: 8, end: 10, n: 4, wantBefore: []byte{0x04, 0x05, 0x06, 0x07}, wantAfter: nil},
		{name: "start of content", start: 0, end: 3, n: 2, wantBefore: nil, wantAfter: []byte{0x03, 0x04}},
		{name: "zero context", start: 4, end: 6, n: 0},
		{name: "negative start", start: -1, end: 2, n: 2},
		{name: "end past content", start: 8, end: 11, n: 2},
		{name: "inverted span", start: 6, end: 4, n: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after := ExtractContext(content, tt.start, tt.end, tt.n)
			assert.Equal(t, tt.wantBefore, before)
			assert.Equal(t, tt.wantAfter, after)
		})
	}
}

func TestExtractContext_Copies(t *testing.T) {
	content := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	before, after := ExtractContext(content, 1, 3, 1)

	content[0] = 0x00
	content[3] = 0x00
	assert.Equal(t, []byte{0xAA}, before)
	assert.Equal(t, []byte{0xDD}, after)
}
