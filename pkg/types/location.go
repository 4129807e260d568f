package types

import "fmt"

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// String formats the span as hex offsets, "0x10-0x18".
func (s OffsetSpan) String() string {
	return fmt.Sprintf("0x%X-0x%X", s.Start, s.End)
}

// Location places a match inside its blob.
type Location struct {
	Offset OffsetSpan
}
