package matcher

// ExtractContext returns up to n bytes on each side of content[start:end].
// The results are copies, so storing them does not pin content in memory.
// Invalid spans yield no context.
func ExtractContext(content []byte, start, end, n int) (before, after []byte) {
	if n <= 0 {
		return nil, nil
	}
	if start < 0 || end > len(content) || start > end {
		return nil, nil
	}

	if from := max(0, start-n); from < start {
		before = append([]byte{}, content[from:start]...)
	}
	if to := min(len(content), end+n); end < to {
		after = append([]byte{}, content[end:to]...)
	}
	return before, after
}
