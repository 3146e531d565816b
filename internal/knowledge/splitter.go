package knowledge

import "strings"

const (
	// ChunkSize is the target chunk length in characters.
	ChunkSize = 1000
	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap = 100
)

// separators are tried in order when looking for a clean break.
var separators = []string{"\n\n", "\n", " "}

// Split breaks text into rune-safe chunks of at most size characters,
// each starting overlap characters before the previous one ended.
// Breaks prefer paragraph, line and word boundaries in the back half of a chunk.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	rs := []rune(strings.TrimSpace(text))
	if len(rs) == 0 {
		return nil
	}

	out := make([]string, 0, len(rs)/(size-overlap)+1)
	for start := 0; start < len(rs); {
		end := start + size
		if end >= len(rs) {
			if chunk := strings.TrimSpace(string(rs[start:])); chunk != "" {
				out = append(out, chunk)
			}
			break
		}

		end = breakPoint(rs, start, end)
		if chunk := strings.TrimSpace(string(rs[start:end])); chunk != "" {
			out = append(out, chunk)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint returns the end of a chunk in rs[start:end], moved back to just
// after the last separator found in the chunk's second half.
func breakPoint(rs []rune, start, end int) int {
	window := string(rs[start:end])
	half := len(string(rs[start : start+(end-start)/2]))

	for _, sep := range separators {
		i := strings.LastIndex(window, sep)
		if i >= half {
			return start + len([]rune(window[:i+len(sep)]))
		}
	}
	return end
}
