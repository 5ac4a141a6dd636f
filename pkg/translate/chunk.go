package translate

import "strings"

// DefaultChunkBytes is the default chunk budget, below the per-request
// limit of common translation backends.
const DefaultChunkBytes = 90 * 1024

// Chunk groups consecutive sentences greedily into chunks whose summed UTF-8
// length stays within budget. Separating spaces are not counted. A single
// sentence longer than budget becomes its own chunk. Blank sentences are
// dropped and chunks are joined with single spaces.
func Chunk(sentences []string, budget int) []string {
	if budget <= 0 {
		budget = DefaultChunkBytes
	}
	var (
		chunks  []string
		current []string
		size    int
	)
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(current) > 0 && size+len(s) > budget {
			chunks = append(chunks, strings.Join(current, " "))
			current, size = nil, 0
		}
		current = append(current, s)
		size += len(s)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
