package util

import "strings"

// TextChunk is a contiguous slice of a document's text. Offsets are rune
// positions into the source text; consecutive chunks overlap by the configured
// window but never otherwise.
type TextChunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// ChunkText splits text into chunks of at most chunkSize runes with the given
// overlap between consecutive chunks. Whitespace-only slices are skipped but
// offsets always refer to the original text.
func ChunkText(text string, chunkSize, overlap int) []TextChunk {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}
	out := make([]TextChunk, 0)
	idx := 0
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			out = append(out, TextChunk{Index: idx, Start: i, End: end, Text: part})
			idx++
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
