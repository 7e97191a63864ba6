// Package document turns raw catalog files into plain text, tables and
// bounded chunks ready for indexing.
package document

import (
	"regexp"
	"strings"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var spaceRE = regexp.MustCompile(`\s+`)

// Chunker splits long text into overlapping segments, preferring to cut
// at sentence boundaries. Lengths are measured in runes so multi-byte
// characters are never split.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split chunks text after whitespace normalization. Text at most Size
// runes long comes back as a single chunk. Empty input yields no chunks.
func (c Chunker) Split(text string) []string {
	norm := normalizeWhitespace(text)
	if norm == "" {
		if text == "" {
			return nil
		}
		return []string{""}
	}

	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(norm)
	if len(runes) <= size {
		return []string{norm}
	}

	chunks := make([]string, 0, len(runes)/size+1)
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if p := sentenceEnd(runes, start, end); p > start {
			end = p
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			// Overlap at or above the chunk size would stall here.
			next = end
		}
		start = next
	}
	return chunks
}

// sentenceEnd returns the position just after the last sentence
// terminator strictly inside (start, end), or -1 when there is none. A
// terminator is '.', '!' or '?' followed by a space or newline.
func sentenceEnd(runes []rune, start, end int) int {
	for i := end - 2; i > start; i-- {
		switch runes[i] {
		case '.', '!', '?':
			if runes[i+1] == ' ' || runes[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return -1
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}
