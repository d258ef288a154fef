package rag

import (
	"fmt"
	"strings"
)

// Default chunking parameters. A 1000-character window with 200 characters of
// overlap keeps individual chunks small enough for precise retrieval while
// the overlap preserves meaning that straddles a window boundary.
const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunker splits raw extracted text into overlapping fixed-size windows.
// The overlap must be non-zero to avoid losing cross-boundary context and
// strictly less than the window size to avoid unbounded duplication.
type Chunker struct {
	// size is the maximum number of runes per window.
	size int
	// overlap is the number of runes shared between consecutive windows.
	overlap int
}

// NewChunker constructs a Chunker with the given window size and overlap.
// Zero values select the defaults; a negative overlap is clamped to zero.
// Returns an error when overlap >= size — such a configuration would never
// make forward progress.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		return nil, fmt.Errorf("rag: chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split cuts text into overlapping windows of the configured size. Windows
// are measured in runes, so a boundary never lands inside a multi-byte
// character. Leading and trailing whitespace is trimmed first; blank input
// yields no chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := c.size - c.overlap

	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}
