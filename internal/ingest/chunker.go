// Package ingest loads documents into the vector index and sales figures
// into the sales database.
package ingest

import "strings"

const (
	defaultChunkSize = 1000
	defaultOverlap   = 200
)

// Chunker splits document text into chunks bounded by maxSize runes.
// Paragraph boundaries are respected; a paragraph longer than maxSize is
// window-split with overlap runes of continuity between windows.
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker creates a Chunker. Non-positive arguments fall back to the
// defaults, and overlap is clamped below maxSize.
func NewChunker(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultOverlap
	}
	if overlap >= maxSize {
		overlap = maxSize / 4
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Split breaks text into chunks. Whitespace-only input yields nil.
func (c *Chunker) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var pieces []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pieces = append(pieces, c.windowSplit(p)...)
	}

	// Pack consecutive paragraphs into chunks up to maxSize.
	var chunks []string
	var cur []rune
	for _, p := range pieces {
		r := []rune(p)
		if len(cur) > 0 && len(cur)+2+len(r) > c.maxSize {
			chunks = append(chunks, string(cur))
			cur = cur[:0]
		}
		if len(cur) > 0 {
			cur = append(cur, '\n', '\n')
		}
		cur = append(cur, r...)
	}
	if len(cur) > 0 {
		chunks = append(chunks, string(cur))
	}
	return chunks
}

// windowSplit cuts a single oversized paragraph into maxSize windows that
// overlap so no sentence is lost on a boundary.
func (c *Chunker) windowSplit(p string) []string {
	r := []rune(p)
	if len(r) <= c.maxSize {
		return []string{p}
	}

	step := c.maxSize - c.overlap
	var out []string
	for start := 0; start < len(r); start += step {
		end := start + c.maxSize
		if end >= len(r) {
			out = append(out, string(r[start:]))
			break
		}
		out = append(out, string(r[start:end]))
	}
	return out
}
