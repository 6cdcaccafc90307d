package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// leafSeparators are tried in order: paragraph, line, sentence, word, and
// finally single characters.
var leafSeparators = []string{"\n\n", "\n", sentenceSep, " ", ""}

const sentenceSep = ". "

// LeafSplitter cuts a single text into pieces no longer than the chunk size,
// measured in code points, with trailing overlap between neighbours.
// Separators are kept; a sentence stop that lands at the start of a piece
// is moved back onto the piece it terminates.
type LeafSplitter struct {
	chunkSize int
	rc        textsplitter.RecursiveCharacter
}

// NewLeafSplitter returns a splitter for the given limits. An overlap that
// is not smaller than chunkSize is reduced to a quarter of it.
func NewLeafSplitter(chunkSize, overlap int) *LeafSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &LeafSplitter{
		chunkSize: chunkSize,
		rc: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators(leafSeparators),
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithKeepSeparator(true),
		),
	}
}

// Split returns the pieces of text in order. Empty or whitespace-only input
// yields nil.
func (s *LeafSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	// RecursiveCharacter only reports errors from its own recursion, which
	// has no failing step.
	parts, _ := s.rc.SplitText(text)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n := len(out); n > 0 && (p == "." || strings.HasPrefix(p, sentenceSep)) {
			prev := out[n-1]
			if !strings.HasSuffix(prev, ".") && utf8.RuneCountInString(prev) < s.chunkSize {
				out[n-1] = prev + "."
				if p = strings.TrimSpace(p[1:]); p == "" {
					continue
				}
			}
		}
		out = append(out, p)
	}
	return out
}

// Split is a convenience wrapper around NewLeafSplitter.
func Split(text string, chunkSize, overlap int) []string {
	return NewLeafSplitter(chunkSize, overlap).Split(text)
}
