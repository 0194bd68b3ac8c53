// Package chunk splits a text blob into overlapping fixed-size segments.
//
// Boundaries are hard character cuts: a chunk ends exactly size runes after it
// starts, never moved to whitespace or sentence ends. Lengths count runes, and
// slicing happens on rune boundaries of the original string, so the exact
// bytes of the input are preserved and Join reconstructs it.
package chunk

import (
	"fmt"
	"unicode/utf8"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// Default splitter settings.
const (
	DefaultSize    = 10000
	DefaultOverlap = 1000
)

// Splitter is an immutable value object holding validated size/overlap.
type Splitter struct {
	size    int
	overlap int
}

// New validates and creates a Splitter. Requires size > 0 and 0 <= overlap < size.
func New(size, overlap int) (Splitter, error) {
	if size <= 0 {
		return Splitter{}, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrInvalidChunking)
	}
	if overlap < 0 || overlap >= size {
		return Splitter{}, fmt.Errorf(
			"chunk overlap must be in [0, %d), got %d: %w", size, overlap, domain.ErrInvalidChunking,
		)
	}
	return Splitter{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (s Splitter) Size() int { return s.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (s Splitter) Overlap() int { return s.overlap }

// Split cuts text into windows of Size runes advancing by Size-Overlap runes.
// Empty text yields nil. Text of at most Size runes yields one chunk equal to it.
// Splitting stops at the first window that reaches the end of the text, so every
// consecutive pair shares exactly Overlap runes.
func (s Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := utf8.RuneCountInString(text)
	if runes <= s.size {
		return []string{text}
	}

	// start and end are byte cursors; each window moves both by step runes.
	step := s.size - s.overlap
	chunks := make([]string, 0, (runes-s.overlap+step-1)/step)
	start, end := 0, skipRunes(text, s.size)
	for {
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
		start += skipRunes(text[start:], step)
		end += skipRunes(text[end:], step)
	}
	return chunks
}

// Split is a convenience wrapper over New(size, overlap).Split(text).
func Split(text string, size, overlap int) ([]string, error) {
	s, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

// Join reverses Split: it concatenates chunks, dropping the first overlap runes
// of every chunk after the first.
func Join(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	n := len(chunks[0])
	for _, c := range chunks[1:] {
		n += len(c)
	}

	buf := make([]byte, 0, n)
	buf = append(buf, chunks[0]...)
	for _, c := range chunks[1:] {
		buf = append(buf, c[skipRunes(c, overlap):]...)
	}
	return string(buf)
}

// skipRunes returns the byte offset just past the first n runes of s.
func skipRunes(s string, n int) int {
	off := 0
	for i := 0; i < n && off < len(s); i++ {
		_, w := utf8.DecodeRuneInString(s[off:])
		off += w
	}
	return off
}
