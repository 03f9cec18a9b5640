// Package chunker splits long memory content into pieces for full-text indexing.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 800
	DefaultMaxSize    = 1200
)

// Options configures chunking. Sizes are in runes.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// Chunk is one piece of the original text.
type Chunk struct {
	Seq  int
	Text string
}

// Split breaks text into chunks. Text no longer than MaxSize is one chunk.
// Paragraphs are packed up to TargetSize; a paragraph over MaxSize is broken
// on word boundaries.
func Split(text string, opts Options) []Chunk {
	if opts.TargetSize <= 0 || opts.MaxSize < opts.TargetSize {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= opts.MaxSize {
		return []Chunk{{Seq: 0, Text: text}}
	}

	var pieces []string
	for _, p := range paragraphs(text) {
		if utf8.RuneCountInString(p) > opts.MaxSize {
			pieces = append(pieces, splitWords(p, opts.TargetSize)...)
			continue
		}
		pieces = append(pieces, p)
	}
	return pack(pieces, opts.TargetSize)
}

// paragraphs splits on blank lines.
func paragraphs(text string) []string {
	var out []string
	var current []string
	flush := func() {
		if p := strings.TrimSpace(strings.Join(current, "\n")); p != "" {
			out = append(out, p)
		}
		current = nil
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}

// splitWords cuts an oversized paragraph near target runes. A single word
// longer than target becomes its own piece.
func splitWords(p string, target int) []string {
	var out []string
	var b strings.Builder
	n := 0
	for _, w := range strings.Fields(p) {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > target {
			out = append(out, b.String())
			b.Reset()
			n = 0
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(w)
		n += wl
	}
	if n > 0 {
		out = append(out, b.String())
	}
	return out
}

// pack joins consecutive pieces while they fit in target runes.
func pack(pieces []string, target int) []Chunk {
	var chunks []Chunk
	var accum string
	for _, p := range pieces {
		if accum == "" {
			accum = p
			continue
		}
		if utf8.RuneCountInString(accum)+2+utf8.RuneCountInString(p) <= target {
			accum += "\n\n" + p
			continue
		}
		chunks = append(chunks, Chunk{Seq: len(chunks), Text: accum})
		accum = p
	}
	if accum != "" {
		chunks = append(chunks, Chunk{Seq: len(chunks), Text: accum})
	}
	return chunks
}
