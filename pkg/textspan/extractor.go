package textspan

import (
	"unicode"
	"unicode/utf8"
)

// DefaultMaxSpans bounds how many sentence spans are extracted from a single
// fragment when the caller has no tighter budget.
const DefaultMaxSpans = 400

// Span is a half-open byte range [Start:End) into the original text. Spans are
// whitespace-trimmed, so text[Start:End] never begins or ends with whitespace.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Text returns the exact substring of text covered by the span.
func (s Span) Text(text string) string {
	return text[s.Start:s.End]
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n', '؟', '؛', '۔':
		return true
	}
	return false
}

// Spans splits text into non-overlapping, offset-stable sentence-like spans,
// capped at maxSpans. A span runs from the previous cut point through and
// including a sentence terminator; trimming only narrows offsets, it never
// shifts content, so the same input always yields the same spans. This
// determinism is load-bearing for citation stability.
func Spans(text string, maxSpans int) []Span {
	if maxSpans <= 0 {
		maxSpans = DefaultMaxSpans
	}

	var spans []Span
	seen := make(map[Span]struct{})

	emit := func(start, end int) bool {
		sp, ok := trim(text, start, end)
		if !ok {
			return len(spans) < maxSpans
		}
		if _, dup := seen[sp]; dup {
			return len(spans) < maxSpans
		}
		seen[sp] = struct{}{}
		spans = append(spans, sp)
		return len(spans) < maxSpans
	}

	cut := 0
	for i, r := range text {
		if !isTerminator(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if !emit(cut, end) {
			return spans
		}
		cut = end
	}

	if cut < len(text) {
		emit(cut, len(text))
	}

	return spans
}

// trim narrows [start:end) past surrounding whitespace. Returns false when the
// span collapses to empty.
func trim(text string, start, end int) (Span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start >= end {
		return Span{}, false
	}
	return Span{Start: start, End: end}, true
}
