package textspan

import (
	"strings"
	"unicode"

	"github.com/sanadlabs/sanad/pkg/common"
)

// overlapTokenMinLen is the minimum token length counted during anchor
// overlap scoring. Shorter tokens are too common to carry signal.
const overlapTokenMinLen = 3

// previewWordLimit bounds the offset-free preview quote attached to an
// unresolved anchor resolution.
const previewWordLimit = 30

// ResolveQuote resolves a literal quote against the raw fragment text by
// first exact substring occurrence. Normalized-text matches are deliberately
// not attempted: the inverse mapping from folded to raw offsets is ambiguous,
// and offsets are never guessed.
func ResolveQuote(fragmentID, text, quote string) common.SpanResolution {
	q := strings.TrimSpace(quote)
	if q == "" {
		return common.SpanResolution{
			FragmentID: fragmentID,
			Status:     common.ResolutionUnresolved,
			Method:     common.MethodQuoteNotFound,
		}
	}

	idx := strings.Index(text, q)
	if idx < 0 {
		return common.SpanResolution{
			FragmentID: fragmentID,
			Quote:      q,
			Status:     common.ResolutionUnresolved,
			Method:     common.MethodQuoteNotFound,
		}
	}

	start := idx
	end := idx + len(q)
	return common.SpanResolution{
		FragmentID: fragmentID,
		Quote:      q,
		Start:      &start,
		End:        &end,
		Status:     common.ResolutionResolved,
		Method:     common.MethodRawSubstring,
		Confidence: 1.0,
	}
}

// ResolveAnchor resolves free-form anchor text (typically a generated answer
// sentence) against the fragment by scoring every sentence span on shared
// token overlap. Ties break by highest overlap, then shortest span, then
// lowest start offset. Below minOverlapTokens the result is unresolved but
// still carries a bounded preview quote with no offsets. A resolved quote is
// clipped to maxQuoteWords words on a whitespace boundary and is always the
// exact substring of the returned offsets.
func ResolveAnchor(
	fragmentID, text, anchor string,
	minOverlapTokens, maxQuoteWords int,
) common.SpanResolution {
	if minOverlapTokens < 1 {
		minOverlapTokens = 1
	}
	if maxQuoteWords < 1 {
		maxQuoteWords = previewWordLimit
	}

	spans := Spans(text, DefaultMaxSpans)
	anchorTokens := TokenSet(Fold(anchor), overlapTokenMinLen)

	best := Span{}
	bestOverlap := -1
	for _, sp := range spans {
		overlap := 0
		for tok := range TokenSet(Fold(sp.Text(text)), overlapTokenMinLen) {
			if _, ok := anchorTokens[tok]; ok {
				overlap++
			}
		}
		if better(overlap, sp, bestOverlap, best) {
			bestOverlap = overlap
			best = sp
		}
	}

	if bestOverlap < minOverlapTokens {
		preview := ""
		if bestOverlap >= 0 {
			preview = limitWords(best.Text(text), previewWordLimit)
		}
		return common.SpanResolution{
			FragmentID: fragmentID,
			Quote:      preview,
			Status:     common.ResolutionUnresolved,
			Method:     common.MethodOverlapBelowThreshold,
		}
	}

	start, end := clipToWordBudget(text, best, maxQuoteWords)
	quote := text[start:end]
	confidence := 0.0
	if len(anchorTokens) > 0 {
		confidence = float64(bestOverlap) / float64(len(anchorTokens))
	}
	return common.SpanResolution{
		FragmentID: fragmentID,
		Quote:      quote,
		Start:      &start,
		End:        &end,
		Status:     common.ResolutionResolved,
		Method:     common.MethodSentenceOverlap,
		Confidence: confidence,
	}
}

func better(overlap int, sp Span, bestOverlap int, best Span) bool {
	if overlap != bestOverlap {
		return overlap > bestOverlap
	}
	if l, bl := sp.End-sp.Start, best.End-best.Start; l != bl {
		return l < bl
	}
	return sp.Start < best.Start
}

// clipToWordBudget narrows the span to at most maxWords words. It walks the
// raw text rune by rune and cuts at the whitespace boundary that closes the
// last budgeted word, so the returned range is always an exact substring with
// no surrounding whitespace. If boundary walking cannot land a cut, the
// word-limited text is re-located by substring search inside the span.
func clipToWordBudget(text string, sp Span, maxWords int) (int, int) {
	raw := sp.Text(text)
	if len(strings.Fields(raw)) <= maxWords {
		return sp.Start, sp.End
	}

	words := 0
	inWord := false
	for i, r := range raw {
		if unicode.IsSpace(r) {
			if inWord {
				words++
				inWord = false
				if words == maxWords {
					end := sp.Start + i
					// spans are trimmed, so the start is already on a word
					return sp.Start, trimEnd(text, sp.Start, end)
				}
			}
			continue
		}
		inWord = true
	}

	limited := strings.Join(strings.Fields(raw)[:maxWords], " ")
	if idx := strings.Index(raw, limited); idx >= 0 {
		return sp.Start + idx, sp.Start + idx + len(limited)
	}
	return sp.Start, sp.End
}

func trimEnd(text string, start, end int) int {
	sp, ok := trim(text, start, end)
	if !ok {
		return end
	}
	return sp.End
}

func limitWords(s string, maxWords int) string {
	fields := strings.Fields(s)
	if len(fields) <= maxWords {
		return s
	}
	return strings.Join(fields[:maxWords], " ")
}
