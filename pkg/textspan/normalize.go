package textspan

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fold normalizes text for matching: NFC form, lower case, Arabic diacritics
// stripped, and common Arabic letter variants collapsed. The result is only
// ever used for comparisons and token extraction; offsets are always taken
// from the raw text, so there is no inverse mapping to get wrong.
func Fold(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isArabicMark(r) {
			continue
		}
		switch r {
		case 'أ', 'إ', 'آ', 'ٱ':
			r = 'ا'
		case 'ى':
			r = 'ي'
		case 'ة':
			r = 'ه'
		case 'ـ': // tatweel
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isArabicMark(r rune) bool {
	switch {
	case r >= 0x0610 && r <= 0x061A:
		return true
	case r >= 0x064B && r <= 0x065F:
		return true
	case r == 0x0670:
		return true
	case r >= 0x06D6 && r <= 0x06ED:
		return true
	}
	return false
}

// Tokens splits folded text into tokens of at least minLen runes. Tokens are
// runs of letters and digits; everything else separates.
func Tokens(folded string, minLen int) []string {
	if minLen < 1 {
		minLen = 1
	}
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// TokenSet returns the distinct tokens of folded text as a set.
func TokenSet(folded string, minLen int) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokens(folded, minLen) {
		set[t] = struct{}{}
	}
	return set
}
