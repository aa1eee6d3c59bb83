package textspan

import (
	"strings"
	"testing"

	"github.com/sanadlabs/sanad/pkg/common"
)

func TestResolveQuoteFirstOccurrence(t *testing.T) {
	text := "التعريف: المعنى الأول. التعريف: المعنى الثاني."
	res := ResolveQuote("frag-1", text, "التعريف")
	if !res.Resolved() {
		t.Fatalf("quote should resolve: %+v", res)
	}
	if *res.Start != 0 {
		t.Fatalf("expected first occurrence at 0, got %d", *res.Start)
	}
	if text[*res.Start:*res.End] != "التعريف" {
		t.Fatalf("offsets do not cover the quote: %q", text[*res.Start:*res.End])
	}
	if res.Method != common.MethodRawSubstring {
		t.Fatalf("method = %q", res.Method)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("confidence = %v", res.Confidence)
	}
}

func TestResolveQuoteExactSubstringOffsets(t *testing.T) {
	text := "الصبر نصف الإيمان. والشكر نصفه الآخر."
	quote := "والشكر نصفه"
	res := ResolveQuote("frag-1", text, quote)
	if !res.Resolved() {
		t.Fatalf("quote should resolve: %+v", res)
	}
	if want := strings.Index(text, quote); *res.Start != want {
		t.Fatalf("start = %d, want %d", *res.Start, want)
	}
	if text[*res.Start:*res.End] != quote {
		t.Fatalf("offsets do not reproduce the quote")
	}
}

func TestResolveQuoteNotFound(t *testing.T) {
	res := ResolveQuote("frag-1", "الصبر نصف الإيمان.", "التوكل")
	if res.Resolved() {
		t.Fatalf("missing quote should not resolve")
	}
	if res.Start != nil || res.End != nil {
		t.Fatalf("unresolved result must carry no offsets")
	}
	if res.Method != common.MethodQuoteNotFound {
		t.Fatalf("method = %q", res.Method)
	}
}

func TestResolveQuoteDiacriticMismatchStaysUnresolved(t *testing.T) {
	// the raw text is diacritized; a plain-spelling quote does not occur
	// verbatim, and folded matching is deliberately not attempted
	res := ResolveQuote("frag-1", "الصَّبْرُ مفتاح الفرج.", "الصبر")
	if res.Resolved() {
		t.Fatalf("folded-only match must stay unresolved")
	}
}

func TestResolveQuoteEmpty(t *testing.T) {
	res := ResolveQuote("frag-1", "some text", "   ")
	if res.Resolved() {
		t.Fatalf("blank quote should not resolve")
	}
}

func TestResolveAnchorPicksBestSentence(t *testing.T) {
	text := "الصبر حبس النفس على ما تكره. الإيمان قول وعمل. الصبر من الإيمان بمنزلة الرأس من الجسد."
	anchor := "الصبر جزء من الإيمان كالرأس من الجسد"
	res := ResolveAnchor("frag-1", text, anchor, 2, 30)
	if !res.Resolved() {
		t.Fatalf("anchor should resolve: %+v", res)
	}
	if !strings.Contains(res.Quote, "بمنزلة الرأس") {
		t.Fatalf("picked wrong sentence: %q", res.Quote)
	}
	if text[*res.Start:*res.End] != res.Quote {
		t.Fatalf("quote is not the exact substring of the offsets")
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", res.Confidence)
	}
}

func TestResolveAnchorZeroOverlapUnresolved(t *testing.T) {
	text := "الصبر نصف الإيمان. والشكر نصفه الآخر."
	res := ResolveAnchor("frag-1", text, "completely unrelated english words", 2, 30)
	if res.Resolved() {
		t.Fatalf("zero overlap must stay unresolved")
	}
	if res.Start != nil || res.End != nil {
		t.Fatalf("unresolved result must carry no offsets")
	}
	if res.Method != common.MethodOverlapBelowThreshold {
		t.Fatalf("method = %q", res.Method)
	}
	// a bounded preview is still allowed for display
	if res.Quote == "" {
		t.Fatalf("expected a preview quote")
	}
}

func TestResolveAnchorWordBudget(t *testing.T) {
	long := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu"
	text := long + ". short tail."
	res := ResolveAnchor("frag-1", text, "alpha beta gamma delta epsilon", 2, 5)
	if !res.Resolved() {
		t.Fatalf("anchor should resolve: %+v", res)
	}
	if got := len(strings.Fields(res.Quote)); got > 5 {
		t.Fatalf("quote exceeds word budget: %d words (%q)", got, res.Quote)
	}
	if text[*res.Start:*res.End] != res.Quote {
		t.Fatalf("clipped quote is not the exact substring of the offsets")
	}
}

func TestResolveAnchorTieBreaksByShorterSpan(t *testing.T) {
	text := "patience matters here truly. patience matters."
	res := ResolveAnchor("frag-1", text, "patience matters", 2, 30)
	if !res.Resolved() {
		t.Fatalf("anchor should resolve: %+v", res)
	}
	if res.Quote != "patience matters." {
		t.Fatalf("tie should break to the shorter span, got %q", res.Quote)
	}
}
