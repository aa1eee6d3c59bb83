package textspan

import (
	"strings"
	"testing"
)

func TestSpansOffsetsAreExact(t *testing.T) {
	text := "الصبر نصف الإيمان. والشكر نصفه الآخر! هل من مزيد؟ نعم؛ دائما"
	spans := Spans(text, 0)
	if len(spans) != 5 {
		t.Fatalf("got %d spans, want 5: %v", len(spans), spans)
	}
	for i, sp := range spans {
		got := sp.Text(text)
		if strings.TrimSpace(got) != got {
			t.Fatalf("span %d not trimmed: %q", i, got)
		}
		if got == "" {
			t.Fatalf("span %d is empty", i)
		}
	}
	if spans[0].Text(text) != "الصبر نصف الإيمان." {
		t.Fatalf("first span = %q", spans[0].Text(text))
	}
	if spans[1].Text(text) != "والشكر نصفه الآخر!" {
		t.Fatalf("second span = %q", spans[1].Text(text))
	}
	if spans[4].Text(text) != "دائما" {
		t.Fatalf("trailing span = %q", spans[4].Text(text))
	}
}

func TestSpansDeterministic(t *testing.T) {
	text := "First sentence. Second sentence.\nThird line without terminator"
	a := Spans(text, 0)
	b := Spans(text, 0)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic span count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("span %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSpansNonOverlapping(t *testing.T) {
	text := "واحد. اثنان. ثلاثة. أربعة."
	spans := Spans(text, 0)
	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].End {
			t.Fatalf("span %d overlaps previous: %v after %v", i, spans[i], spans[i-1])
		}
	}
}

func TestSpansMaxSpansCap(t *testing.T) {
	text := strings.Repeat("كلمة. ", 50)
	spans := Spans(text, 10)
	if len(spans) != 10 {
		t.Fatalf("got %d spans, want cap 10", len(spans))
	}
}

func TestSpansWhitespaceOnlyInput(t *testing.T) {
	if spans := Spans("   \n\t  ", 0); len(spans) != 0 {
		t.Fatalf("got %d spans for whitespace input", len(spans))
	}
}
