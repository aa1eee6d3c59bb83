package common

import (
	"strings"
	"testing"
)

func validSpan() JustificationSpan {
	return JustificationSpan{
		FragmentID: "frag-1",
		Start:      0,
		End:        18,
		Quote:      "الصبر نصف الإيمان",
	}
}

func TestNewGraphEdgeRequiresSpans(t *testing.T) {
	_, err := NewGraphEdge(
		EntityVirtue, "sabr",
		EntityPillar, "iman",
		RelationEnables, StatusPending,
		nil,
	)
	if err == nil {
		t.Fatalf("edge without justification spans must be rejected")
	}
}

func TestNewGraphEdgeRejectsSelfLoop(t *testing.T) {
	_, err := NewGraphEdge(
		EntityVirtue, "sabr",
		EntityVirtue, "sabr",
		RelationEnables, StatusPending,
		[]JustificationSpan{validSpan()},
	)
	if err == nil {
		t.Fatalf("self loop must be rejected")
	}
}

func TestNewGraphEdgeRejectsReferenceEndpoint(t *testing.T) {
	_, err := NewGraphEdge(
		EntityReference, "quran:2:153",
		EntityPillar, "iman",
		RelationEnables, StatusPending,
		[]JustificationSpan{validSpan()},
	)
	if err == nil {
		t.Fatalf("reference nodes must not own edges")
	}
}

func TestNewGraphEdgeRejectsUnknownRelationAndStatus(t *testing.T) {
	spans := []JustificationSpan{validSpan()}
	if _, err := NewGraphEdge(EntityVirtue, "sabr", EntityPillar, "iman", "RELATED_TO", StatusPending, spans); err == nil {
		t.Fatalf("unknown relation must be rejected")
	}
	if _, err := NewGraphEdge(EntityVirtue, "sabr", EntityPillar, "iman", RelationEnables, "rejected", spans); err == nil {
		t.Fatalf("unknown status must be rejected")
	}
}

func TestJustificationSpanValidate(t *testing.T) {
	tests := []struct {
		name string
		span JustificationSpan
	}{
		{"empty fragment id", JustificationSpan{Start: 0, End: 5, Quote: "quote"}},
		{"negative start", JustificationSpan{FragmentID: "f", Start: -1, End: 5, Quote: "quote"}},
		{"end before start", JustificationSpan{FragmentID: "f", Start: 5, End: 5, Quote: "quote"}},
		{"blank quote", JustificationSpan{FragmentID: "f", Start: 0, End: 5, Quote: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.span.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestJustificationSpanVerifyAgainst(t *testing.T) {
	text := "الصبر نصف الإيمان. والشكر نصفه الآخر."
	quote := "والشكر نصفه الآخر."
	start := strings.Index(text, quote)
	sp := JustificationSpan{
		FragmentID: "frag-1",
		Start:      start,
		End:        start + len(quote),
		Quote:      quote,
	}
	if err := sp.VerifyAgainst(text); err != nil {
		t.Fatalf("exact span should verify: %v", err)
	}

	sp.Quote = "والشكر نصفه"
	if err := sp.VerifyAgainst(text); err == nil {
		t.Fatalf("quote differing from the substring must fail verification")
	}

	sp.Quote = quote
	sp.End = len(text) + 10
	if err := sp.VerifyAgainst(text); err == nil {
		t.Fatalf("offsets past the text must fail verification")
	}
}

func TestGraphEdgeKeyAndEndpoints(t *testing.T) {
	edge, err := NewGraphEdge(
		EntityVirtue, "sabr",
		EntityPillar, "iman",
		RelationReinforces, StatusApproved,
		[]JustificationSpan{validSpan()},
	)
	if err != nil {
		t.Fatalf("NewGraphEdge: %v", err)
	}
	if edge.Key() != "virtue/sabr|pillar/iman|REINFORCES" {
		t.Fatalf("key = %q", edge.Key())
	}
	if edge.From() != (NodeRef{Type: EntityVirtue, ID: "sabr"}) {
		t.Fatalf("from = %+v", edge.From())
	}
	if edge.To() != (NodeRef{Type: EntityPillar, ID: "iman"}) {
		t.Fatalf("to = %+v", edge.To())
	}
}
