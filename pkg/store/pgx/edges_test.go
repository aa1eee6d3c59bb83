package pgx

import (
	"testing"

	"github.com/sanadlabs/sanad/pkg/common"
)

func TestEdgeStrength(t *testing.T) {
	cases := []struct {
		spans int
		want  float64
	}{
		{spans: 0, want: 0.5},
		{spans: 1, want: 0.5},
		{spans: 2, want: 0.58},
		{spans: 6, want: 0.9},
		{spans: 100, want: 0.95},
	}
	for _, c := range cases {
		got := EdgeStrength(c.spans)
		if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("EdgeStrength(%d) = %v, want %v", c.spans, got, c.want)
		}
	}
}

func TestEdgeStrengthIsMonotonic(t *testing.T) {
	prev := EdgeStrength(1)
	for n := 2; n <= 20; n++ {
		cur := EdgeStrength(n)
		if cur < prev {
			t.Fatalf("EdgeStrength(%d) = %v dropped below EdgeStrength(%d) = %v", n, cur, n-1, prev)
		}
		prev = cur
	}
}

func TestSpanFragmentIDs(t *testing.T) {
	span := func(fragID string) common.JustificationSpan {
		return common.JustificationSpan{FragmentID: fragID, Start: 0, End: 4, Quote: "text"}
	}
	edges := []*common.GraphEdge{
		{Spans: []common.JustificationSpan{span("frag-b"), span("frag-a")}},
		{Spans: []common.JustificationSpan{span("frag-a"), span("frag-c")}},
	}

	got := spanFragmentIDs(edges)
	want := []string{"frag-b", "frag-a", "frag-c"}
	if len(got) != len(want) {
		t.Fatalf("got %d ids, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("id[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
