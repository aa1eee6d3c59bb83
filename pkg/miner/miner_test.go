package miner

import (
	"context"
	"errors"
	"testing"

	"github.com/sanadlabs/sanad/pkg/common"
)

func testVocab(t *testing.T) *Vocabulary {
	t.Helper()
	vocab, err := NewVocabulary([]Entity{
		{Type: common.EntityVirtue, ID: "sabr", Name: "الصبر", Aliases: []string{"صبر"}},
		{Type: common.EntityPillar, ID: "iman", Name: "الإيمان", Aliases: []string{"ايمان"}},
		{Type: common.EntityVirtue, ID: "shukr", Name: "الشكر"},
	})
	if err != nil {
		t.Fatalf("NewVocabulary: %v", err)
	}
	return vocab
}

func testFragment(id, text string) *common.Fragment {
	return &common.Fragment{
		ID:               id,
		EntityType:       common.EntityVirtue,
		EntityID:         "sabr",
		Kind:             common.KindCommentary,
		Text:             text,
		SourceDocumentID: "doc-1",
	}
}

func TestMineFragmentDirectedEdge(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	frag := testFragment("frag-1", "الصبر يقوي الإيمان.")

	edges, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1: %+v", len(edges), edges)
	}

	e := edges[0]
	if e.FromID != "sabr" || e.ToID != "iman" {
		t.Fatalf("direction should follow mention order, got %s -> %s", e.FromID, e.ToID)
	}
	if e.Relation != common.RelationReinforces {
		t.Fatalf("relation = %s", e.Relation)
	}
	if e.Status != common.StatusPending {
		t.Fatalf("mined edges must start pending, got %s", e.Status)
	}
	if len(e.Spans) == 0 {
		t.Fatalf("edge has no justification spans")
	}
	for _, sp := range e.Spans {
		if err := sp.VerifyAgainst(frag.Text); err != nil {
			t.Fatalf("span does not verify: %v", err)
		}
	}
}

func TestMineFragmentMultipleRelationsOneSentence(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	frag := testFragment("frag-1", "الصبر وسيلة تقوي الإيمان.")

	edges, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2: %+v", len(edges), edges)
	}
	relations := map[common.RelationType]bool{}
	for _, e := range edges {
		if e.FromID != "sabr" || e.ToID != "iman" {
			t.Fatalf("unexpected edge %s -> %s", e.FromID, e.ToID)
		}
		relations[e.Relation] = true
	}
	if !relations[common.RelationEnables] || !relations[common.RelationReinforces] {
		t.Fatalf("expected ENABLES and REINFORCES, got %v", relations)
	}
}

func TestMineFragmentSymmetricDoubleEmission(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	frag := testFragment("frag-1", "الصبر قرين الشكر.")

	edges, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("symmetric relation should emit both directions, got %d edges", len(edges))
	}
	var forward, backward bool
	for _, e := range edges {
		if e.Relation != common.RelationComplements {
			t.Fatalf("relation = %s", e.Relation)
		}
		if e.FromID == "sabr" && e.ToID == "shukr" {
			forward = true
		}
		if e.FromID == "shukr" && e.ToID == "sabr" {
			backward = true
		}
	}
	if !forward || !backward {
		t.Fatalf("missing a direction: forward=%v backward=%v", forward, backward)
	}
}

func TestMineFragmentConditionalSplit(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	frag := testFragment("frag-1", "الصبر لا يصح الا بالإيمان.")

	edges, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	var conditional *common.GraphEdge
	for _, e := range edges {
		if e.Relation == common.RelationConditionalOn {
			conditional = e
		}
	}
	if conditional == nil {
		t.Fatalf("expected a CONDITIONAL_ON edge, got %+v", edges)
	}
	if conditional.FromID != "sabr" || conditional.ToID != "iman" {
		t.Fatalf("dependent must point at condition, got %s -> %s", conditional.FromID, conditional.ToID)
	}
}

func TestMineFragmentNoMarkerNoEdge(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	frag := testFragment("frag-1", "ذكر الصبر والشكر في مواضع كثيرة")

	edges, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("co-mention without a marker must not produce edges, got %+v", edges)
	}
}

func TestMineFragmentOwnerFallback(t *testing.T) {
	frag := testFragment("frag-1", "يقوي الإيمان عند الشدائد.")

	m := New(testVocab(t), DefaultLexicon())
	edges, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("owner fallback should anchor the sentence, got %d edges", len(edges))
	}
	if edges[0].FromID != "sabr" || edges[0].ToID != "iman" {
		t.Fatalf("owner must be the source, got %s -> %s", edges[0].FromID, edges[0].ToID)
	}

	m = New(testVocab(t), DefaultLexicon(), WithOwnerFallback(false))
	edges, err = m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("single mention without fallback must not produce edges, got %+v", edges)
	}
}

func TestMineFragmentDeterministic(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	frag := testFragment("frag-1", "الصبر يقوي الإيمان. الصبر قرين الشكر. الصبر وسيلة الى الإيمان.")

	first, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	second, err := m.MineFragment(frag)
	if err != nil {
		t.Fatalf("MineFragment: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("non-deterministic edge count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() {
			t.Fatalf("edge %d differs: %s vs %s", i, first[i].Key(), second[i].Key())
		}
		if len(first[i].Spans) != len(second[i].Spans) {
			t.Fatalf("edge %d span count differs", i)
		}
	}
}

type fakeEdgeWriter struct {
	edges []*common.GraphEdge
	err   error
	calls int
}

func (w *fakeEdgeWriter) UpsertMinedEdges(_ context.Context, _ string, edges []*common.GraphEdge) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.edges = edges
	return nil
}

func TestRunnerMergesDuplicateEdgesAcrossFragments(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	writer := &fakeEdgeWriter{}
	runner := NewRunner(m, writer, 2)

	frags := []*common.Fragment{
		testFragment("frag-1", "الصبر يقوي الإيمان."),
		testFragment("frag-2", "ثبت ان الصبر يقوي الإيمان عند البلاء."),
	}

	edges, err := runner.MineFragments(context.Background(), frags)
	if err != nil {
		t.Fatalf("MineFragments: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("same relation from two fragments must merge, got %d edges", len(edges))
	}
	if len(edges[0].Spans) != 2 {
		t.Fatalf("merged edge should keep both spans, got %d", len(edges[0].Spans))
	}
	seen := map[string]bool{}
	for _, sp := range edges[0].Spans {
		seen[sp.FragmentID] = true
	}
	if !seen["frag-1"] || !seen["frag-2"] {
		t.Fatalf("spans must come from both fragments: %+v", edges[0].Spans)
	}
}

func TestRunnerMineDocumentPersistsBatch(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	writer := &fakeEdgeWriter{}
	runner := NewRunner(m, writer, 1)

	frags := []*common.Fragment{testFragment("frag-1", "الصبر يقوي الإيمان.")}
	if err := runner.MineDocument(context.Background(), "doc-1", frags); err != nil {
		t.Fatalf("MineDocument: %v", err)
	}
	if writer.calls != 1 || len(writer.edges) != 1 {
		t.Fatalf("expected one batch with one edge, calls=%d edges=%d", writer.calls, len(writer.edges))
	}
}

func TestRunnerMineDocumentPropagatesWriteFailure(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	wantErr := errors.New("integrity violated")
	writer := &fakeEdgeWriter{err: wantErr}
	runner := NewRunner(m, writer, 1)

	frags := []*common.Fragment{testFragment("frag-1", "الصبر يقوي الإيمان.")}
	err := runner.MineDocument(context.Background(), "doc-1", frags)
	if !errors.Is(err, wantErr) {
		t.Fatalf("write failure must abort the batch, got %v", err)
	}
}

func TestRunnerMineDocumentSkipsEmptyBatch(t *testing.T) {
	m := New(testVocab(t), DefaultLexicon())
	writer := &fakeEdgeWriter{}
	runner := NewRunner(m, writer, 1)

	frags := []*common.Fragment{testFragment("frag-1", "نص بلا علاقات")}
	if err := runner.MineDocument(context.Background(), "doc-1", frags); err != nil {
		t.Fatalf("MineDocument: %v", err)
	}
	if writer.calls != 0 {
		t.Fatalf("empty edge set must not hit the store")
	}
}
