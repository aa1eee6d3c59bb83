package retrieval

import (
	"context"
	"math"
	"testing"

	"github.com/sanadlabs/sanad/pkg/common"
)

func frag(id string, kind common.FragmentKind, backend string, score float64, hop int) *common.Fragment {
	return &common.Fragment{
		ID:               id,
		EntityType:       common.EntityVirtue,
		EntityID:         "sabr",
		Kind:             kind,
		Text:             "text of " + id,
		SourceDocumentID: "doc-1",
		BackendScore:     score,
		BackendName:      backend,
		GraphHopDepth:    hop,
	}
}

func TestMergeDeduplicatesByFragmentID(t *testing.T) {
	cfg := DefaultConfig()
	a := frag("f1", common.KindEvidence, BackendEntity, 1.0, 0)
	b := frag("f1", common.KindEvidence, BackendVector, 0.8, 0)

	result := Merge(cfg, []*common.Fragment{a}, []*common.Fragment{b})
	if len(result.Fragments) != 1 {
		t.Fatalf("got %d fragments, want 1", len(result.Fragments))
	}
	r := result.Ranked[0]
	if len(r.Backends) != 2 {
		t.Fatalf("both backends should be recorded, got %v", r.Backends)
	}
	want := 1.0 + cfg.AgreementBonus
	if math.Abs(r.CombinedScore-want) > 1e-9 {
		t.Fatalf("combined = %v, want best score plus agreement bonus %v", r.CombinedScore, want)
	}
	// first backend to contribute wins the canonical payload
	if result.Fragments[0].BackendName != BackendEntity {
		t.Fatalf("canonical backend = %q", result.Fragments[0].BackendName)
	}
}

func TestMergeAgreementOutranksSingleBackend(t *testing.T) {
	cfg := DefaultConfig()
	agreed1 := frag("f1", common.KindEvidence, BackendEntity, 0.9, 0)
	agreed2 := frag("f1", common.KindEvidence, BackendVector, 0.7, 0)
	lone := frag("f2", common.KindEvidence, BackendEntity, 0.9, 0)

	result := Merge(cfg, []*common.Fragment{agreed1, lone}, []*common.Fragment{agreed2})
	if result.Ranked[0].FragmentID != "f1" {
		t.Fatalf("agreed fragment should rank first, got %s", result.Ranked[0].FragmentID)
	}
}

func TestMergeHopPenalty(t *testing.T) {
	cfg := DefaultConfig()
	near := frag("f1", common.KindEvidence, BackendGraph, 0.9, 1)
	far := frag("f2", common.KindEvidence, BackendGraph, 0.9, 3)

	result := Merge(cfg, []*common.Fragment{far, near})
	if result.Ranked[0].FragmentID != "f1" {
		t.Fatalf("shallower hop should rank first, got %s", result.Ranked[0].FragmentID)
	}
	gap := result.Ranked[0].CombinedScore - result.Ranked[1].CombinedScore
	if math.Abs(gap-2*cfg.HopPenalty) > 1e-9 {
		t.Fatalf("score gap = %v, want two hop penalties %v", gap, 2*cfg.HopPenalty)
	}
}

func TestMergeKeepsMinimumHopDepth(t *testing.T) {
	cfg := DefaultConfig()
	deep := frag("f1", common.KindEvidence, BackendGraph, 0.9, 3)
	shallow := frag("f1", common.KindEvidence, BackendGraph, 0.9, 1)

	result := Merge(cfg, []*common.Fragment{deep}, []*common.Fragment{shallow})
	if result.Fragments[0].GraphHopDepth != 1 {
		t.Fatalf("hop depth = %d, want minimum 1", result.Fragments[0].GraphHopDepth)
	}
}

func TestMergeCapsAtMaxPackets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPackets = 2
	list := []*common.Fragment{
		frag("f1", common.KindEvidence, BackendEntity, 0.9, 0),
		frag("f2", common.KindEvidence, BackendEntity, 0.8, 0),
		frag("f3", common.KindEvidence, BackendEntity, 0.7, 0),
	}

	result := Merge(cfg, list)
	if len(result.Fragments) != 2 || len(result.Ranked) != 2 {
		t.Fatalf("got %d fragments, want cap 2", len(result.Fragments))
	}
	if result.Ranked[0].FragmentID != "f1" || result.Ranked[1].FragmentID != "f2" {
		t.Fatalf("cap must keep the strongest fragments: %+v", result.Ranked)
	}
}

func TestMergeContentFlags(t *testing.T) {
	cfg := DefaultConfig()

	result := Merge(cfg, []*common.Fragment{
		frag("f1", common.KindDefinition, BackendEntity, 0.9, 0),
		frag("f2", common.KindCommentary, BackendEntity, 0.8, 0),
	})
	if !result.HasDefinition {
		t.Fatalf("definition flag not set")
	}
	if result.HasEvidence {
		t.Fatalf("evidence flag set without evidence")
	}

	empty := Merge(cfg)
	if empty.HasDefinition || empty.HasEvidence {
		t.Fatalf("empty merge must set no flags")
	}
}

func TestMergeSkipsInvalidFragments(t *testing.T) {
	result := Merge(DefaultConfig(), []*common.Fragment{nil, {ID: ""}})
	if len(result.Fragments) != 0 {
		t.Fatalf("nil and id-less fragments must be dropped")
	}
}

type fixedReranker struct {
	scores map[string]float64
}

func (fixedReranker) Enabled() bool { return true }

func (r fixedReranker) Score(_ context.Context, _ string, fragmentText string) (float64, error) {
	return r.scores[fragmentText], nil
}

func TestApplyRerankBlendsScores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RerankAlpha = 0.5

	result := Merge(cfg, []*common.Fragment{
		frag("f1", common.KindEvidence, BackendEntity, 0.9, 0),
		frag("f2", common.KindEvidence, BackendEntity, 0.5, 0),
	})

	rr := fixedReranker{scores: map[string]float64{
		"text of f1": 0.0,
		"text of f2": 1.0,
	}}
	applyRerank(context.Background(), rr, cfg, "query", &result)

	// f2 blends to 0.75, f1 to 0.45
	if result.Ranked[0].FragmentID != "f2" {
		t.Fatalf("rerank should reorder, got %s first", result.Ranked[0].FragmentID)
	}
	if result.Fragments[0].ID != "f2" {
		t.Fatalf("fragments must follow the reranked order")
	}
	if math.Abs(result.Ranked[0].CombinedScore-0.75) > 1e-9 {
		t.Fatalf("blended score = %v, want 0.75", result.Ranked[0].CombinedScore)
	}
}

func TestApplyRerankDisabledLeavesOrder(t *testing.T) {
	cfg := DefaultConfig()
	result := Merge(cfg, []*common.Fragment{
		frag("f1", common.KindEvidence, BackendEntity, 0.9, 0),
		frag("f2", common.KindEvidence, BackendEntity, 0.5, 0),
	})

	applyRerank(context.Background(), NoopReranker{}, cfg, "query", &result)
	if result.Ranked[0].FragmentID != "f1" {
		t.Fatalf("disabled reranker must not reorder")
	}
}
