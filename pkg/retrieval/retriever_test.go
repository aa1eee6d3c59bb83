package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/graph"
)

type fakeFragmentStore struct {
	byEntity map[common.NodeRef][]*common.Fragment
	err      error
}

func (s *fakeFragmentStore) FragmentsByEntity(_ context.Context, ref common.NodeRef) ([]*common.Fragment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byEntity[ref], nil
}

type fakeVector struct {
	frags []*common.Fragment
	err   error
}

func (v *fakeVector) TopK(_ context.Context, _ string, _ int) ([]*common.Fragment, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.frags, nil
}

type fakeExpander struct {
	hops  map[common.NodeRef][]graph.Hop
	roots []common.NodeRef
}

func (x *fakeExpander) Expand(_ context.Context, start common.NodeRef, _ int, _ []common.RelationType) ([]graph.Hop, error) {
	x.roots = append(x.roots, start)
	return x.hops[start], nil
}

func storedFrag(id string, owner common.NodeRef, refs ...string) *common.Fragment {
	return &common.Fragment{
		ID:               id,
		EntityType:       owner.Type,
		EntityID:         owner.ID,
		Kind:             common.KindEvidence,
		Text:             "text of " + id,
		SourceDocumentID: "doc-1",
		References:       refs,
	}
}

func node(id string) common.NodeRef {
	return common.NodeRef{Type: common.EntityVirtue, ID: id}
}

func TestRetrieveCombinesEntityAndGraphBackends(t *testing.T) {
	sabr, shukr := node("sabr"), node("shukr")
	store := &fakeFragmentStore{byEntity: map[common.NodeRef][]*common.Fragment{
		sabr:  {storedFrag("f1", sabr)},
		shukr: {storedFrag("f2", shukr)},
	}}
	expander := &fakeExpander{hops: map[common.NodeRef][]graph.Hop{
		sabr: {{Node: shukr, Depth: 1}},
	}}

	r := NewRetriever(Params{Fragments: store, Expander: expander, Config: DefaultConfig()})
	result := r.Retrieve(context.Background(), "الصبر", []common.ResolvedEntity{
		{Type: sabr.Type, ID: sabr.ID, Confidence: 1.0},
	}, 10, 2)

	if len(result.Fragments) != 2 {
		t.Fatalf("got %d fragments, want entity plus graph neighbor: %+v", len(result.Fragments), result.Ranked)
	}
	if !result.HasEvidence {
		t.Fatalf("evidence flag not set")
	}
	if len(result.BackendErrors) != 0 {
		t.Fatalf("unexpected backend errors: %+v", result.BackendErrors)
	}
}

func TestRetrieveFailOpenPerBackend(t *testing.T) {
	sabr := node("sabr")
	store := &fakeFragmentStore{byEntity: map[common.NodeRef][]*common.Fragment{
		sabr: {storedFrag("f1", sabr)},
	}}
	expander := &fakeExpander{}
	vector := &fakeVector{err: errors.New("vector store down")}

	r := NewRetriever(Params{Fragments: store, Vector: vector, Expander: expander, Config: DefaultConfig()})
	result := r.Retrieve(context.Background(), "الصبر", []common.ResolvedEntity{
		{Type: sabr.Type, ID: sabr.ID, Confidence: 1.0},
	}, 10, 1)

	if len(result.Fragments) != 1 {
		t.Fatalf("remaining backends must still serve, got %d fragments", len(result.Fragments))
	}
	var sawVector bool
	for _, be := range result.BackendErrors {
		if be.Backend == BackendVector {
			sawVector = true
		}
	}
	if !sawVector {
		t.Fatalf("vector failure must be recorded: %+v", result.BackendErrors)
	}
}

func TestRetrieveFailClosedAggregate(t *testing.T) {
	store := &fakeFragmentStore{byEntity: map[common.NodeRef][]*common.Fragment{}}
	expander := &fakeExpander{}

	r := NewRetriever(Params{Fragments: store, Expander: expander, Config: DefaultConfig()})
	result := r.Retrieve(context.Background(), "سؤال بلا شواهد", nil, 10, 1)

	if len(result.Fragments) != 0 {
		t.Fatalf("expected no fragments, got %d", len(result.Fragments))
	}
	if result.HasEvidence || result.HasDefinition {
		t.Fatalf("no-evidence result must not claim evidence")
	}
}

func TestRetrieveInfersEntitiesFromVectorHits(t *testing.T) {
	sabr, shukr := node("sabr"), node("shukr")
	store := &fakeFragmentStore{byEntity: map[common.NodeRef][]*common.Fragment{
		shukr: {storedFrag("f2", shukr)},
	}}
	vector := &fakeVector{frags: []*common.Fragment{storedFrag("f1", sabr)}}
	expander := &fakeExpander{hops: map[common.NodeRef][]graph.Hop{
		sabr: {{Node: shukr, Depth: 1}},
	}}

	r := NewRetriever(Params{Fragments: store, Vector: vector, Expander: expander, Config: DefaultConfig()})
	result := r.Retrieve(context.Background(), "query", nil, 10, 1)

	var expandedFromSabr bool
	for _, root := range expander.roots {
		if root == sabr {
			expandedFromSabr = true
		}
	}
	if !expandedFromSabr {
		t.Fatalf("graph expansion should root at the inferred entity, roots: %+v", expander.roots)
	}

	ids := map[string]bool{}
	for _, f := range result.Fragments {
		ids[f.ID] = true
	}
	if !ids["f1"] || !ids["f2"] {
		t.Fatalf("expected vector hit and inferred neighbor, got %v", ids)
	}
}

func TestRetrieveExpandsSharedReferences(t *testing.T) {
	sabr, shukr := node("sabr"), node("shukr")
	refNode := common.NodeRef{Type: common.EntityReference, ID: "quran:2:153"}
	store := &fakeFragmentStore{byEntity: map[common.NodeRef][]*common.Fragment{
		sabr:  {storedFrag("f1", sabr, "quran:2:153")},
		shukr: {storedFrag("f2", shukr)},
	}}
	expander := &fakeExpander{hops: map[common.NodeRef][]graph.Hop{
		refNode: {{Node: shukr, Depth: 1}},
	}}

	r := NewRetriever(Params{Fragments: store, Expander: expander, Config: DefaultConfig()})
	result := r.Retrieve(context.Background(), "الصبر", []common.ResolvedEntity{
		{Type: sabr.Type, ID: sabr.ID, Confidence: 1.0},
	}, 10, 1)

	var viaReference bool
	for _, rf := range result.Ranked {
		if rf.FragmentID == "f2" {
			for _, backend := range rf.Backends {
				if backend == BackendReference {
					viaReference = true
				}
			}
		}
	}
	if !viaReference {
		t.Fatalf("entity sharing a citation should surface via the reference backend: %+v", result.Ranked)
	}
}

type fakeResolver struct {
	entities []common.ResolvedEntity
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) ([]common.ResolvedEntity, error) {
	return r.entities, nil
}

func TestRetrieveUsesResolverWhenNoEntitiesGiven(t *testing.T) {
	sabr := node("sabr")
	store := &fakeFragmentStore{byEntity: map[common.NodeRef][]*common.Fragment{
		sabr: {storedFrag("f1", sabr)},
	}}
	expander := &fakeExpander{}
	resolver := &fakeResolver{entities: []common.ResolvedEntity{
		{Type: sabr.Type, ID: sabr.ID, Confidence: 0.9},
	}}

	r := NewRetriever(Params{Fragments: store, Expander: expander, Resolver: resolver, Config: DefaultConfig()})
	result := r.Retrieve(context.Background(), "ما فضل الصبر؟", nil, 10, 1)

	if len(result.Fragments) != 1 || result.Fragments[0].ID != "f1" {
		t.Fatalf("resolver-detected entity should drive retrieval: %+v", result.Ranked)
	}
}
