package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/graph"
	"github.com/sanadlabs/sanad/pkg/logger"
)

// Base scores stamped per backend before merging. The merge policy owns the
// agreement bonus and hop penalty; these only order backends relative to each
// other when a fragment arrives from a single source.
const (
	graphBaseScore     = 0.9
	referenceBaseScore = 0.7
	vectorFloorScore   = 0.5
)

// maxReferenceRoots bounds the citation identifiers used for the second,
// reference-rooted graph expansion.
const maxReferenceRoots = 8

// FragmentStore fetches fragments by owning entity from the relational store.
type FragmentStore interface {
	FragmentsByEntity(ctx context.Context, ref common.NodeRef) ([]*common.Fragment, error)
}

// VectorBackend returns the top-k nearest fragments for a query. It may be
// entirely absent; the retriever degrades to the remaining backends.
type VectorBackend interface {
	TopK(ctx context.Context, query string, k int) ([]*common.Fragment, error)
}

// GraphExpander walks the typed relationship graph from a node.
type GraphExpander interface {
	Expand(ctx context.Context, start common.NodeRef, depth int, allowed []common.RelationType) ([]graph.Hop, error)
}

// EntityResolver detects candidate entities in a query. Its ranking is
// untrusted input, not ground truth.
type EntityResolver interface {
	Resolve(ctx context.Context, query string) ([]common.ResolvedEntity, error)
}

// Retriever orchestrates evidence retrieval per request: entity resolution,
// concurrent backend fan-out, graph and reference expansion, merge, and the
// optional rerank pass. A single backend failing degrades the request
// (fail-open per backend); only an entirely empty merge surfaces as
// no-evidence (fail-closed aggregate), expressed through the result flags.
type Retriever struct {
	fragments FragmentStore
	vector    VectorBackend
	expander  GraphExpander
	resolver  EntityResolver
	reranker  Reranker
	cfg       Config
	allowed   []common.RelationType
	timeout   time.Duration
}

// Params wires the retriever's collaborators. Fragments and Expander are
// required; Vector and Resolver may be nil, Reranker defaults to the no-op.
type Params struct {
	Fragments FragmentStore
	Vector    VectorBackend
	Expander  GraphExpander
	Resolver  EntityResolver
	Reranker  Reranker
	Config    Config
	// AllowedRelations restricts graph expansion; empty means all types.
	AllowedRelations []common.RelationType
	// RequestTimeout bounds the whole retrieval fan-out. Zero disables it.
	RequestTimeout time.Duration
}

// NewRetriever builds a Retriever from explicitly injected dependencies.
func NewRetriever(p Params) *Retriever {
	r := &Retriever{
		fragments: p.Fragments,
		vector:    p.Vector,
		expander:  p.Expander,
		resolver:  p.Resolver,
		reranker:  p.Reranker,
		cfg:       p.Config,
		allowed:   p.AllowedRelations,
		timeout:   p.RequestTimeout,
	}
	if r.reranker == nil {
		r.reranker = NoopReranker{}
	}
	if len(r.allowed) == 0 {
		r.allowed = common.AllRelationTypes
	}
	if r.cfg.MaxPackets <= 0 {
		r.cfg = DefaultConfig()
	}
	return r
}

type partial struct {
	backend string
	frags   []*common.Fragment
	err     error
}

// Retrieve runs the full orchestration for one query and returns the ordered,
// deduplicated evidence set. resolved may be empty, in which case the
// configured resolver runs and, failing that, candidate entities are inferred
// from the top vector hits.
func (r *Retriever) Retrieve(
	ctx context.Context,
	query string,
	resolved []common.ResolvedEntity,
	topK int,
	graphDepth int,
) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if graphDepth < 1 {
		graphDepth = 1
	}
	if topK < 1 {
		topK = DefaultConfig().MaxPackets
	}

	var errs []BackendError
	if len(resolved) == 0 && r.resolver != nil {
		detected, err := r.resolver.Resolve(ctx, query)
		if err != nil {
			errs = append(errs, BackendError{Backend: "resolver", Message: err.Error()})
		} else {
			resolved = detected
		}
	}

	var mu sync.Mutex
	var partials []partial
	var wg sync.WaitGroup

	collect := func(p partial) {
		mu.Lock()
		defer mu.Unlock()
		partials = append(partials, p)
	}

	fetched := make(map[common.NodeRef]struct{})
	for _, e := range resolved {
		fetched[common.NodeRef{Type: e.Type, ID: e.ID}] = struct{}{}
	}

	for _, e := range resolved {
		entity := e
		ref := common.NodeRef{Type: entity.Type, ID: entity.ID}

		wg.Add(2)
		go func() {
			defer wg.Done()
			frags, err := r.fragments.FragmentsByEntity(ctx, ref)
			if err != nil {
				collect(partial{backend: BackendEntity, err: err})
				return
			}
			score := entity.Confidence
			if score <= 0 {
				score = 1.0
			}
			collect(partial{backend: BackendEntity, frags: stamp(frags, BackendEntity, score, 0)})
		}()
		go func() {
			defer wg.Done()
			frags, err := r.expandAndFetch(ctx, ref, graphDepth)
			if err != nil {
				collect(partial{backend: BackendGraph, err: err})
				return
			}
			collect(partial{backend: BackendGraph, frags: frags})
		}()
	}

	if r.vector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k := max(topK*2, 10)
			frags, err := r.vector.TopK(ctx, query, k)
			if err != nil {
				collect(partial{backend: BackendVector, err: err})
				return
			}
			collect(partial{backend: BackendVector, frags: stampVector(frags)})
		}()
	}

	wg.Wait()

	// no entities resolved: infer candidates from the strongest vector hits
	// and expand the graph from those instead
	if len(resolved) == 0 {
		for _, ref := range inferredEntities(partials, 3) {
			if _, ok := fetched[ref]; ok {
				continue
			}
			fetched[ref] = struct{}{}
			frags, err := r.expandAndFetch(ctx, ref, graphDepth)
			if err != nil {
				partials = append(partials, partial{backend: BackendGraph, err: err})
				continue
			}
			partials = append(partials, partial{backend: BackendGraph, frags: frags})
		}
	}

	// second expansion rooted at citation references shared by the fragments
	// retrieved so far, surfacing entities with no direct edge
	refFrags, refErrs := r.expandReferences(ctx, partials, fetched)
	if len(refFrags) > 0 {
		partials = append(partials, partial{backend: BackendReference, frags: refFrags})
	}
	errs = append(errs, refErrs...)

	lists := make([][]*common.Fragment, 0, len(partials))
	for _, p := range partials {
		if p.err != nil {
			logger.Warn("[Retrieval] Backend failed", "backend", p.backend, "err", p.err)
			errs = append(errs, BackendError{Backend: p.backend, Message: p.err.Error()})
			continue
		}
		lists = append(lists, p.frags)
	}

	cfg := r.cfg
	if topK < cfg.MaxPackets {
		cfg.MaxPackets = topK
	}
	result := Merge(cfg, lists...)
	result.BackendErrors = errs

	applyRerank(ctx, r.reranker, cfg, query, &result)

	if !result.HasEvidence && len(result.Fragments) == 0 {
		logger.Info("[Retrieval] No evidence found", "query_len", len(query), "entities", len(resolved))
	}
	return result
}

// expandAndFetch walks the graph from ref and fetches each neighbor's
// fragments at its hop depth.
func (r *Retriever) expandAndFetch(ctx context.Context, ref common.NodeRef, depth int) ([]*common.Fragment, error) {
	hops, err := r.expander.Expand(ctx, ref, depth, r.allowed)
	if err != nil {
		return nil, err
	}
	var out []*common.Fragment
	for _, hop := range hops {
		if !hop.Node.Type.Concrete() {
			continue
		}
		frags, err := r.fragments.FragmentsByEntity(ctx, hop.Node)
		if err != nil {
			return nil, err
		}
		out = append(out, stamp(frags, BackendGraph, graphBaseScore, hop.Depth)...)
	}
	return out, nil
}

// expandReferences collects citation identifiers from the fragments gathered
// so far and expands one hop from each reference node.
func (r *Retriever) expandReferences(
	ctx context.Context,
	partials []partial,
	fetched map[common.NodeRef]struct{},
) ([]*common.Fragment, []BackendError) {
	seen := make(map[string]struct{})
	var refs []string
	for _, p := range partials {
		for _, f := range p.frags {
			for _, citation := range f.References {
				if _, ok := seen[citation]; ok {
					continue
				}
				seen[citation] = struct{}{}
				refs = append(refs, citation)
			}
		}
	}
	if len(refs) > maxReferenceRoots {
		refs = refs[:maxReferenceRoots]
	}

	var out []*common.Fragment
	var errs []BackendError
	for _, citation := range refs {
		root := common.NodeRef{Type: common.EntityReference, ID: citation}
		hops, err := r.expander.Expand(ctx, root, 1, r.allowed)
		if err != nil {
			errs = append(errs, BackendError{Backend: BackendReference, Message: err.Error()})
			continue
		}
		for _, hop := range hops {
			if !hop.Node.Type.Concrete() {
				continue
			}
			if _, ok := fetched[hop.Node]; ok {
				continue
			}
			fetched[hop.Node] = struct{}{}
			frags, err := r.fragments.FragmentsByEntity(ctx, hop.Node)
			if err != nil {
				errs = append(errs, BackendError{Backend: BackendReference, Message: err.Error()})
				continue
			}
			out = append(out, stamp(frags, BackendReference, referenceBaseScore, hop.Depth)...)
		}
	}
	return out, errs
}

// inferredEntities returns the distinct owning entities of the strongest
// vector hits, used as expansion roots when entity resolution found nothing.
func inferredEntities(partials []partial, limit int) []common.NodeRef {
	var out []common.NodeRef
	seen := make(map[common.NodeRef]struct{})
	for _, p := range partials {
		if p.backend != BackendVector || p.err != nil {
			continue
		}
		for _, f := range p.frags {
			ref := common.NodeRef{Type: f.EntityType, ID: f.EntityID}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// stamp copies the fragments and writes the retrieval metadata for one
// backend. Stored fragments are never mutated.
func stamp(frags []*common.Fragment, backend string, score float64, hopDepth int) []*common.Fragment {
	out := make([]*common.Fragment, 0, len(frags))
	for _, f := range frags {
		c := *f
		c.BackendName = backend
		c.BackendScore = score
		c.GraphHopDepth = hopDepth
		out = append(out, &c)
	}
	return out
}

// stampVector keeps the store-provided similarity score, flooring fragments
// the backend returned without one.
func stampVector(frags []*common.Fragment) []*common.Fragment {
	out := make([]*common.Fragment, 0, len(frags))
	for _, f := range frags {
		c := *f
		c.BackendName = BackendVector
		if c.BackendScore <= 0 {
			c.BackendScore = vectorFloorScore
		}
		c.GraphHopDepth = 0
		out = append(out, &c)
	}
	return out
}
