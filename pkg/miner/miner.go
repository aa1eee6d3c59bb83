package miner

import (
	"fmt"
	"sort"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/textspan"
)

const (
	// maxSpansPerEdge caps how many justification spans a single mined edge
	// carries after merging.
	maxSpansPerEdge = 6
	// maxBoundarySpans caps the supplementary limitation/caveat sentences
	// attached to each edge from the same fragment.
	maxBoundarySpans = 2
)

// Miner extracts typed relationship candidates from fragment text. It is a
// single conservative algorithm parameterized by a Vocabulary (which entities
// exist) and a Lexicon (which phrasings assert which relation). Every emitted
// edge is grounded in at least one justification span; candidates that would
// end up ungrounded are dropped, never patched.
type Miner struct {
	vocab         *Vocabulary
	lex           *Lexicon
	ownerFallback bool
}

// Option configures a Miner.
type Option func(*Miner)

// WithOwnerFallback enables the single-entity mode: when a sentence mentions
// exactly one entity and the fragment itself belongs to a different known
// entity, the owning entity is treated as mentioned first.
func WithOwnerFallback(enabled bool) Option {
	return func(m *Miner) { m.ownerFallback = enabled }
}

// New creates a Miner over the given vocabulary and lexicon.
func New(vocab *Vocabulary, lex *Lexicon, opts ...Option) *Miner {
	m := &Miner{vocab: vocab, lex: lex, ownerFallback: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type candidate struct {
	from     common.NodeRef
	to       common.NodeRef
	relation common.RelationType
	spans    []common.JustificationSpan
	seen     map[common.JustificationSpan]struct{}
}

func (c *candidate) addSpan(sp common.JustificationSpan) {
	key := common.JustificationSpan{FragmentID: sp.FragmentID, Start: sp.Start, End: sp.End}
	if _, dup := c.seen[key]; dup {
		return
	}
	if len(c.spans) >= maxSpansPerEdge {
		return
	}
	c.seen[key] = struct{}{}
	c.spans = append(c.spans, sp)
}

// MineFragment scans the fragment's text sentence by sentence and returns the
// grounded edge candidates, deterministically sorted. Repeated runs over
// unchanged text and vocabulary yield byte-identical output.
func (m *Miner) MineFragment(frag *common.Fragment) ([]*common.GraphEdge, error) {
	if frag == nil {
		return nil, fmt.Errorf("mine: nil fragment")
	}

	spans := textspan.Spans(frag.Text, textspan.DefaultMaxSpans)

	candidates := make(map[string]*candidate)
	order := make([]string, 0)

	emit := func(from, to common.NodeRef, rel common.RelationType, sp common.JustificationSpan) {
		if from == to {
			return
		}
		key := fmt.Sprintf("%s/%s|%s/%s|%s", from.Type, from.ID, to.Type, to.ID, rel)
		c, ok := candidates[key]
		if !ok {
			c = &candidate{from: from, to: to, relation: rel, seen: make(map[common.JustificationSpan]struct{})}
			candidates[key] = c
			order = append(order, key)
		}
		c.addSpan(sp)
	}

	var boundary []common.JustificationSpan
	for _, sp := range spans {
		raw := sp.Text(frag.Text)
		if len(boundary) < maxBoundarySpans && m.lex.isBoundary(textspan.Fold(raw)) {
			boundary = append(boundary, common.JustificationSpan{
				FragmentID: frag.ID,
				Start:      sp.Start,
				End:        sp.End,
				Quote:      raw,
			})
		}
	}

	for _, sp := range spans {
		raw := sp.Text(frag.Text)
		folded := textspan.Fold(raw)

		found := m.vocab.mentions(folded)
		if len(found) < 2 {
			owner := common.NodeRef{Type: frag.EntityType, ID: frag.EntityID}
			if !m.ownerFallback || len(found) != 1 || found[0].ref == owner || !m.vocab.Contains(owner) {
				continue
			}
			// the fragment's own entity anchors the sentence as the earliest mention
			found = append([]mention{{ref: owner, pos: -1}}, found...)
		}

		justification := common.JustificationSpan{
			FragmentID: frag.ID,
			Start:      sp.Start,
			End:        sp.End,
			Quote:      raw,
		}

		for _, rel := range m.lex.matched(folded) {
			switch {
			case rel == common.RelationConditionalOn:
				split := m.lex.conditionalIndex(folded)
				for _, dep := range found {
					if dep.pos >= split {
						continue
					}
					for _, cond := range found {
						if cond.pos <= split {
							continue
						}
						emit(dep.ref, cond.ref, rel, justification)
					}
				}
			case rel.Symmetric():
				for i := 0; i < len(found); i++ {
					for j := i + 1; j < len(found); j++ {
						emit(found[i].ref, found[j].ref, rel, justification)
						emit(found[j].ref, found[i].ref, rel, justification)
					}
				}
			default:
				// direction follows earliest mention order
				source := found[0]
				for _, other := range found[1:] {
					emit(source.ref, other.ref, rel, justification)
				}
			}
		}
	}

	edges := make([]*common.GraphEdge, 0, len(order))
	for _, key := range order {
		c := candidates[key]
		for _, b := range boundary {
			c.addSpan(b)
		}
		if len(c.spans) == 0 {
			// hard gate: no edge without grounding
			continue
		}
		edge, err := common.NewGraphEdge(
			c.from.Type, c.from.ID,
			c.to.Type, c.to.ID,
			c.relation,
			common.StatusPending,
			c.spans,
		)
		if err != nil {
			return nil, fmt.Errorf("mine fragment %s: %w", frag.ID, err)
		}
		edges = append(edges, edge)
	}

	SortEdges(edges)
	return edges, nil
}

// SortEdges orders edges deterministically so parallel mining runs over
// unchanged text produce byte-identical output.
func SortEdges(edges []*common.GraphEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.FromType != b.FromType {
			return a.FromType < b.FromType
		}
		if a.FromID != b.FromID {
			return a.FromID < b.FromID
		}
		if a.ToType != b.ToType {
			return a.ToType < b.ToType
		}
		if a.ToID != b.ToID {
			return a.ToID < b.ToID
		}
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.Spans[0].FragmentID != b.Spans[0].FragmentID {
			return a.Spans[0].FragmentID < b.Spans[0].FragmentID
		}
		return a.Spans[0].Start < b.Spans[0].Start
	})
}
