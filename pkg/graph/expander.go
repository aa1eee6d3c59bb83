package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/sanadlabs/sanad/pkg/common"
)

// EdgeStore is the persisted view of the typed relationship graph the
// expander traverses. Implementations must only return neighbors reachable
// through approved edges whose relation type is in the allow-list.
type EdgeStore interface {
	// Neighbors returns the nodes adjacent to node through approved edges of
	// the allowed relation types, in either direction.
	Neighbors(ctx context.Context, node common.NodeRef, allowed []common.RelationType) ([]common.NodeRef, error)

	// EntitiesByReference returns the concrete entities whose fragments cite
	// the given external reference identifier.
	EntitiesByReference(ctx context.Context, referenceID string) ([]common.NodeRef, error)
}

// Hop is one discovered neighbor with the minimum depth it was found at.
type Hop struct {
	Node  common.NodeRef `json:"node"`
	Depth int            `json:"hop_depth"`
}

// Expander walks the typed relationship graph breadth-first up to a bounded
// depth. Each neighbor is reported once at its minimum discovered depth; the
// start node itself is never returned.
type Expander struct {
	store EdgeStore
}

// NewExpander creates an Expander over the given edge store.
func NewExpander(store EdgeStore) *Expander {
	return &Expander{store: store}
}

// Expand traverses from start up to depth hops, restricted to the allowed
// relation types. A start node of the synthetic reference type fans out to
// every entity citing that reference first, then continues as a normal entity
// traversal; this surfaces entities that share a citation but no direct edge.
func (x *Expander) Expand(
	ctx context.Context,
	start common.NodeRef,
	depth int,
	allowed []common.RelationType,
) ([]Hop, error) {
	if depth < 1 {
		return nil, nil
	}
	if len(allowed) == 0 {
		return nil, nil
	}
	for _, rel := range allowed {
		if _, err := common.ParseRelationType(string(rel)); err != nil {
			return nil, fmt.Errorf("expand %s/%s: %w", start.Type, start.ID, err)
		}
	}

	visited := map[common.NodeRef]struct{}{start: {}}
	var hops []Hop

	frontier := []common.NodeRef{start}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []common.NodeRef
		for _, node := range frontier {
			neighbors, err := x.neighborsOf(ctx, node, allowed)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if _, ok := visited[n]; ok {
					continue
				}
				visited[n] = struct{}{}
				hops = append(hops, Hop{Node: n, Depth: d})
				next = append(next, n)
			}
		}
		sortRefs(next)
		frontier = next
	}

	sort.SliceStable(hops, func(i, j int) bool {
		if hops[i].Depth != hops[j].Depth {
			return hops[i].Depth < hops[j].Depth
		}
		return lessRef(hops[i].Node, hops[j].Node)
	})
	return hops, nil
}

func (x *Expander) neighborsOf(
	ctx context.Context,
	node common.NodeRef,
	allowed []common.RelationType,
) ([]common.NodeRef, error) {
	if node.Type == common.EntityReference {
		refs, err := x.store.EntitiesByReference(ctx, node.ID)
		if err != nil {
			return nil, fmt.Errorf("entities by reference %s: %w", node.ID, err)
		}
		sortRefs(refs)
		return refs, nil
	}

	refs, err := x.store.Neighbors(ctx, node, allowed)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s/%s: %w", node.Type, node.ID, err)
	}
	sortRefs(refs)
	return refs, nil
}

func lessRef(a, b common.NodeRef) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.ID < b.ID
}

func sortRefs(refs []common.NodeRef) {
	sort.SliceStable(refs, func(i, j int) bool { return lessRef(refs[i], refs[j]) })
}
