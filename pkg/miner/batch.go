package miner

import (
	"context"
	"fmt"
	"sync"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// EdgeWriter persists mined edges for one source document as a single batch:
// either every edge and span lands, or the whole batch is rolled back.
type EdgeWriter interface {
	UpsertMinedEdges(ctx context.Context, sourceDocumentID string, edges []*common.GraphEdge) error
}

// Runner mines relationship edges across a document's fragments in parallel.
// Mining itself is embarrassingly parallel; a single deterministic sort at the
// end makes the output independent of scheduling order.
type Runner struct {
	miner    *Miner
	store    EdgeWriter
	parallel int
}

// NewRunner creates a Runner. parallel bounds concurrent fragment mining;
// values below 1 fall back to 4.
func NewRunner(m *Miner, store EdgeWriter, parallel int) *Runner {
	if parallel < 1 {
		parallel = 4
	}
	return &Runner{miner: m, store: store, parallel: parallel}
}

// MineFragments mines every fragment concurrently and returns the merged,
// deterministically sorted edge set for the batch.
func (r *Runner) MineFragments(ctx context.Context, frags []*common.Fragment) ([]*common.GraphEdge, error) {
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.parallel)

	var mu sync.Mutex
	var all []*common.GraphEdge

	for _, frag := range frags {
		f := frag
		eg.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			edges, err := r.miner.MineFragment(f)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, edges...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return mergeEdges(all), nil
}

// MineDocument mines a document's fragments and persists the result as one
// transactional batch. A persistence integrity failure aborts the whole batch
// rather than silently dropping grounding.
func (r *Runner) MineDocument(ctx context.Context, sourceDocumentID string, frags []*common.Fragment) error {
	edges, err := r.MineFragments(ctx, frags)
	if err != nil {
		return fmt.Errorf("mine document %s: %w", sourceDocumentID, err)
	}

	logger.Info("[Miner] Mined document", "document", sourceDocumentID, "fragments", len(frags), "edges", len(edges))

	if len(edges) == 0 {
		return nil
	}
	if err := r.store.UpsertMinedEdges(ctx, sourceDocumentID, edges); err != nil {
		return fmt.Errorf("persist mined edges for %s: %w", sourceDocumentID, err)
	}
	return nil
}

// mergeEdges groups candidates from different fragments by natural key,
// merging and deduplicating their spans, and returns the sorted result.
// Groups left without spans are dropped; that is the hard gate.
func mergeEdges(edges []*common.GraphEdge) []*common.GraphEdge {
	SortEdges(edges)

	grouped := make(map[string]*candidate)
	order := make([]string, 0)
	for _, e := range edges {
		key := e.Key()
		c, ok := grouped[key]
		if !ok {
			c = &candidate{
				from:     e.From(),
				to:       e.To(),
				relation: e.Relation,
				seen:     make(map[common.JustificationSpan]struct{}),
			}
			grouped[key] = c
			order = append(order, key)
		}
		for _, sp := range e.Spans {
			c.addSpan(sp)
		}
	}

	merged := make([]*common.GraphEdge, 0, len(order))
	for _, key := range order {
		c := grouped[key]
		if len(c.spans) == 0 {
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
			continue
		}
		merged = append(merged, edge)
	}

	SortEdges(merged)
	return merged
}
