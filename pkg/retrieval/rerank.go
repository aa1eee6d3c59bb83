package retrieval

import (
	"context"
	"sort"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/logger"
)

// Reranker is an optional scoring pass over the merged evidence set.
// Implementations score a query/fragment pair together instead of
// independently; the blended result replaces the merge ranking so downstream
// consumers always see a single consistent ordering.
type Reranker interface {
	Enabled() bool
	Score(ctx context.Context, query, fragmentText string) (float64, error)
}

// NoopReranker is the safe default: always disabled, always zero.
type NoopReranker struct{}

// Enabled reports false; the no-op never reorders anything.
func (NoopReranker) Enabled() bool { return false }

// Score returns zero.
func (NoopReranker) Score(context.Context, string, string) (float64, error) { return 0, nil }

// applyRerank blends the merge ranking with reranker scores using
// final = (1-alpha)*combined + alpha*rerank, then re-sorts fragments and
// rebuilds the ranked list in place. A failed score leaves that fragment's
// combined score untouched.
func applyRerank(ctx context.Context, rr Reranker, cfg Config, query string, result *Result) {
	if rr == nil || !rr.Enabled() || len(result.Fragments) == 0 {
		return
	}
	alpha := cfg.RerankAlpha
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	scores := make(map[string]float64, len(result.Ranked))
	for i, r := range result.Ranked {
		rerankScore, err := rr.Score(ctx, query, result.Fragments[i].Text)
		if err != nil {
			logger.Warn("[Retrieval] Rerank score failed", "fragment", r.FragmentID, "err", err)
			scores[r.FragmentID] = r.CombinedScore
			continue
		}
		scores[r.FragmentID] = (1-alpha)*r.CombinedScore + alpha*rerankScore
	}

	for i := range result.Ranked {
		result.Ranked[i].CombinedScore = scores[result.Ranked[i].FragmentID]
	}
	sort.SliceStable(result.Ranked, func(i, j int) bool {
		if result.Ranked[i].CombinedScore != result.Ranked[j].CombinedScore {
			return result.Ranked[i].CombinedScore > result.Ranked[j].CombinedScore
		}
		return result.Ranked[i].FragmentID < result.Ranked[j].FragmentID
	})

	byID := make(map[string]*common.Fragment, len(result.Fragments))
	for _, f := range result.Fragments {
		byID[f.ID] = f
	}
	fragments := make([]*common.Fragment, 0, len(result.Ranked))
	for _, r := range result.Ranked {
		f := byID[r.FragmentID]
		f.BackendScore = r.CombinedScore
		fragments = append(fragments, f)
	}
	result.Fragments = fragments
}
