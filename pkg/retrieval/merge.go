package retrieval

import (
	"sort"

	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/common"
)

// Backend names stamped on fragments during retrieval.
const (
	BackendEntity    = "entity"
	BackendGraph     = "graph"
	BackendVector    = "vector"
	BackendReference = "reference"
)

// Config holds the tunable merge and rerank policy. The exact agreement bonus
// and hop penalty are policy, not contract: more backends agreeing and
// shallower hops always rank higher, but the coefficients come from
// configuration.
type Config struct {
	AgreementBonus float64
	HopPenalty     float64
	MaxPackets     int
	RerankAlpha    float64
}

// DefaultConfig returns the built-in merge policy.
func DefaultConfig() Config {
	return Config{
		AgreementBonus: 0.10,
		HopPenalty:     0.15,
		MaxPackets:     25,
		RerankAlpha:    0.5,
	}
}

// ConfigFromEnv reads the merge policy from the environment, falling back to
// the defaults.
func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		AgreementBonus: util.GetEnvNumeric("MERGE_AGREEMENT_BONUS", def.AgreementBonus),
		HopPenalty:     util.GetEnvNumeric("MERGE_HOP_PENALTY", def.HopPenalty),
		MaxPackets:     int(util.GetEnvNumeric("MERGE_MAX_PACKETS", float64(def.MaxPackets))),
		RerankAlpha:    util.GetEnvNumeric("RERANK_ALPHA", def.RerankAlpha),
	}
}

// Result is the merged, ranked evidence set for one request.
type Result struct {
	Fragments     []*common.Fragment       `json:"fragments"`
	Ranked        []common.RankedFragment  `json:"ranked"`
	HasDefinition bool                     `json:"has_definition"`
	HasEvidence   bool                     `json:"has_evidence"`
	BackendErrors []BackendError           `json:"backend_errors,omitempty"`
}

// BackendError records a single backend's failure. Backend failures degrade
// the request instead of aborting it; recording them keeps the fail-open
// behavior visible and testable.
type BackendError struct {
	Backend string `json:"backend"`
	Message string `json:"message"`
}

type mergeEntry struct {
	fragment *common.Fragment
	score    float64
	hopDepth int
	backends map[string]struct{}
}

// Merge deduplicates backend result lists by fragment identity and computes
// the combined ranking. The first backend to contribute a fragment wins the
// canonical payload; the combined score takes the best backend score, adds an
// agreement bonus per additional backend, and subtracts a penalty per graph
// hop. The result is capped at cfg.MaxPackets.
func Merge(cfg Config, lists ...[]*common.Fragment) Result {
	if cfg.MaxPackets <= 0 {
		cfg.MaxPackets = DefaultConfig().MaxPackets
	}

	entries := make(map[string]*mergeEntry)
	order := make([]string, 0)

	for _, list := range lists {
		for _, frag := range list {
			if frag == nil || frag.ID == "" {
				continue
			}
			e, ok := entries[frag.ID]
			if !ok {
				canonical := *frag
				e = &mergeEntry{
					fragment: &canonical,
					score:    frag.BackendScore,
					hopDepth: frag.GraphHopDepth,
					backends: make(map[string]struct{}),
				}
				entries[frag.ID] = e
				order = append(order, frag.ID)
			}
			if frag.BackendScore > e.score {
				e.score = frag.BackendScore
			}
			if frag.GraphHopDepth < e.hopDepth {
				e.hopDepth = frag.GraphHopDepth
			}
			if frag.BackendName != "" {
				e.backends[frag.BackendName] = struct{}{}
			}
		}
	}

	ranked := make([]common.RankedFragment, 0, len(order))
	for _, id := range order {
		e := entries[id]
		combined := e.score - cfg.HopPenalty*float64(e.hopDepth)
		if n := len(e.backends); n > 1 {
			combined += cfg.AgreementBonus * float64(n-1)
		}
		ranked = append(ranked, common.RankedFragment{
			FragmentID:    id,
			CombinedScore: combined,
			Backends:      sortedKeys(e.backends),
			BackendName:   e.fragment.BackendName,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CombinedScore != ranked[j].CombinedScore {
			return ranked[i].CombinedScore > ranked[j].CombinedScore
		}
		return ranked[i].FragmentID < ranked[j].FragmentID
	})
	if len(ranked) > cfg.MaxPackets {
		ranked = ranked[:cfg.MaxPackets]
	}

	result := Result{Ranked: ranked}
	for _, r := range ranked {
		e := entries[r.FragmentID]
		e.fragment.BackendScore = r.CombinedScore
		e.fragment.GraphHopDepth = e.hopDepth
		result.Fragments = append(result.Fragments, e.fragment)
		switch e.fragment.Kind {
		case common.KindDefinition:
			result.HasDefinition = true
		case common.KindEvidence:
			result.HasEvidence = true
		}
	}
	return result
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
