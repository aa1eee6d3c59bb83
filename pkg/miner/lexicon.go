package miner

import (
	"strings"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/textspan"
)

// Lexicon holds the relation-marker phrases the miner recognizes, keyed by
// relation type, plus the exception markers that split CONDITIONAL_ON
// sentences and the limitation markers that flag boundary sentences. All
// phrases are matched against folded text.
type Lexicon struct {
	markers     map[common.RelationType][]string
	conditional []string
	boundary    []string
}

// NewLexicon folds every marker phrase up front. CONDITIONAL_ON markers are
// passed separately because they carry split semantics: mentions before the
// marker are dependents, mentions after it are conditions.
func NewLexicon(
	markers map[common.RelationType][]string,
	conditional []string,
	boundary []string,
) *Lexicon {
	l := &Lexicon{markers: make(map[common.RelationType][]string)}
	for rel, phrases := range markers {
		l.markers[rel] = foldAll(phrases)
	}
	l.conditional = foldAll(conditional)
	l.boundary = foldAll(boundary)
	return l
}

func foldAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		folded := textspan.Fold(strings.TrimSpace(p))
		if folded != "" {
			out = append(out, folded)
		}
	}
	return out
}

// DefaultLexicon is the curated Arabic/English marker set used by the corpus
// miners. Markers are deliberately conservative: a missed edge is recoverable
// by curation, a fabricated one is not.
func DefaultLexicon() *Lexicon {
	return NewLexicon(
		map[common.RelationType][]string{
			common.RelationEnables: {
				"وسيلة", "تمكن", "يمكن من", "تؤدي الى", "يؤدي الى", "سبب في",
				"enables", "leads to", "makes possible", "is a means to",
			},
			common.RelationReinforces: {
				"يعزز", "تعزز", "يقوي", "تقوي", "يثبت", "يرسخ",
				"reinforces", "strengthens", "deepens",
			},
			common.RelationComplements: {
				"يكمل", "تكمل", "يتمم", "قرين", "جنبا الى جنب",
				"complements", "goes hand in hand",
			},
			common.RelationInhibits: {
				"يضعف", "تضعف", "يمنع", "تمنع", "ينافي", "يناقض", "يفسد",
				"inhibits", "weakens", "undermines", "nullifies",
			},
			common.RelationTensionWith: {
				"يتعارض", "تتعارض", "توتر بين", "تعارض بين",
				"in tension with", "conflicts with",
			},
			common.RelationResolvesWith: {
				"يوفق بين", "توفق بين", "يجمع بين", "يزيل التعارض",
				"resolves with", "reconciles",
			},
			common.RelationStructuralSibling: {
				"من اركان", "كلاهما من", "both belong to", "sibling practices",
			},
		},
		[]string{
			"الا اذا", "الا ب", "بشرط", "ما لم", "لا يصح الا", "لا يقبل الا",
			"only if", "unless", "on condition", "provided that",
		},
		[]string{
			"الا", "لكن", "غير ان", "بشرط", "يستثنى", "لا يشمل",
			"however", "except", "but not", "provided", "limitation",
		},
	)
}

// matched returns the relation types whose markers occur in the folded
// sentence, in the closed vocabulary's fixed order.
func (l *Lexicon) matched(folded string) []common.RelationType {
	var rels []common.RelationType
	for _, rel := range common.AllRelationTypes {
		if rel == common.RelationConditionalOn {
			if l.conditionalIndex(folded) >= 0 {
				rels = append(rels, rel)
			}
			continue
		}
		for _, marker := range l.markers[rel] {
			if strings.Contains(folded, marker) {
				rels = append(rels, rel)
				break
			}
		}
	}
	return rels
}

// conditionalIndex returns the byte index of the earliest exception marker in
// the folded sentence, or -1.
func (l *Lexicon) conditionalIndex(folded string) int {
	best := -1
	for _, marker := range l.conditional {
		if idx := strings.Index(folded, marker); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

// isBoundary reports whether the folded sentence carries a limitation or
// caveat marker.
func (l *Lexicon) isBoundary(folded string) bool {
	for _, marker := range l.boundary {
		if strings.Contains(folded, marker) {
			return true
		}
	}
	return false
}
