package miner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/textspan"
)

// Entity declares one domain entity the miner can recognize: its typed
// identity plus the keywords and aliases that mention it in text.
type Entity struct {
	Type    common.EntityType
	ID      string
	Name    string
	Aliases []string
}

type vocabEntry struct {
	ref     common.NodeRef
	aliases []string // folded, longest first
}

// Vocabulary is the set of recognizable entities with pre-folded aliases.
// Matching is case- and diacritic-insensitive via the textspan fold.
type Vocabulary struct {
	entries []vocabEntry
}

// NewVocabulary builds a Vocabulary, folding all aliases up front. The entity
// name itself always counts as an alias.
func NewVocabulary(entities []Entity) (*Vocabulary, error) {
	v := &Vocabulary{}
	for _, e := range entities {
		if !e.Type.Concrete() {
			return nil, fmt.Errorf("vocabulary entity %q: type %q is not a concrete entity type", e.ID, e.Type)
		}
		if e.ID == "" {
			return nil, fmt.Errorf("vocabulary entity with empty id")
		}
		aliases := make([]string, 0, len(e.Aliases)+1)
		for _, a := range append([]string{e.Name}, e.Aliases...) {
			folded := textspan.Fold(strings.TrimSpace(a))
			if folded == "" {
				continue
			}
			aliases = append(aliases, folded)
		}
		if len(aliases) == 0 {
			return nil, fmt.Errorf("vocabulary entity %q: no usable aliases", e.ID)
		}
		sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
		v.entries = append(v.entries, vocabEntry{
			ref:     common.NodeRef{Type: e.Type, ID: e.ID},
			aliases: aliases,
		})
	}
	// stable entity order keeps mining output deterministic
	sort.Slice(v.entries, func(i, j int) bool {
		if v.entries[i].ref.Type != v.entries[j].ref.Type {
			return v.entries[i].ref.Type < v.entries[j].ref.Type
		}
		return v.entries[i].ref.ID < v.entries[j].ref.ID
	})
	return v, nil
}

// Contains reports whether the vocabulary knows the given entity.
func (v *Vocabulary) Contains(ref common.NodeRef) bool {
	for _, e := range v.entries {
		if e.ref == ref {
			return true
		}
	}
	return false
}

// mention is one entity occurrence in a folded sentence, positioned by the
// byte index of its earliest alias match. Position is only used for ordering
// within the folded sentence, never as a raw-text offset.
type mention struct {
	ref common.NodeRef
	pos int
}

// mentions finds every vocabulary entity present in the folded sentence,
// ordered by earliest occurrence; ties break by entity identity.
func (v *Vocabulary) mentions(folded string) []mention {
	var found []mention
	for _, e := range v.entries {
		best := -1
		for _, alias := range e.aliases {
			if idx := strings.Index(folded, alias); idx >= 0 && (best < 0 || idx < best) {
				best = idx
			}
		}
		if best >= 0 {
			found = append(found, mention{ref: e.ref, pos: best})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].pos != found[j].pos {
			return found[i].pos < found[j].pos
		}
		if found[i].ref.Type != found[j].ref.Type {
			return found[i].ref.Type < found[j].ref.Type
		}
		return found[i].ref.ID < found[j].ref.ID
	})
	return found
}
