package loader

import (
	"encoding/json"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/miner"
)

// DefaultMaxTokens is the per-fragment token budget when the manifest does not
// set one.
const DefaultMaxTokens = 384

// Manifest is the ingestion format for one source document: a set of entries,
// each already attributed to one entity of the closed vocabulary. The loader
// never invents attribution; text that cannot be attributed does not belong in
// a manifest.
type Manifest struct {
	ID        string       `json:"id" validate:"required"`
	Title     string       `json:"title"`
	MaxTokens int          `json:"max_tokens"`
	Entities  []VocabEntry `json:"entities"`
	Entries   []Entry      `json:"entries" validate:"required,dive"`
}

// VocabEntry declares one entity the document mentions, with the aliases
// relation mining and entity resolution should recognize it by.
type VocabEntry struct {
	EntityType string   `json:"entity_type" validate:"required"`
	EntityID   string   `json:"entity_id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Aliases    []string `json:"aliases"`
}

// Entry is one attributed block of source text. References listed here are
// merged with [[...]] citation markers found inline.
type Entry struct {
	EntityType string   `json:"entity_type" validate:"required"`
	EntityID   string   `json:"entity_id" validate:"required"`
	Kind       string   `json:"kind" validate:"required"`
	Text       string   `json:"text" validate:"required"`
	Anchor     string   `json:"anchor"`
	References []string `json:"references"`
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest: document id is required")
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("manifest %s: no entries", m.ID)
	}
	if m.MaxTokens <= 0 {
		m.MaxTokens = DefaultMaxTokens
	}
	return &m, nil
}

// VocabEntities converts the manifest's declared entities into the miner's
// vocabulary form, validating the closed type vocabulary.
func VocabEntities(m *Manifest) ([]miner.Entity, error) {
	out := make([]miner.Entity, 0, len(m.Entities))
	for i, e := range m.Entities {
		entityType, err := common.ParseEntityType(e.EntityType)
		if err != nil {
			return nil, fmt.Errorf("manifest %s entity %d: %w", m.ID, i, err)
		}
		if e.EntityID == "" || e.Name == "" {
			return nil, fmt.Errorf("manifest %s entity %d: id and name are required", m.ID, i)
		}
		out = append(out, miner.Entity{
			Type:    entityType,
			ID:      e.EntityID,
			Name:    e.Name,
			Aliases: e.Aliases,
		})
	}
	return out, nil
}

// Fragments converts a manifest into storable fragments. Entries over the
// token budget are split on sentence boundaries; every fragment's text is the
// exact string that offsets will later be resolved against, so the text is
// sanitized once here and never rewritten afterwards.
func Fragments(m *Manifest) ([]*common.Fragment, error) {
	var out []*common.Fragment
	for i, entry := range m.Entries {
		entityType, err := common.ParseEntityType(entry.EntityType)
		if err != nil {
			return nil, fmt.Errorf("manifest %s entry %d: %w", m.ID, i, err)
		}
		kind, err := common.ParseFragmentKind(entry.Kind)
		if err != nil {
			return nil, fmt.Errorf("manifest %s entry %d: %w", m.ID, i, err)
		}

		text := util.SanitizePostgresText(entry.Text)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("manifest %s entry %d: empty text", m.ID, i)
		}

		chunks, err := ChunkText(text, m.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("manifest %s entry %d: %w", m.ID, i, err)
		}

		anchor := entry.Anchor
		if anchor == "" {
			anchor = fmt.Sprintf("entry-%d", i)
		}

		for j, chunk := range chunks {
			id, err := gonanoid.New()
			if err != nil {
				return nil, fmt.Errorf("generate fragment id: %w", err)
			}

			refs := append([]string(nil), entry.References...)
			refs = append(refs, util.ExtractCitations(chunk)...)

			chunkAnchor := anchor
			if len(chunks) > 1 {
				chunkAnchor = fmt.Sprintf("%s#%d", anchor, j)
			}

			frag, err := common.NewFragment(
				id, entityType, entry.EntityID, kind,
				chunk, m.ID, chunkAnchor, dedupeRefs(refs),
			)
			if err != nil {
				return nil, fmt.Errorf("manifest %s entry %d: %w", m.ID, i, err)
			}
			out = append(out, frag)
		}
	}
	return out, nil
}

func dedupeRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	var out []string
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
