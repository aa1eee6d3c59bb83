package common

import (
	"fmt"
	"strings"
)

// Fragment is the atomic retrieval unit: a citable segment of source text tied
// to one domain entity. Text, provenance, and references are immutable after
// ingestion; two fragments with the same ID are always byte-identical. The
// retrieval metadata fields (BackendScore, BackendName, GraphHopDepth) are the
// only mutable part and are written exclusively during merge.
type Fragment struct {
	ID               string       `json:"id"`
	EntityType       EntityType   `json:"entity_type"`
	EntityID         string       `json:"entity_id"`
	Kind             FragmentKind `json:"kind"`
	Text             string       `json:"text"`
	SourceDocumentID string       `json:"source_document_id"`
	SourceAnchor     string       `json:"source_anchor"`
	References       []string     `json:"references,omitempty"`

	BackendScore  float64 `json:"backend_score,omitempty"`
	BackendName   string  `json:"backend_name,omitempty"`
	GraphHopDepth int     `json:"graph_hop_depth,omitempty"`
}

// NewFragment builds a Fragment and enforces the model invariants at
// construction time rather than by convention.
func NewFragment(
	id string,
	entityType EntityType,
	entityID string,
	kind FragmentKind,
	text string,
	sourceDocumentID string,
	sourceAnchor string,
	references []string,
) (*Fragment, error) {
	if id == "" {
		return nil, fmt.Errorf("fragment id must not be empty")
	}
	if !entityType.Concrete() {
		return nil, fmt.Errorf("fragment %s: entity type %q is not a concrete entity type", id, entityType)
	}
	if entityID == "" {
		return nil, fmt.Errorf("fragment %s: entity id must not be empty", id)
	}
	if _, err := ParseFragmentKind(string(kind)); err != nil {
		return nil, fmt.Errorf("fragment %s: %w", id, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("fragment %s: text must not be empty", id)
	}
	if sourceDocumentID == "" {
		return nil, fmt.Errorf("fragment %s: source document id must not be empty", id)
	}
	return &Fragment{
		ID:               id,
		EntityType:       entityType,
		EntityID:         entityID,
		Kind:             kind,
		Text:             text,
		SourceDocumentID: sourceDocumentID,
		SourceAnchor:     sourceAnchor,
		References:       references,
	}, nil
}

// RankedFragment is the post-merge view of a fragment: exactly one per
// distinct fragment ID, with the blended score and the set of backends that
// contributed it.
type RankedFragment struct {
	FragmentID    string   `json:"fragment_id"`
	CombinedScore float64  `json:"combined_score"`
	Backends      []string `json:"backends"`
	BackendName   string   `json:"backend_name"`
}

// NodeRef identifies a node in the typed relationship graph: either a concrete
// domain entity or a synthetic reference node keyed by a citation identifier.
type NodeRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// ResolvedEntity is one candidate produced by an entity resolver for a query.
// The retriever treats the ranking as untrusted input, not ground truth.
type ResolvedEntity struct {
	Type        EntityType `json:"type"`
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Confidence  float64    `json:"confidence"`
}

// Resolution statuses and methods for span resolution results.
const (
	ResolutionResolved   = "resolved"
	ResolutionUnresolved = "unresolved"

	MethodRawSubstring          = "raw_substring"
	MethodQuoteNotFound         = "quote_not_found"
	MethodSentenceOverlap       = "sentence_overlap"
	MethodOverlapBelowThreshold = "sentence_overlap_below_threshold"
)

// SpanResolution is the typed result of resolving a quote or anchor against a
// fragment's text. Start and End are both present (resolved) or both absent
// (unresolved); offsets are never guessed. An unresolved result may still
// carry a bounded preview quote for display.
type SpanResolution struct {
	FragmentID string  `json:"fragment_id"`
	Quote      string  `json:"quote,omitempty"`
	Start      *int    `json:"span_start,omitempty"`
	End        *int    `json:"span_end,omitempty"`
	Status     string  `json:"status"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// Resolved reports whether the resolution carries verified offsets.
func (r SpanResolution) Resolved() bool {
	return r.Status == ResolutionResolved && r.Start != nil && r.End != nil
}
