package common

import (
	"fmt"
	"strings"
)

// JustificationSpan is a verified character range plus verbatim quote that
// grounds a claimed relationship. Quote is always the literal substring of the
// referenced fragment's text at [Start:End), trimmed of surrounding
// whitespace — never a paraphrase, never reconstructed from a normalized form.
type JustificationSpan struct {
	FragmentID string `json:"fragment_id"`
	Start      int    `json:"span_start"`
	End        int    `json:"span_end"`
	Quote      string `json:"quote"`
}

// Validate checks the span's internal consistency.
func (s JustificationSpan) Validate() error {
	if s.FragmentID == "" {
		return fmt.Errorf("justification span: fragment id must not be empty")
	}
	if s.Start < 0 || s.End <= s.Start {
		return fmt.Errorf("justification span on %s: invalid offsets [%d:%d)", s.FragmentID, s.Start, s.End)
	}
	if strings.TrimSpace(s.Quote) == "" {
		return fmt.Errorf("justification span on %s: quote must not be empty", s.FragmentID)
	}
	return nil
}

// VerifyAgainst checks that the span's offsets land inside the fragment text
// and that the quote is exactly the trimmed substring at those offsets.
func (s JustificationSpan) VerifyAgainst(text string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.End > len(text) {
		return fmt.Errorf("justification span on %s: end %d past text length %d", s.FragmentID, s.End, len(text))
	}
	if strings.TrimSpace(text[s.Start:s.End]) != s.Quote {
		return fmt.Errorf("justification span on %s: quote does not match text at [%d:%d)", s.FragmentID, s.Start, s.End)
	}
	return nil
}

// GraphEdge is a typed, directional relationship between two concrete domain
// entities. An edge with zero justification spans must never be constructed,
// persisted, or returned; NewGraphEdge is the only way to build one.
type GraphEdge struct {
	FromType EntityType          `json:"from_type"`
	FromID   string              `json:"from_id"`
	ToType   EntityType          `json:"to_type"`
	ToID     string              `json:"to_id"`
	Relation RelationType        `json:"relation_type"`
	Status   EdgeStatus          `json:"status"`
	Strength float64             `json:"strength"`
	Spans    []JustificationSpan `json:"justification_spans"`
}

// NewGraphEdge builds a GraphEdge, enforcing the grounding invariant and the
// closed type vocabularies at construction time.
func NewGraphEdge(
	fromType EntityType, fromID string,
	toType EntityType, toID string,
	relation RelationType,
	status EdgeStatus,
	spans []JustificationSpan,
) (*GraphEdge, error) {
	if !fromType.Concrete() || !toType.Concrete() {
		return nil, fmt.Errorf("edge %s/%s -> %s/%s: endpoints must be concrete entities", fromType, fromID, toType, toID)
	}
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("edge endpoints must have non-empty ids")
	}
	if fromType == toType && fromID == toID {
		return nil, fmt.Errorf("edge %s/%s: self loops are not allowed", fromType, fromID)
	}
	if _, err := ParseRelationType(string(relation)); err != nil {
		return nil, err
	}
	if status != StatusApproved && status != StatusPending {
		return nil, fmt.Errorf("edge %s/%s -> %s/%s: unknown status %q", fromType, fromID, toType, toID, status)
	}
	if len(spans) == 0 {
		return nil, fmt.Errorf("edge %s/%s -%s-> %s/%s: at least one justification span required", fromType, fromID, relation, toType, toID)
	}
	for _, sp := range spans {
		if err := sp.Validate(); err != nil {
			return nil, err
		}
	}
	return &GraphEdge{
		FromType: fromType,
		FromID:   fromID,
		ToType:   toType,
		ToID:     toID,
		Relation: relation,
		Status:   status,
		Spans:    spans,
	}, nil
}

// From returns the source endpoint as a NodeRef.
func (e *GraphEdge) From() NodeRef { return NodeRef{Type: e.FromType, ID: e.FromID} }

// To returns the target endpoint as a NodeRef.
func (e *GraphEdge) To() NodeRef { return NodeRef{Type: e.ToType, ID: e.ToID} }

// Key returns the natural identity of the edge, used for grouping and for
// idempotent upserts.
func (e *GraphEdge) Key() string {
	return fmt.Sprintf("%s/%s|%s/%s|%s", e.FromType, e.FromID, e.ToType, e.ToID, e.Relation)
}
