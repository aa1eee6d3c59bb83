package common

import "fmt"

// EntityType is the closed vocabulary of domain entity kinds. Reference is a
// synthetic node type used only for graph traversal: it represents an external
// citation identifier shared by fragments and never owns fragments or edges.
type EntityType string

const (
	EntityPillar    EntityType = "pillar"
	EntityVirtue    EntityType = "virtue"
	EntityPractice  EntityType = "practice"
	EntityConcept   EntityType = "concept"
	EntityReference EntityType = "reference"
)

// ParseEntityType converts a raw string into an EntityType, rejecting anything
// outside the closed vocabulary.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityPillar, EntityVirtue, EntityPractice, EntityConcept, EntityReference:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Concrete reports whether the type names a real domain entity, as opposed to
// the synthetic reference node type.
func (t EntityType) Concrete() bool {
	return t != EntityReference && t != ""
}

// RelationType is the closed vocabulary of typed edge kinds.
type RelationType string

const (
	RelationEnables           RelationType = "ENABLES"
	RelationReinforces        RelationType = "REINFORCES"
	RelationComplements       RelationType = "COMPLEMENTS"
	RelationConditionalOn     RelationType = "CONDITIONAL_ON"
	RelationInhibits          RelationType = "INHIBITS"
	RelationTensionWith       RelationType = "TENSION_WITH"
	RelationResolvesWith      RelationType = "RESOLVES_WITH"
	RelationStructuralSibling RelationType = "STRUCTURAL_SIBLING"
)

// AllRelationTypes lists every valid relation type in a fixed order. Callers
// that want an unrestricted graph expansion pass this as the allow-list.
var AllRelationTypes = []RelationType{
	RelationEnables,
	RelationReinforces,
	RelationComplements,
	RelationConditionalOn,
	RelationInhibits,
	RelationTensionWith,
	RelationResolvesWith,
	RelationStructuralSibling,
}

// ParseRelationType converts a raw string into a RelationType, rejecting
// anything outside the closed vocabulary.
func ParseRelationType(s string) (RelationType, error) {
	for _, r := range AllRelationTypes {
		if RelationType(s) == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown relation type %q", s)
}

// Symmetric reports whether edges of this type are emitted in both directions.
func (r RelationType) Symmetric() bool {
	switch r {
	case RelationComplements, RelationTensionWith, RelationResolvesWith, RelationStructuralSibling:
		return true
	}
	return false
}

// FragmentKind is the closed vocabulary of fragment categories.
type FragmentKind string

const (
	KindDefinition FragmentKind = "definition"
	KindEvidence   FragmentKind = "evidence"
	KindCommentary FragmentKind = "commentary"
)

// ParseFragmentKind converts a raw string into a FragmentKind, rejecting
// anything outside the closed vocabulary.
func ParseFragmentKind(s string) (FragmentKind, error) {
	switch FragmentKind(s) {
	case KindDefinition, KindEvidence, KindCommentary:
		return FragmentKind(s), nil
	}
	return "", fmt.Errorf("unknown fragment kind %q", s)
}

// EdgeStatus marks whether an edge is eligible for traversal and citation.
type EdgeStatus string

const (
	StatusApproved EdgeStatus = "approved"
	StatusPending  EdgeStatus = "pending"
)
