package models

import (
	"errors"
	"fmt"
)

// EntityKind is the closed set of node labels in the knowledge graph.
type EntityKind string

const (
	KindArticle    EntityKind = "Article"
	KindAuthor     EntityKind = "Author"
	KindTopic      EntityKind = "Topic"
	KindTechnology EntityKind = "Technology"
	KindCompany    EntityKind = "Company"
	KindConcept    EntityKind = "Concept"
)

// EntityKinds lists every valid kind, in a stable order.
var EntityKinds = []EntityKind{
	KindArticle, KindAuthor, KindTopic, KindTechnology, KindCompany, KindConcept,
}

var (
	ErrInvalidEntityKind = errors.New("invalid entity kind")
	ErrInvalidRelation   = errors.New("invalid relationship")
)

// Valid reports whether k is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindArticle, KindAuthor, KindTopic, KindTechnology, KindCompany, KindConcept:
		return true
	}
	return false
}

// ParseEntityKind converts a label string into an EntityKind, rejecting
// anything outside the closed set.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityKind, s)
	}
	return k, nil
}

// RelationKind is the closed set of edge types in the knowledge graph.
type RelationKind string

const (
	RelWrittenBy   RelationKind = "WRITTEN_BY"
	RelAboutTopic  RelationKind = "ABOUT_TOPIC"
	RelMentions    RelationKind = "MENTIONS"
	RelRelatedTo   RelationKind = "RELATED_TO"
	RelUses        RelationKind = "USES"
	RelDevelopedBy RelationKind = "DEVELOPED_BY"
)

// relationRule constrains which (source, target) kinds an edge may connect.
type relationRule struct {
	From EntityKind
	To   []EntityKind
}

// relationRules is the full edge taxonomy. Edges outside this table are
// rejected before any store call.
var relationRules = map[RelationKind]relationRule{
	RelWrittenBy:   {From: KindArticle, To: []EntityKind{KindAuthor}},
	RelAboutTopic:  {From: KindArticle, To: []EntityKind{KindTopic}},
	RelMentions:    {From: KindArticle, To: []EntityKind{KindTechnology, KindCompany, KindConcept}},
	RelRelatedTo:   {From: KindTopic, To: []EntityKind{KindTopic}},
	RelUses:        {From: KindTechnology, To: []EntityKind{KindTechnology}},
	RelDevelopedBy: {From: KindTechnology, To: []EntityKind{KindCompany}},
}

// Valid reports whether r is one of the known relationship kinds.
func (r RelationKind) Valid() bool {
	_, ok := relationRules[r]
	return ok
}

// ValidateRelation checks that an edge of kind rel is allowed from a `from`
// node to a `to` node.
func ValidateRelation(from EntityKind, rel RelationKind, to EntityKind) error {
	if !from.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityKind, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityKind, to)
	}
	rule, ok := relationRules[rel]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRelation, rel)
	}
	if rule.From != from {
		return fmt.Errorf("%w: %s cannot originate from %s", ErrInvalidRelation, rel, from)
	}
	for _, allowed := range rule.To {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot target %s", ErrInvalidRelation, rel, to)
}
