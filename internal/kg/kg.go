// Package kg defines the knowledge-graph vocabulary shared by the index,
// compatibility, corruption and relevance packages.
package kg

import (
	"fmt"
)

// Entity is a dense non-negative entity id.
type Entity int32

// Relation is a dense non-negative relation id.
type Relation int32

// Triple is an immutable (head, relation, tail) fact.
type Triple struct {
	Head     Entity
	Relation Relation
	Tail     Entity
}

// String renders the triple as "(h,r,t)".
func (t Triple) String() string {
	return fmt.Sprintf("(%d,%d,%d)", t.Head, t.Relation, t.Tail)
}

// Answer returns the entity occupying side.
func (t Triple) Answer(side Side) Entity {
	if side == Head {
		return t.Head
	}
	return t.Tail
}

// Side selects which end of a triple is corrupted or queried.
type Side uint8

const (
	Head Side = iota
	Tail
)

// Sides lists both sides in query emission order.
var Sides = []Side{Head, Tail}

func (s Side) String() string {
	if s == Head {
		return "head"
	}
	return "tail"
}

// Suffix is the short form used in query ids.
func (s Side) Suffix() string {
	if s == Head {
		return "h"
	}
	return "t"
}

// ElemType selects a relation's domain (head entities) or range (tail entities).
type ElemType uint8

const (
	Domain ElemType = iota
	Range
)

func (e ElemType) String() string {
	if e == Domain {
		return "domain"
	}
	return "range"
}

// ParseElemType is the inverse of ElemType.String.
func ParseElemType(s string) (ElemType, error) {
	switch s {
	case "domain":
		return Domain, nil
	case "range":
		return Range, nil
	}
	return 0, fmt.Errorf("unknown element type %q", s)
}

// RelElem is a (relation, side) reference used by the unified compatibility view.
type RelElem struct {
	Relation Relation
	Elem     ElemType
}

func (r RelElem) String() string {
	return fmt.Sprintf("%d:%s", r.Relation, r.Elem)
}
