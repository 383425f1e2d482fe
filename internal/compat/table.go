package compat

import (
	"github.com/ricesearch/kgeval/internal/kg"
)

// Kind names one of the four compatibility mappings.
type Kind uint8

const (
	DomDom Kind = iota // domain(r1) vs domain(r2)
	DomRan             // domain(r1) vs range(r2)
	RanDom             // range(r1) vs domain(r2)
	RanRan             // range(r1) vs range(r2)
)

// Kinds lists the mappings in their canonical order.
var Kinds = []Kind{DomDom, DomRan, RanDom, RanRan}

func (k Kind) String() string {
	switch k {
	case DomDom:
		return "dom_dom"
	case DomRan:
		return "dom_ran"
	case RanDom:
		return "ran_dom"
	default:
		return "ran_ran"
	}
}

// Sides returns the element types compared by k: (r1 side, r2 side).
func (k Kind) Sides() (kg.ElemType, kg.ElemType) {
	switch k {
	case DomDom:
		return kg.Domain, kg.Domain
	case DomRan:
		return kg.Domain, kg.Range
	case RanDom:
		return kg.Range, kg.Domain
	default:
		return kg.Range, kg.Range
	}
}

// Table holds, for every relation, the compatible relations of each kind in
// enumeration order. A relation is never compatible with itself.
type Table struct {
	Params Params
	Order  []kg.Relation
	lists  [4]map[kg.Relation][]kg.Relation
}

// NewTable creates an empty table for the given relation order.
func NewTable(p Params, order []kg.Relation) *Table {
	t := &Table{
		Params: p,
		Order:  append([]kg.Relation(nil), order...),
	}
	for i := range t.lists {
		t.lists[i] = make(map[kg.Relation][]kg.Relation, len(order))
	}
	return t
}

// List returns the relations compatible with r under k. Unknown relations
// yield nil.
func (t *Table) List(k Kind, r kg.Relation) []kg.Relation {
	return t.lists[k][r]
}

// Set replaces the list of r under k.
func (t *Table) Set(k Kind, r kg.Relation, rels []kg.Relation) {
	if rels == nil {
		rels = []kg.Relation{}
	}
	t.lists[k][r] = rels
}

// Has reports whether r has an entry in the table.
func (t *Table) Has(r kg.Relation) bool {
	_, ok := t.lists[DomDom][r]
	return ok
}

// Links returns the total number of compatible pairs across all kinds.
func (t *Table) Links() int {
	n := 0
	for _, m := range t.lists {
		for _, l := range m {
			n += len(l)
		}
	}
	return n
}
