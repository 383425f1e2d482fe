package compat

import (
	"github.com/ricesearch/kgeval/internal/kg"
)

// Unified maps (relation, side) to the (relation', side') pairs whose entity
// sets are compatible with it.
type Unified map[kg.RelElem][]kg.RelElem

// Unify builds the unified view. The domain list of r is dom_dom(r) tagged
// domain followed by dom_ran(r) tagged range; the range list is ran_dom(r)
// tagged domain followed by ran_ran(r) tagged range.
func Unify(t *Table) Unified {
	u := make(Unified, 2*len(t.Order))
	for _, r := range t.Order {
		dom := make([]kg.RelElem, 0, len(t.List(DomDom, r))+len(t.List(DomRan, r)))
		dom = appendTagged(dom, t.List(DomDom, r), kg.Domain)
		dom = appendTagged(dom, t.List(DomRan, r), kg.Range)

		rng := make([]kg.RelElem, 0, len(t.List(RanDom, r))+len(t.List(RanRan, r)))
		rng = appendTagged(rng, t.List(RanDom, r), kg.Domain)
		rng = appendTagged(rng, t.List(RanRan, r), kg.Range)

		u[kg.RelElem{Relation: r, Elem: kg.Domain}] = dom
		u[kg.RelElem{Relation: r, Elem: kg.Range}] = rng
	}
	return u
}

func appendTagged(dst []kg.RelElem, rels []kg.Relation, e kg.ElemType) []kg.RelElem {
	for _, r := range rels {
		dst = append(dst, kg.RelElem{Relation: r, Elem: e})
	}
	return dst
}

// Get returns the list for (r, e); absent keys yield an empty list.
func (u Unified) Get(r kg.Relation, e kg.ElemType) []kg.RelElem {
	return u[kg.RelElem{Relation: r, Elem: e}]
}
