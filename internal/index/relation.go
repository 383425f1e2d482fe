// Package index builds per-split relation indexes and their unions.
//
// For every relation r a RelationIndex holds the domain (heads seen with r),
// the range (tails seen with r), headDict[r][t] (heads h with (h,r,t)) and
// tailDict[r][h] (tails t with (h,r,t)). Sets returned by accessors are owned
// by the index and must be cloned before mutation.
package index

import (
	"github.com/ricesearch/kgeval/internal/kg"
)

// RelationIndex is the per-split view of a triple list. Immutable once built.
type RelationIndex struct {
	order    []kg.Relation
	domain   map[kg.Relation]kg.EntitySet
	rng      map[kg.Relation]kg.EntitySet
	headDict map[kg.Relation]map[kg.Entity]kg.EntitySet
	tailDict map[kg.Relation]map[kg.Entity]kg.EntitySet
	counts   map[kg.Relation]int
	heads    kg.EntitySet
	tails    kg.EntitySet
	triples  []kg.Triple
}

func newRelationIndex() *RelationIndex {
	return &RelationIndex{
		domain:   make(map[kg.Relation]kg.EntitySet),
		rng:      make(map[kg.Relation]kg.EntitySet),
		headDict: make(map[kg.Relation]map[kg.Entity]kg.EntitySet),
		tailDict: make(map[kg.Relation]map[kg.Entity]kg.EntitySet),
		counts:   make(map[kg.Relation]int),
	}
}

// Build indexes triples in load order. Relations are enumerated in the order
// they are first observed; relations without triples are absent.
func Build(triples []kg.Triple) *RelationIndex {
	x := newRelationIndex()
	x.triples = append([]kg.Triple(nil), triples...)
	for _, t := range triples {
		x.add(t)
	}
	return x
}

func (x *RelationIndex) add(t kg.Triple) {
	r := t.Relation
	if _, seen := x.headDict[r]; !seen {
		x.order = append(x.order, r)
		x.headDict[r] = make(map[kg.Entity]kg.EntitySet)
		x.tailDict[r] = make(map[kg.Entity]kg.EntitySet)
	}

	heads := x.headDict[r][t.Tail]
	heads.Add(t.Head)
	x.headDict[r][t.Tail] = heads

	tails := x.tailDict[r][t.Head]
	tails.Add(t.Tail)
	x.tailDict[r][t.Head] = tails

	dom := x.domain[r]
	dom.Add(t.Head)
	x.domain[r] = dom

	rng := x.rng[r]
	rng.Add(t.Tail)
	x.rng[r] = rng

	x.heads.Add(t.Head)
	x.tails.Add(t.Tail)
	x.counts[r]++
}

// Relations returns the relations in enumeration order.
func (x *RelationIndex) Relations() []kg.Relation {
	return append([]kg.Relation(nil), x.order...)
}

// Has reports whether r occurs in the index.
func (x *RelationIndex) Has(r kg.Relation) bool {
	_, ok := x.headDict[r]
	return ok
}

// Domain returns the heads observed with r.
func (x *RelationIndex) Domain(r kg.Relation) kg.EntitySet {
	return x.domain[r]
}

// Range returns the tails observed with r.
func (x *RelationIndex) Range(r kg.Relation) kg.EntitySet {
	return x.rng[r]
}

// Elem returns Domain(r) or Range(r).
func (x *RelationIndex) Elem(r kg.Relation, e kg.ElemType) kg.EntitySet {
	if e == kg.Domain {
		return x.domain[r]
	}
	return x.rng[r]
}

// Heads returns headDict[r][tail].
func (x *RelationIndex) Heads(r kg.Relation, tail kg.Entity) kg.EntitySet {
	return x.headDict[r][tail]
}

// Tails returns tailDict[r][head].
func (x *RelationIndex) Tails(r kg.Relation, head kg.Entity) kg.EntitySet {
	return x.tailDict[r][head]
}

// TripleCount returns the number of triples (duplicates included) with r.
func (x *RelationIndex) TripleCount(r kg.Relation) int {
	return x.counts[r]
}

// HeadEntities returns every entity seen in head position.
func (x *RelationIndex) HeadEntities() kg.EntitySet {
	return x.heads
}

// TailEntities returns every entity seen in tail position.
func (x *RelationIndex) TailEntities() kg.EntitySet {
	return x.tails
}

// Triples returns the indexed triples in load order.
func (x *RelationIndex) Triples() []kg.Triple {
	return append([]kg.Triple(nil), x.triples...)
}

// Len returns the number of indexed triples.
func (x *RelationIndex) Len() int {
	return len(x.triples)
}

// mergeFrom unions every structure of o into x, copying sets so that x never
// aliases o.
func (x *RelationIndex) mergeFrom(o *RelationIndex) {
	for _, r := range o.order {
		if _, seen := x.headDict[r]; !seen {
			x.order = append(x.order, r)
			x.headDict[r] = make(map[kg.Entity]kg.EntitySet)
			x.tailDict[r] = make(map[kg.Entity]kg.EntitySet)
		}
		for t, heads := range o.headDict[r] {
			merged := x.headDict[r][t]
			merged.UnionWith(heads)
			x.headDict[r][t] = merged
		}
		for h, tails := range o.tailDict[r] {
			merged := x.tailDict[r][h]
			merged.UnionWith(tails)
			x.tailDict[r][h] = merged
		}

		dom := x.domain[r]
		dom.UnionWith(o.domain[r])
		x.domain[r] = dom

		rng := x.rng[r]
		rng.UnionWith(o.rng[r])
		x.rng[r] = rng

		x.counts[r] += o.counts[r]
	}
	x.heads.UnionWith(o.heads)
	x.tails.UnionWith(o.tails)
}
