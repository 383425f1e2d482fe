package index

import (
	"github.com/ricesearch/kgeval/internal/kg"
)

// Union is the element-wise union of a main split index and any number of
// secondary indexes, plus the entity universe. It owns deep copies of every
// set and is read-only once built, so it is safe for concurrent readers.
type Union struct {
	merged   *RelationIndex
	main     *RelationIndex
	universe kg.EntitySet
}

// NewUnion merges main and secondary. universe is the main split's entity
// list; it bounds every candidate produced from the union.
func NewUnion(universe []kg.Entity, main *RelationIndex, secondary ...*RelationIndex) *Union {
	merged := newRelationIndex()
	merged.mergeFrom(main)
	for _, s := range secondary {
		if s != nil {
			merged.mergeFrom(s)
		}
	}
	return &Union{
		merged:   merged,
		main:     main,
		universe: kg.NewEntitySet(universe...),
	}
}

// Universe returns the entity universe.
func (u *Union) Universe() kg.EntitySet { return u.universe }

// Relations returns the union's relations: the main split's order followed
// by relations first seen in secondary splits.
func (u *Union) Relations() []kg.Relation { return u.merged.Relations() }

// Domain returns the merged domain of r.
func (u *Union) Domain(r kg.Relation) kg.EntitySet { return u.merged.Domain(r) }

// Range returns the merged range of r.
func (u *Union) Range(r kg.Relation) kg.EntitySet { return u.merged.Range(r) }

// Elem returns the merged domain or range of r.
func (u *Union) Elem(r kg.Relation, e kg.ElemType) kg.EntitySet { return u.merged.Elem(r, e) }

// Heads returns the merged headDict[r][tail].
func (u *Union) Heads(r kg.Relation, tail kg.Entity) kg.EntitySet { return u.merged.Heads(r, tail) }

// Tails returns the merged tailDict[r][head].
func (u *Union) Tails(r kg.Relation, head kg.Entity) kg.EntitySet { return u.merged.Tails(r, head) }

// Main returns the main split index whose triples become queries.
func (u *Union) Main() *RelationIndex { return u.main }
