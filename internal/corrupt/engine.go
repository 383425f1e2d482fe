// Package corrupt generates graded negative candidates for a query triple.
//
// For a triple (h, r, t) and a side, the candidates of a tier are its pool
// minus the known answers: tailDict[r][h] when corrupting the tail,
// headDict[r][t] when corrupting the head.
//
//	tier                 tail pool        head pool
//	LCWA                 universe         universe
//	sensical             range(r)         domain(r)
//	nonsensical          domain(r)        range(r)
//	one-hop sensical     reach(r, range)  reach(r, domain)
//	one-hop nonsensical  reach(r, domain) reach(r, range)
//
// reach(r, e) is the union of the domains or ranges of every (r', e') listed
// as compatible with (r, e). Every pool is bounded by the universe.
package corrupt

import (
	"fmt"

	"github.com/ricesearch/kgeval/internal/compat"
	"github.com/ricesearch/kgeval/internal/kg"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// Index is the read side of a union index.
type Index interface {
	Universe() kg.EntitySet
	Relations() []kg.Relation
	Elem(r kg.Relation, e kg.ElemType) kg.EntitySet
	Heads(r kg.Relation, tail kg.Entity) kg.EntitySet
	Tails(r kg.Relation, head kg.Entity) kg.EntitySet
}

// Engine answers corruption queries. All pools are precomputed, so an Engine
// is immutable and safe for concurrent use.
type Engine struct {
	idx      Index
	universe kg.EntitySet
	direct   map[kg.RelElem]kg.EntitySet
	reach    map[kg.RelElem]kg.EntitySet
}

// NewEngine precomputes the direct and one-hop pools of every relation in
// idx and every key of unified.
func NewEngine(idx Index, unified compat.Unified) *Engine {
	e := &Engine{
		idx:      idx,
		universe: idx.Universe(),
		direct:   make(map[kg.RelElem]kg.EntitySet),
		reach:    make(map[kg.RelElem]kg.EntitySet, len(unified)),
	}
	for _, r := range idx.Relations() {
		for _, el := range []kg.ElemType{kg.Domain, kg.Range} {
			e.direct[kg.RelElem{Relation: r, Elem: el}] = idx.Elem(r, el).Intersect(e.universe)
		}
	}
	for key, links := range unified {
		var pool kg.EntitySet
		for _, l := range links {
			pool.UnionWith(idx.Elem(l.Relation, l.Elem))
		}
		e.reach[key] = pool.Intersect(e.universe)
	}
	return e
}

// Universe returns the candidate universe.
func (e *Engine) Universe() kg.EntitySet {
	return e.universe
}

// Pool returns the candidate pool of tier for relation r on side. Missing
// relations yield an empty pool.
func (e *Engine) Pool(r kg.Relation, side kg.Side, tier Tier) (kg.EntitySet, error) {
	// The element type a sensical replacement is drawn from.
	same := kg.Range
	if side == kg.Head {
		same = kg.Domain
	}
	other := kg.Domain
	if same == kg.Domain {
		other = kg.Range
	}

	switch tier {
	case LCWA:
		return e.universe, nil
	case Sensical:
		return e.direct[kg.RelElem{Relation: r, Elem: same}], nil
	case Nonsensical:
		return e.direct[kg.RelElem{Relation: r, Elem: other}], nil
	case OneHopSensical:
		return e.reach[kg.RelElem{Relation: r, Elem: same}], nil
	case OneHopNonsensical:
		return e.reach[kg.RelElem{Relation: r, Elem: other}], nil
	}
	return kg.EntitySet{}, errors.ConfigError("tier", fmt.Sprint(uint8(tier)))
}

// Mask returns the known answers excluded from every pool for t on side.
func (e *Engine) Mask(t kg.Triple, side kg.Side) kg.EntitySet {
	if side == kg.Tail {
		return e.idx.Tails(t.Relation, t.Head)
	}
	return e.idx.Heads(t.Relation, t.Tail)
}

// Corrupted returns pool \ mask for t, side and tier. The result is a fresh
// set owned by the caller.
func (e *Engine) Corrupted(t kg.Triple, side kg.Side, tier Tier) (kg.EntitySet, error) {
	pool, err := e.Pool(t.Relation, side, tier)
	if err != nil {
		return kg.EntitySet{}, err
	}
	return pool.Difference(e.Mask(t, side)), nil
}
