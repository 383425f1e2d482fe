package kg

import (
	"github.com/bits-and-blooms/bitset"
)

// EntitySet is a set of entities backed by a dense bitset. The zero value is
// an empty set ready to use. Sets returned by the set algebra methods never
// alias their operands.
type EntitySet struct {
	bits *bitset.BitSet
}

// NewEntitySet returns a set holding ids.
func NewEntitySet(ids ...Entity) EntitySet {
	var s EntitySet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts e. Negative ids are ignored.
func (s *EntitySet) Add(e Entity) {
	if e < 0 {
		return
	}
	if s.bits == nil {
		s.bits = bitset.New(uint(e) + 1)
	}
	s.bits.Set(uint(e))
}

// Contains reports whether e is in the set.
func (s EntitySet) Contains(e Entity) bool {
	if s.bits == nil || e < 0 {
		return false
	}
	return s.bits.Test(uint(e))
}

// Len returns the cardinality.
func (s EntitySet) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// IsEmpty reports whether the set has no members.
func (s EntitySet) IsEmpty() bool {
	return s.bits == nil || s.bits.None()
}

// Clone returns an independent copy.
func (s EntitySet) Clone() EntitySet {
	if s.bits == nil {
		return EntitySet{}
	}
	return EntitySet{bits: s.bits.Clone()}
}

// UnionWith adds every member of o to s in place.
func (s *EntitySet) UnionWith(o EntitySet) {
	if o.bits == nil {
		return
	}
	if s.bits == nil {
		s.bits = o.bits.Clone()
		return
	}
	s.bits.InPlaceUnion(o.bits)
}

// Union returns s ∪ o.
func (s EntitySet) Union(o EntitySet) EntitySet {
	out := s.Clone()
	out.UnionWith(o)
	return out
}

// Difference returns s \ o.
func (s EntitySet) Difference(o EntitySet) EntitySet {
	if s.bits == nil {
		return EntitySet{}
	}
	if o.bits == nil {
		return s.Clone()
	}
	return EntitySet{bits: s.bits.Difference(o.bits)}
}

// Intersect returns s ∩ o.
func (s EntitySet) Intersect(o EntitySet) EntitySet {
	if s.bits == nil || o.bits == nil {
		return EntitySet{}
	}
	return EntitySet{bits: s.bits.Intersection(o.bits)}
}

// IntersectionCount returns |s ∩ o| without materialising the intersection.
func (s EntitySet) IntersectionCount(o EntitySet) int {
	if s.bits == nil || o.bits == nil {
		return 0
	}
	return int(s.bits.IntersectionCardinality(o.bits))
}

// Equal reports whether both sets hold the same members.
func (s EntitySet) Equal(o EntitySet) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return s.IsEmpty() == o.IsEmpty()
	}
	return s.Len() == o.Len() && s.IntersectionCount(o) == s.Len()
}

// Slice returns the members in ascending order.
func (s EntitySet) Slice() []Entity {
	out := make([]Entity, 0, s.Len())
	if s.bits == nil {
		return out
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, Entity(i))
	}
	return out
}
