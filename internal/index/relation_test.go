package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ricesearch/kgeval/internal/kg"
)

func tr(h, r, t int) kg.Triple {
	return kg.Triple{Head: kg.Entity(h), Relation: kg.Relation(r), Tail: kg.Entity(t)}
}

func TestBuild(t *testing.T) {
	x := Build([]kg.Triple{
		tr(0, 5, 1),
		tr(2, 5, 1),
		tr(0, 3, 2),
		tr(0, 5, 3),
		tr(0, 5, 1), // duplicate
	})

	if diff := cmp.Diff([]kg.Relation{5, 3}, x.Relations()); diff != "" {
		t.Errorf("Relations() first-observed order mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name string
		got  kg.EntitySet
		want []kg.Entity
	}{
		{"domain 5", x.Domain(5), []kg.Entity{0, 2}},
		{"range 5", x.Range(5), []kg.Entity{1, 3}},
		{"heads 5,1", x.Heads(5, 1), []kg.Entity{0, 2}},
		{"tails 5,0", x.Tails(5, 0), []kg.Entity{1, 3}},
		{"elem range 3", x.Elem(3, kg.Range), []kg.Entity{2}},
		{"missing relation", x.Domain(9), []kg.Entity{}},
		{"missing key", x.Heads(5, 9), []kg.Entity{}},
		{"head entities", x.HeadEntities(), []kg.Entity{0, 2}},
		{"tail entities", x.TailEntities(), []kg.Entity{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got.Slice()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if got := x.TripleCount(5); got != 4 {
		t.Errorf("TripleCount(5) = %d, want 4", got)
	}
	if x.Len() != 5 || !x.Has(3) || x.Has(9) {
		t.Errorf("Len()=%d Has(3)=%v Has(9)=%v", x.Len(), x.Has(3), x.Has(9))
	}
}

func TestBuild_DomainIsUnionOfHeadDict(t *testing.T) {
	x := Build([]kg.Triple{tr(0, 0, 1), tr(2, 0, 3), tr(4, 0, 1), tr(1, 1, 0), tr(3, 1, 4)})

	for _, r := range x.Relations() {
		var heads, tails kg.EntitySet
		for _, t := range x.Range(r).Slice() {
			heads.UnionWith(x.Heads(r, t))
		}
		for _, h := range x.Domain(r).Slice() {
			tails.UnionWith(x.Tails(r, h))
		}
		if !heads.Equal(x.Domain(r)) {
			t.Errorf("relation %d: union of headDict %v != domain %v", r, heads.Slice(), x.Domain(r).Slice())
		}
		if !tails.Equal(x.Range(r)) {
			t.Errorf("relation %d: union of tailDict %v != range %v", r, tails.Slice(), x.Range(r).Slice())
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	x := Build(nil)
	if len(x.Relations()) != 0 || x.Len() != 0 {
		t.Errorf("empty index has relations %v", x.Relations())
	}
}

func TestNewUnion(t *testing.T) {
	main := Build([]kg.Triple{tr(0, 1, 1)})
	train := Build([]kg.Triple{tr(2, 1, 1), tr(0, 7, 3)})

	u := NewUnion([]kg.Entity{0, 1, 2, 3}, main, train, nil)

	if diff := cmp.Diff([]kg.Relation{1, 7}, u.Relations()); diff != "" {
		t.Errorf("Relations() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]kg.Entity{0, 2}, u.Heads(1, 1).Slice()); diff != "" {
		t.Errorf("Heads(1,1) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]kg.Entity{0, 2}, u.Domain(1).Slice()); diff != "" {
		t.Errorf("Domain(1) mismatch (-want +got):\n%s", diff)
	}
	if u.Universe().Len() != 4 {
		t.Errorf("Universe().Len() = %d, want 4", u.Universe().Len())
	}
	if u.Main() != main {
		t.Error("Main() should return the main split index")
	}

	// The union owns copies: the split indexes are untouched.
	if diff := cmp.Diff([]kg.Entity{0}, main.Domain(1).Slice()); diff != "" {
		t.Errorf("main split mutated by union (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]kg.Entity{0}, main.Heads(1, 1).Slice()); diff != "" {
		t.Errorf("main headDict mutated by union (-want +got):\n%s", diff)
	}
}
