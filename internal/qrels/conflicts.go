package qrels

import (
	"sort"

	"github.com/ricesearch/kgeval/internal/kg"
)

// Conflict is a (query, entity) pair judged more than once with different
// relevance grades.
type Conflict struct {
	QueryID    string
	Entity     kg.Entity
	Relevances []Level
}

// ConflictReport summarises repeated judgments in a qrel list.
type ConflictReport struct {
	Rows       int
	Pairs      int
	Duplicates int
	Conflicts  []Conflict
}

type pairKey struct {
	query  string
	entity kg.Entity
}

// Conflicts finds (query, entity) pairs with more than one row. Repeats with
// the same grade count as duplicates; differing grades are reported as
// conflicts in first-seen order with their grades sorted ascending.
func Conflicts(rows []Row) ConflictReport {
	seen := make(map[pairKey][]Level, len(rows))
	var order []pairKey
	for _, r := range rows {
		k := pairKey{r.QueryID, r.Entity}
		if _, ok := seen[k]; !ok {
			order = append(order, k)
		}
		seen[k] = append(seen[k], r.Relevance)
	}

	rep := ConflictReport{Rows: len(rows), Pairs: len(seen)}
	for _, k := range order {
		levels := seen[k]
		if len(levels) < 2 {
			continue
		}
		rep.Duplicates++
		if !allEqual(levels) {
			sorted := append([]Level(nil), levels...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			rep.Conflicts = append(rep.Conflicts, Conflict{QueryID: k.query, Entity: k.entity, Relevances: sorted})
		}
	}
	return rep
}

func allEqual(levels []Level) bool {
	for _, l := range levels[1:] {
		if l != levels[0] {
			return false
		}
	}
	return true
}
