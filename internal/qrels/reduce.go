package qrels

import (
	"github.com/ricesearch/kgeval/internal/kg"
)

// PolicyScores holds one reduced grade per policy.
type PolicyScores struct {
	Max      Level
	Min      Level
	AvgFloor Level
	AvgCeil  Level
}

// Get returns the grade for p.
func (s PolicyScores) Get(p Policy) Level {
	switch p {
	case Max:
		return s.Max
	case Min:
		return s.Min
	case AvgFloor:
		return s.AvgFloor
	default:
		return s.AvgCeil
	}
}

// Resolve reduces the non-zero values of one matrix column. ok is false when
// every value is zero.
func Resolve(values []Level) (scores PolicyScores, ok bool) {
	var sum, n int
	for _, v := range values {
		if v == 0 {
			continue
		}
		if n == 0 || v > scores.Max {
			scores.Max = v
		}
		if n == 0 || v < scores.Min {
			scores.Min = v
		}
		sum += int(v)
		n++
	}
	if n == 0 {
		return PolicyScores{}, false
	}
	scores.AvgFloor = Level(sum / n)
	scores.AvgCeil = Level((sum + n - 1) / n)
	return scores, true
}

// Scored is one entity's reduced grade.
type Scored struct {
	Entity    kg.Entity
	Relevance Level
}

// Reduce resolves every column of m under each policy. Columns whose cells
// are all zero are omitted; output follows column order.
func Reduce(m *Matrix, policies []Policy) map[Policy][]Scored {
	out := make(map[Policy][]Scored, len(policies))
	for _, p := range policies {
		out[p] = make([]Scored, 0, len(m.Columns))
	}

	column := make([]Level, len(m.Cells))
	for c, e := range m.Columns {
		for r := range m.Cells {
			column[r] = m.Cells[r][c]
		}
		scores, ok := Resolve(column)
		if !ok {
			continue
		}
		for _, p := range policies {
			out[p] = append(out[p], Scored{Entity: e, Relevance: scores.Get(p)})
		}
	}
	return out
}
