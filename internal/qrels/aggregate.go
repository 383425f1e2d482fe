package qrels

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ricesearch/kgeval/internal/kg"
)

// Row is one relevance judgment.
type Row struct {
	QueryID   string
	Entity    kg.Entity
	Relevance Level
}

// QueryID names the query asking for side of t: "(h,r,t)-h" or "(h,r,t)-t".
func QueryID(t kg.Triple, side kg.Side) string {
	return t.String() + "-" + side.Suffix()
}

// ParseQueryID is the inverse of QueryID.
func ParseQueryID(id string) (kg.Triple, kg.Side, error) {
	var side kg.Side
	switch {
	case strings.HasSuffix(id, ")-h"):
		side = kg.Head
	case strings.HasSuffix(id, ")-t"):
		side = kg.Tail
	default:
		return kg.Triple{}, 0, fmt.Errorf("query id %q: missing side suffix", id)
	}

	body := strings.TrimSuffix(id[:len(id)-2], ")")
	if !strings.HasPrefix(body, "(") {
		return kg.Triple{}, 0, fmt.Errorf("query id %q: missing opening parenthesis", id)
	}
	parts := strings.Split(body[1:], ",")
	if len(parts) != 3 {
		return kg.Triple{}, 0, fmt.Errorf("query id %q: want 3 components, got %d", id, len(parts))
	}

	var ids [3]int32
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return kg.Triple{}, 0, fmt.Errorf("query id %q: %w", id, err)
		}
		ids[i] = int32(v)
	}
	return kg.Triple{Head: kg.Entity(ids[0]), Relation: kg.Relation(ids[1]), Tail: kg.Entity(ids[2])}, side, nil
}

// Aggregate judges both queries of t, head first. For each query the true
// answer is emitted with Positive relevance before any computed row, under
// every policy.
func Aggregate(c Corrupter, t kg.Triple, policies []Policy) (map[Policy][]Row, error) {
	out := make(map[Policy][]Row, len(policies))
	for _, side := range kg.Sides {
		qid := QueryID(t, side)
		answer := t.Answer(side)
		for _, p := range policies {
			out[p] = append(out[p], Row{QueryID: qid, Entity: answer, Relevance: Positive})
		}

		m, err := BuildMatrix(c, t, side)
		if err != nil {
			return nil, err
		}
		for p, scored := range Reduce(m, policies) {
			for _, s := range scored {
				if s.Entity == answer {
					continue
				}
				out[p] = append(out[p], Row{QueryID: qid, Entity: s.Entity, Relevance: s.Relevance})
			}
		}
	}
	return out, nil
}
