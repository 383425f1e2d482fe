package qrels

import (
	"fmt"

	"github.com/ricesearch/kgeval/internal/corrupt"
	"github.com/ricesearch/kgeval/internal/kg"
)

// Corrupter produces tiered candidates. *corrupt.Engine satisfies it.
type Corrupter interface {
	Corrupted(t kg.Triple, side kg.Side, tier corrupt.Tier) (kg.EntitySet, error)
}

// Matrix is the relevance matrix of one query. Rows follow ScoredTiers.
// Columns are the universe entities with at least one non-zero cell, in
// ascending order; every other universe column would be all zero.
type Matrix struct {
	Tiers   []corrupt.Tier
	Columns []kg.Entity
	Cells   [][]Level
}

// BuildMatrix fills cell(tier, e) with LevelOf(tier) when e is a tier
// candidate for (t, side).
func BuildMatrix(c Corrupter, t kg.Triple, side kg.Side) (*Matrix, error) {
	sets := make([]kg.EntitySet, len(ScoredTiers))
	var candidates kg.EntitySet
	for i, tier := range ScoredTiers {
		set, err := c.Corrupted(t, side, tier)
		if err != nil {
			return nil, fmt.Errorf("corrupting %v %s (%s): %w", t, side, tier, err)
		}
		sets[i] = set
		candidates.UnionWith(set)
	}

	m := &Matrix{
		Tiers:   ScoredTiers,
		Columns: candidates.Slice(),
		Cells:   make([][]Level, len(ScoredTiers)),
	}
	for i, tier := range ScoredTiers {
		level := LevelOf(tier)
		row := make([]Level, len(m.Columns))
		for col, e := range m.Columns {
			if sets[i].Contains(e) {
				row[col] = level
			}
		}
		m.Cells[i] = row
	}
	return m, nil
}
