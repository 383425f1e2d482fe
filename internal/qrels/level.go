// Package qrels turns graded corruptions into relevance judgments.
//
// For every (triple, side) query a relevance matrix is built with one row per
// scored tier and one column per candidate entity; each column is then
// reduced to a single relevance per policy. The true answer is always judged
// Positive first and is never overwritten by a computed value.
package qrels

import (
	"github.com/ricesearch/kgeval/internal/corrupt"
)

// Level is an ordinal relevance grade.
type Level uint8

// Relevance scale, ascending.
const (
	LevelLCWA              Level = 0
	LevelNonsensical       Level = 1
	LevelOneHopNonsensical Level = 2
	LevelOneHopSensical    Level = 3
	LevelSensical          Level = 4
	Positive               Level = 5
)

// ScoredTiers are the matrix rows. LCWA is excluded since it only ever
// contributes 0.
var ScoredTiers = []corrupt.Tier{
	corrupt.Nonsensical,
	corrupt.OneHopNonsensical,
	corrupt.OneHopSensical,
	corrupt.Sensical,
}

// LevelOf returns the relevance grade of a tier.
func LevelOf(t corrupt.Tier) Level {
	switch t {
	case corrupt.Nonsensical:
		return LevelNonsensical
	case corrupt.OneHopNonsensical:
		return LevelOneHopNonsensical
	case corrupt.OneHopSensical:
		return LevelOneHopSensical
	case corrupt.Sensical:
		return LevelSensical
	}
	return LevelLCWA
}

// Scale returns the relevance map recorded in run manifests.
func Scale() map[string]int {
	scale := map[string]int{"positive": int(Positive)}
	for _, t := range corrupt.Tiers {
		scale[t.String()] = int(LevelOf(t))
	}
	return scale
}
