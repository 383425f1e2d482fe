// Package compat discovers compatible relations by measuring how much the
// entities occupying their head and tail positions overlap.
package compat

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/kgeval/internal/kg"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// Params configures a compatibility computation. A pair is compatible only
// when its score is strictly greater than Threshold. Any finite threshold is
// accepted: below zero every pair is linked, at one or above none is.
type Params struct {
	Method    Method  `json:"method"`
	Threshold float64 `json:"threshold"`
	Alpha     float64 `json:"alpha"`
	Beta      float64 `json:"beta"`
	Workers   int     `json:"-"`
}

// DefaultParams returns the defaults used by the command line.
func DefaultParams() Params {
	return Params{
		Method:    Overlap,
		Threshold: 0.75,
		Alpha:     0.5,
		Beta:      0.5,
		Workers:   4,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if _, err := ParseMethod(string(p.Method)); err != nil {
		return err
	}
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return errors.ConfigError("threshold", fmt.Sprint(p.Threshold))
	}
	if p.Alpha < 0 {
		return errors.ConfigError("alpha", fmt.Sprint(p.Alpha))
	}
	if p.Beta < 0 {
		return errors.ConfigError("beta", fmt.Sprint(p.Beta))
	}
	return nil
}

// Source is the read side of a relation index.
type Source interface {
	Relations() []kg.Relation
	Domain(r kg.Relation) kg.EntitySet
	Range(r kg.Relation) kg.EntitySet
}

// Compute scores every ordered pair of distinct relations in src. Rows are
// computed in parallel and assembled in enumeration order, so the result is
// independent of Workers. Every relation gets an entry in all four mappings.
func Compute(ctx context.Context, src Source, p Params) (*Table, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	order := src.Relations()
	sets := make([][2]kg.EntitySet, len(order))
	sizes := make([][2]int, len(order))
	for i, r := range order {
		sets[i] = [2]kg.EntitySet{src.Domain(r), src.Range(r)}
		sizes[i] = [2]int{sets[i][kg.Domain].Len(), sets[i][kg.Range].Len()}
	}

	rows := make([][4][]kg.Relation, len(order))

	g, ctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := range order {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, k := range Kinds {
				rows[i][k] = []kg.Relation{}
			}
			for j, r2 := range order {
				if i == j {
					continue
				}
				for _, k := range Kinds {
					s1, s2 := k.Sides()
					inter := sets[i][s1].IntersectionCount(sets[j][s2])
					score := p.Method.Score(inter, sizes[i][s1], sizes[j][s2], p.Alpha, p.Beta)
					if score > p.Threshold {
						rows[i][k] = append(rows[i][k], r2)
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing compatibility: %w", err)
	}

	table := NewTable(p, order)
	for i, r := range order {
		for _, k := range Kinds {
			table.Set(k, r, rows[i][k])
		}
	}
	return table, nil
}
