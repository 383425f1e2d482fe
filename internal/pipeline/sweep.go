package pipeline

import (
	"context"
	"fmt"

	"github.com/ricesearch/kgeval/internal/compat"
	"github.com/ricesearch/kgeval/internal/dataset"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// DefaultSweepThresholds are the thresholds compared when none are given.
var DefaultSweepThresholds = []float64{0.75, 0.8, 0.9}

// Variant is one (method, threshold) point of a sweep.
type Variant struct {
	Params  compat.Params
	Key     string
	Cached  bool
	Summary compat.Summary
	Unified compat.Unified `json:"-"`
}

// Label names the variant in reports, e.g. "jaccard@0.8".
func (v Variant) Label() string {
	return fmt.Sprintf("%s@%g", v.Params.Method, v.Params.Threshold)
}

// Pair compares two variants of a sweep.
type Pair struct {
	A, B       string
	Comparison compat.Comparison
}

// SweepResult holds every variant in method-major order and the comparison
// of every unordered pair.
type SweepResult struct {
	Variants []Variant
	Pairs    []Pair
}

// Sweep computes the compatibility table for every method and threshold
// combination, reusing the configured alpha, beta and workers, and compares
// the unified views pairwise.
func (p *Pipeline) Sweep(ctx context.Context, ds *dataset.Dataset, methods []compat.Method, thresholds []float64) (*SweepResult, error) {
	if len(methods) == 0 {
		return nil, errors.ConfigError("methods", "")
	}
	if len(thresholds) == 0 {
		thresholds = DefaultSweepThresholds
	}
	base, err := p.Params()
	if err != nil {
		return nil, err
	}

	res := &SweepResult{}
	for _, m := range methods {
		for _, th := range thresholds {
			params := base
			params.Method = m
			params.Threshold = th
			if err := params.Validate(); err != nil {
				return nil, err
			}

			cr, err := p.Compat(ctx, ds, params)
			if err != nil {
				return nil, fmt.Errorf("computing %s@%g: %w", m, th, err)
			}
			u := compat.Unify(cr.Table)
			res.Variants = append(res.Variants, Variant{
				Params:  params,
				Key:     cr.Key,
				Cached:  cr.Cached,
				Summary: compat.Summarize(u),
				Unified: u,
			})
		}
	}

	for i := range res.Variants {
		for j := i + 1; j < len(res.Variants); j++ {
			a, b := res.Variants[i], res.Variants[j]
			res.Pairs = append(res.Pairs, Pair{
				A:          a.Label(),
				B:          b.Label(),
				Comparison: compat.Compare(a.Unified, b.Unified),
			})
		}
	}
	return res, nil
}
