package compat

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/ricesearch/kgeval/internal/kg"
)

// Summary describes the shape of a unified compatibility view.
type Summary struct {
	TotalKeys    int     `json:"total_keys"`
	NonEmptyKeys int     `json:"non_empty_keys"`
	TotalLinks   int     `json:"total_links"`
	MeanLinks    float64 `json:"mean_links"`
	MedianLinks  float64 `json:"median_links"`
	MaxLinks     int     `json:"max_links"`
}

// Summarize computes link statistics over the non-empty keys of u.
func Summarize(u Unified) Summary {
	s := Summary{TotalKeys: len(u)}
	var counts stats.Float64Data
	for _, links := range u {
		if len(links) == 0 {
			continue
		}
		s.NonEmptyKeys++
		s.TotalLinks += len(links)
		counts = append(counts, float64(len(links)))
	}
	if len(counts) == 0 {
		return s
	}
	// Errors are only returned for empty input.
	s.MeanLinks, _ = counts.Mean()
	s.MedianLinks, _ = counts.Median()
	maxLinks, _ := counts.Max()
	s.MaxLinks = int(maxLinks)
	return s
}

// Comparison contrasts two unified views built with different parameters.
type Comparison struct {
	TotalKeys      int          `json:"total_keys"`
	NonEmptyA      int          `json:"non_empty_a"`
	NonEmptyB      int          `json:"non_empty_b"`
	SharedNonEmpty int          `json:"shared_non_empty"`
	DiffLengthKeys int          `json:"diff_length_keys"`
	MeanLinksA     float64      `json:"mean_links_a"`
	MeanLinksB     float64      `json:"mean_links_b"`
	OnlyInA        int          `json:"only_in_a"`
	OnlyInB        int          `json:"only_in_b"`
	DifferingKeys  []kg.RelElem `json:"differing_keys,omitempty"`
}

// Identical reports whether both views hold the same links.
func (c Comparison) Identical() bool {
	return c.OnlyInA == 0 && c.OnlyInB == 0
}

// Compare reports key-level and link-level differences between a and b.
func Compare(a, b Unified) Comparison {
	keys := make(map[kg.RelElem]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	c := Comparison{TotalKeys: len(keys)}
	var linksA, linksB stats.Float64Data
	for k := range keys {
		la, lb := a[k], b[k]
		if len(la) > 0 {
			c.NonEmptyA++
			linksA = append(linksA, float64(len(la)))
		}
		if len(lb) > 0 {
			c.NonEmptyB++
			linksB = append(linksB, float64(len(lb)))
		}
		if len(la) > 0 && len(lb) > 0 {
			c.SharedNonEmpty++
		}
		if len(la) != len(lb) {
			c.DiffLengthKeys++
		}

		onlyA, onlyB := setDiff(la, lb), setDiff(lb, la)
		c.OnlyInA += onlyA
		c.OnlyInB += onlyB
		if onlyA > 0 || onlyB > 0 {
			c.DifferingKeys = append(c.DifferingKeys, k)
		}
	}
	c.MeanLinksA = mean(linksA)
	c.MeanLinksB = mean(linksB)

	sort.Slice(c.DifferingKeys, func(i, j int) bool {
		x, y := c.DifferingKeys[i], c.DifferingKeys[j]
		if x.Relation != y.Relation {
			return x.Relation < y.Relation
		}
		return x.Elem < y.Elem
	})
	return c
}

// mean is 0 for empty input rather than NaN.
func mean(d stats.Float64Data) float64 {
	if len(d) == 0 {
		return 0
	}
	m, _ := d.Mean()
	return m
}

// setDiff counts the members of a missing from b.
func setDiff(a, b []kg.RelElem) int {
	in := make(map[kg.RelElem]struct{}, len(b))
	for _, x := range b {
		in[x] = struct{}{}
	}
	n := 0
	for _, x := range a {
		if _, ok := in[x]; !ok {
			n++
		}
	}
	return n
}
