package compat

import (
	"math"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// Method is a set similarity measure.
type Method string

const (
	Overlap Method = "overlap"
	Jaccard Method = "jaccard"
	Dice    Method = "dice"
	Cosine  Method = "cosine"
	Tversky Method = "tversky"
)

// Methods lists every supported method.
var Methods = []Method{Overlap, Jaccard, Dice, Cosine, Tversky}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", errors.ConfigError("method", s)
}

// Score computes the similarity of two sets of sizes a and b sharing inter
// members. Either set being empty scores 0. alpha and beta only apply to
// Tversky, which is asymmetric unless alpha == beta.
func (m Method) Score(inter, a, b int, alpha, beta float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	i := float64(inter)
	fa, fb := float64(a), float64(b)

	switch m {
	case Overlap:
		return i / math.Min(fa, fb)
	case Jaccard:
		return i / (fa + fb - i)
	case Dice:
		return 2 * i / (fa + fb)
	case Cosine:
		return i / math.Sqrt(fa*fb)
	case Tversky:
		denom := i + alpha*(fa-i) + beta*(fb-i)
		if denom == 0 {
			return 0
		}
		return i / denom
	}
	return 0
}
