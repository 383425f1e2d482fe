package qrels

import (
	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// Policy collapses the non-zero relevance signals of one entity into a
// single grade.
type Policy string

const (
	Max      Policy = "max"
	Min      Policy = "min"
	AvgFloor Policy = "avg_floor"
	AvgCeil  Policy = "avg_ceil"
)

// Policies lists every policy in output order.
var Policies = []Policy{Max, Min, AvgFloor, AvgCeil}

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range Policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", errors.ConfigError("policy", s)
}

// ParsePolicies validates names and drops duplicates, keeping first
// occurrence order. An empty input selects every policy.
func ParsePolicies(names []string) ([]Policy, error) {
	if len(names) == 0 {
		return append([]Policy(nil), Policies...), nil
	}
	seen := make(map[Policy]bool, len(names))
	out := make([]Policy, 0, len(names))
	for _, n := range names {
		p, err := ParsePolicy(n)
		if err != nil {
			return nil, err
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}
