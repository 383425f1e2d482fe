package corrupt

import (
	"strings"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// Tier is a negative-sampling difficulty tier.
type Tier uint8

const (
	LCWA Tier = iota
	Sensical
	Nonsensical
	OneHopSensical
	OneHopNonsensical
)

// Tiers lists every tier.
var Tiers = []Tier{LCWA, Sensical, Nonsensical, OneHopSensical, OneHopNonsensical}

var tierNames = map[Tier]string{
	LCWA:              "LCWA",
	Sensical:          "sensical",
	Nonsensical:       "nonsensical",
	OneHopSensical:    "one-hop sensical",
	OneHopNonsensical: "one-hop nonsensical",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseTier accepts the tier names case-insensitively, with spaces,
// hyphens or underscores as separators.
func ParseTier(s string) (Tier, error) {
	norm := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	for t, name := range tierNames {
		if strings.ReplaceAll(strings.ToLower(name), " ", "-") == norm {
			return t, nil
		}
	}
	return 0, errors.ConfigError("tier", s)
}
