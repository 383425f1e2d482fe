package dataset

import (
	"fmt"
	"path/filepath"
)

// Split names.
const (
	Train = "train"
	Valid = "valid"
	Test  = "test"

	// OriginalTest is the unprefixed test2id.txt of a dataset whose test
	// split was reshuffled. Its triples still belong to the known graph.
	OriginalTest = "original_test"
)

// Paths locates the files of one dataset. Relations and Anomaly are optional.
type Paths struct {
	Train        string
	Valid        string
	Test         string
	OriginalTest string
	Entities     string
	Relations    string
	Anomaly      string
}

// PathsFromDir applies the conventional train2id.txt / entity2id.txt layout.
// prefix selects a reshuffled test split such as "3_test2id.txt"; train,
// valid and the original test split always come from the unprefixed files.
func PathsFromDir(dir, prefix string) Paths {
	return Paths{
		Train:        filepath.Join(dir, "train2id.txt"),
		Valid:        filepath.Join(dir, "valid2id.txt"),
		Test:         filepath.Join(dir, prefix+"test2id.txt"),
		OriginalTest: filepath.Join(dir, "test2id.txt"),
		Entities:     filepath.Join(dir, "entity2id.txt"),
		Relations:    filepath.Join(dir, "relation2id.txt"),
		Anomaly:      filepath.Join(dir, "relation2anomaly.txt"),
	}
}

// Split returns the path of the named split.
func (p Paths) Split(name string) (string, error) {
	switch name {
	case Train:
		return p.Train, nil
	case Valid:
		return p.Valid, nil
	case Test:
		return p.Test, nil
	case OriginalTest:
		return p.OriginalTest, nil
	}
	return "", fmt.Errorf("unknown split %q", name)
}

// Override returns p with every non-empty field of o applied on top.
func (p Paths) Override(o Paths) Paths {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Train, o.Train)
	set(&p.Valid, o.Valid)
	set(&p.Test, o.Test)
	set(&p.OriginalTest, o.OriginalTest)
	set(&p.Entities, o.Entities)
	set(&p.Relations, o.Relations)
	set(&p.Anomaly, o.Anomaly)
	return p
}
