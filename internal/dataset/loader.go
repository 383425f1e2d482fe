// Package dataset reads knowledge-graph benchmark files: split files of
// "head tail relation" triples, entity/relation id files and the optional
// per-relation anomaly scores.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/kg"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/hash"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

const maxLineBytes = 1 << 20

// Entry is one "name id" line of an id file.
type Entry struct {
	Name string
	ID   int32
}

// Dataset is a loaded benchmark.
type Dataset struct {
	Name      string
	Paths     Paths
	Splits    map[string][]kg.Triple
	Entities  []kg.Entity
	Relations []Entry
	Anomaly   map[kg.Relation]float64
}

// Universe returns the entity set every candidate is drawn from.
func (d *Dataset) Universe() kg.EntitySet {
	return kg.NewEntitySet(d.Entities...)
}

// AnomalyOf returns the anomaly score of r, 0 when unlisted.
func (d *Dataset) AnomalyOf(r kg.Relation) float64 {
	return d.Anomaly[r]
}

// Loader reads dataset files from a filesystem.
type Loader struct {
	fs  afero.Fs
	log *logger.Logger
}

// NewLoader creates a loader. A nil fs reads the OS filesystem.
func NewLoader(fs afero.Fs, log *logger.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Loader{fs: fs, log: log}
}

// Load reads the named splits plus the id and anomaly files. When
// paths.Entities is empty the universe falls back to every entity observed
// in the loaded splits.
func (l *Loader) Load(name string, paths Paths, splits ...string) (*Dataset, error) {
	log := l.log.WithDataset(name)
	ds := &Dataset{
		Name:   name,
		Paths:  paths,
		Splits: make(map[string][]kg.Triple, len(splits)),
	}

	for _, split := range splits {
		if _, done := ds.Splits[split]; done {
			continue
		}
		path, err := paths.Split(split)
		if err != nil {
			return nil, errors.ConfigError("split", split)
		}
		triples, err := l.LoadTriples(path)
		if err != nil {
			return nil, err
		}
		ds.Splits[split] = triples
		log.WithSplit(split).Info("Loaded split",
			"path", path,
			"triples", humanize.Comma(int64(len(triples))),
		)
	}

	if paths.Entities != "" {
		entities, err := l.LoadEntities(paths.Entities)
		if err != nil {
			return nil, err
		}
		ds.Entities = entities
	} else {
		ds.Entities = observedEntities(ds.Splits, splits)
		log.Warn("No entity file configured, universe taken from loaded splits",
			"entities", len(ds.Entities))
	}

	if paths.Relations != "" {
		ok, err := afero.Exists(l.fs, paths.Relations)
		if err != nil {
			return nil, errors.LoadError(paths.Relations, err)
		}
		if ok {
			if ds.Relations, err = l.LoadIDFile(paths.Relations); err != nil {
				return nil, err
			}
		}
	}

	anomaly, err := l.LoadAnomaly(paths.Anomaly)
	if err != nil {
		return nil, err
	}
	ds.Anomaly = anomaly

	log.Info("Dataset loaded",
		"entities", humanize.Comma(int64(len(ds.Entities))),
		"relations", len(ds.Relations),
		"anomaly_scores", len(ds.Anomaly),
	)
	return ds, nil
}

// LoadTriples reads a split file. The first line (triple count) and any other
// line without exactly three fields are skipped; fields are ordered
// head, tail, relation.
func (l *Loader) LoadTriples(path string) ([]kg.Triple, error) {
	var (
		triples []kg.Triple
		skipped int
	)
	err := l.scan(path, func(lineNo int, fields []string) error {
		if len(fields) != 3 {
			skipped++
			return nil
		}
		h, err := parseID(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: head: %w", lineNo, err)
		}
		t, err := parseID(fields[1])
		if err != nil {
			return fmt.Errorf("line %d: tail: %w", lineNo, err)
		}
		r, err := parseID(fields[2])
		if err != nil {
			return fmt.Errorf("line %d: relation: %w", lineNo, err)
		}
		triples = append(triples, kg.Triple{Head: kg.Entity(h), Relation: kg.Relation(r), Tail: kg.Entity(t)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		l.log.Debug("Skipped malformed lines", "path", path, "count", skipped)
	}
	return triples, nil
}

// LoadIDFile reads an entity2id/relation2id style file. The first line is the
// count; the id is the last field and the name is everything before it.
func (l *Loader) LoadIDFile(path string) ([]Entry, error) {
	var entries []Entry
	err := l.scan(path, func(lineNo int, fields []string) error {
		if lineNo == 1 || len(fields) < 2 {
			return nil
		}
		id, err := parseID(fields[len(fields)-1])
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, Entry{
			Name: strings.Join(fields[:len(fields)-1], " "),
			ID:   id,
		})
		return nil
	})
	return entries, err
}

// LoadEntities returns the entity ids of an entity id file in file order.
func (l *Loader) LoadEntities(path string) ([]kg.Entity, error) {
	entries, err := l.LoadIDFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]kg.Entity, len(entries))
	for i, e := range entries {
		out[i] = kg.Entity(e.ID)
	}
	return out, nil
}

// LoadAnomaly reads "relation score" lines. A missing or unset file yields an
// empty map, so every relation scores 0.
func (l *Loader) LoadAnomaly(path string) (map[kg.Relation]float64, error) {
	scores := make(map[kg.Relation]float64)
	if path == "" {
		return scores, nil
	}
	if ok, err := afero.Exists(l.fs, path); err != nil {
		return nil, errors.LoadError(path, err)
	} else if !ok {
		return scores, nil
	}

	err := l.scan(path, func(lineNo int, fields []string) error {
		if len(fields) < 2 {
			return nil
		}
		r, err := parseID(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		scores[kg.Relation(r)] = score
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// Fingerprint returns a short content hash of the file at path.
func (l *Loader) Fingerprint(path string) (string, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", errors.LoadError(path, err)
	}
	return hash.SHA256Short(data, 16), nil
}

func (l *Loader) scan(path string, fn func(lineNo int, fields []string) error) error {
	f, err := l.fs.Open(path)
	if err != nil {
		return errors.LoadError(path, err)
	}
	defer f.Close()

	if err := scanLines(f, fn); err != nil {
		return errors.LoadError(path, err)
	}
	return nil
}

func scanLines(r io.Reader, fn func(lineNo int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := fn(lineNo, strings.Fields(scanner.Text())); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseID(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative id %d", v)
	}
	return int32(v), nil
}

func observedEntities(splits map[string][]kg.Triple, order []string) []kg.Entity {
	var set kg.EntitySet
	for _, name := range order {
		for _, t := range splits[name] {
			set.Add(t.Head)
			set.Add(t.Tail)
		}
	}
	return set.Slice()
}
