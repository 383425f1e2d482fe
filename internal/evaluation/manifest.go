package evaluation

import (
	"encoding/json"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/qrels"
)

// DefaultRelThreshold is the minimum grade counted as relevant by binary
// measures. Only LCWA candidates fall below it.
const DefaultRelThreshold = 1

// Hyperparameters are the compatibility settings a qrel set was built with.
type Hyperparameters struct {
	Threshold float64 `json:"compatible_threshold"`
	Method    string  `json:"similarity_method"`
	Alpha     float64 `json:"alpha"`
	Beta      float64 `json:"beta"`
}

// Manifest describes one qrel generation run and, once evaluated, the
// measures of each model run file against it.
type Manifest struct {
	RunID           string                      `json:"run_id"`
	CreatedAt       time.Time                   `json:"created_at"`
	Dataset         string                      `json:"dataset"`
	Split           string                      `json:"split"`
	RelThreshold    int                         `json:"rel_threshold"`
	Relevance       map[string]int              `json:"relevance"`
	Hyperparameters Hyperparameters             `json:"hyperparameters"`
	CompatKey       string                      `json:"compat_key,omitempty"`
	CompatCached    bool                        `json:"compat_cached"`
	Policies        []string                    `json:"policies"`
	Files           map[string]string           `json:"files"`
	Rows            map[string]int              `json:"rows"`
	Triples         int                         `json:"triples"`
	Queries         int                         `json:"queries"`
	Anomaly         map[string]float64          `json:"anomaly,omitempty"`
	Measures        []string                    `json:"measures,omitempty"`
	Results         map[string]EvaluationResult `json:"results,omitempty"`
}

// NewManifest starts a manifest for dataset with a fresh run id.
func NewManifest(dataset, split string) *Manifest {
	return &Manifest{
		RunID:        uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Dataset:      dataset,
		Split:        split,
		RelThreshold: DefaultRelThreshold,
		Relevance:    qrels.Scale(),
		Files:        make(map[string]string),
		Rows:         make(map[string]int),
	}
}

// RecordQrels fills the qrel section from a generation result and the paths
// it was written to.
func (m *Manifest) RecordQrels(res *qrels.Result, paths map[qrels.Policy]string) {
	m.Triples = res.Triples
	m.Queries = res.Queries
	m.Policies = m.Policies[:0]
	if m.Rows == nil {
		m.Rows = make(map[string]int)
	}
	if m.Files == nil {
		m.Files = make(map[string]string)
	}
	for _, p := range res.Policies {
		m.Policies = append(m.Policies, string(p))
		m.Rows[string(p)] = res.Len(p)
		if path, ok := paths[p]; ok {
			m.Files[string(p)] = filepath.ToSlash(path)
		}
	}
}

// AddResult stores the measures of one run file, rounded to four decimals.
func (m *Manifest) AddResult(r EvaluationResult) {
	if m.Results == nil {
		m.Results = make(map[string]EvaluationResult)
	}
	rounded := make(map[string]float64, len(r.Measures))
	for k, v := range r.Measures {
		rounded[k] = math.Round(v*1e4) / 1e4
	}
	r.Measures = rounded
	m.Results[r.RunFile] = r
}

// Write stores the manifest as indented JSON.
func (m *Manifest) Write(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.InternalError("encoding manifest", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WriteError(path, err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o644); err != nil {
		return errors.WriteError(path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.LoadError(path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.LoadError(path, err)
	}
	return &m, nil
}
