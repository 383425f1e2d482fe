package evaluation

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

// DefaultKs are the cutoffs used for the @k measures.
var DefaultKs = []int{1, 5, 10, 15, 20, 25, 30, 40, 50, 60, 70, 80, 90, 100, 150, 200, 250, 300, 350, 400, 450, 500}

// DefaultMeasures returns the measure names requested from the evaluator:
// AP, Bpref, MAP, MRR, RR and P, nDCG, R (recall), Success at every k in ks.
func DefaultMeasures(ks []int) []string {
	measures := []string{"AP", "Bpref", "MAP", "MRR", "RR"}
	for _, k := range ks {
		for _, name := range []string{"P", "nDCG", "R", "Success"} {
			measures = append(measures, fmt.Sprintf("%s@%d", name, k))
		}
	}
	return measures
}

// Runner evaluates model run files against one qrel file.
type Runner struct {
	fs        afero.Fs
	evaluator Evaluator
	measures  []string
	log       *logger.Logger
}

// NewRunner creates a runner. Nil measures select DefaultMeasures(DefaultKs).
func NewRunner(fs afero.Fs, ev Evaluator, measures []string, log *logger.Logger) *Runner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if len(measures) == 0 {
		measures = DefaultMeasures(DefaultKs)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Runner{fs: fs, evaluator: ev, measures: measures, log: log}
}

// Evaluate scores every run file against the qrels at qrelPath and records
// the results in m.
func (r *Runner) Evaluate(ctx context.Context, qrelPath string, runPaths []string, m *Manifest) error {
	judgments, err := LoadQrels(r.fs, qrelPath)
	if err != nil {
		return err
	}
	r.log.Info("Loaded qrels", "path", qrelPath, "queries", len(judgments), "pairs", judgments.Len())

	m.Measures = r.measures
	for _, path := range runPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		run, err := LoadRun(r.fs, path)
		if err != nil {
			return err
		}
		measures, err := r.evaluator.Evaluate(ctx, judgments, run, r.measures)
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", path, err)
		}
		m.AddResult(EvaluationResult{
			RunFile:  filepath.Base(path),
			Queries:  len(run),
			Measures: measures,
		})
		r.log.Debug("Evaluated run", "path", path, "measures", len(measures))
	}
	return nil
}
