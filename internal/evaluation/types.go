// Package evaluation is the boundary to an external IR-measures library.
// It turns generated qrels and model run files into the query -> doc maps
// such libraries consume, and records results in a run manifest.
package evaluation

import "context"

// RelevanceJudgment represents the graded relevance of one query-doc pair.
type RelevanceJudgment struct {
	QueryID   string `json:"query_id"`
	DocID     string `json:"doc_id"`
	Relevance int    `json:"relevance"` // 0=LCWA .. 4=sensical, 5=true answer
}

// Judgments maps query id -> doc id -> relevance.
type Judgments map[string]map[string]int

// Run maps query id -> doc id -> model score.
type Run map[string]map[string]float64

// Evaluator computes aggregate ranking measures of a run against judgments.
// Measure names follow the IR-measures convention, e.g. "nDCG@10".
type Evaluator interface {
	Evaluate(ctx context.Context, qrels Judgments, run Run, measures []string) (map[string]float64, error)
}

// EvaluationResult holds the aggregate measures of one run file.
type EvaluationResult struct {
	RunFile  string             `json:"run_file"`
	Queries  int                `json:"queries"`
	Measures map[string]float64 `json:"metrics"`
}
