package evaluation

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/qrels"
)

// FromRows builds judgments from qrel rows. A later row for the same
// (query, doc) pair replaces an earlier one.
func FromRows(rows []qrels.Row) Judgments {
	j := make(Judgments)
	for _, r := range rows {
		j.Add(RelevanceJudgment{
			QueryID:   r.QueryID,
			DocID:     strconv.Itoa(int(r.Entity)),
			Relevance: int(r.Relevance),
		})
	}
	return j
}

// Add records one judgment.
func (j Judgments) Add(rj RelevanceJudgment) {
	if j[rj.QueryID] == nil {
		j[rj.QueryID] = make(map[string]int)
	}
	j[rj.QueryID][rj.DocID] = rj.Relevance
}

// Len returns the number of judged pairs.
func (j Judgments) Len() int {
	n := 0
	for _, docs := range j {
		n += len(docs)
	}
	return n
}

// Queries returns the judged query ids in sorted order.
func (j Judgments) Queries() []string {
	ids := make([]string, 0, len(j))
	for q := range j {
		ids = append(ids, q)
	}
	sort.Strings(ids)
	return ids
}

// Relevant counts the docs of query q graded at least minRel.
func (j Judgments) Relevant(q string, minRel int) int {
	n := 0
	for _, rel := range j[q] {
		if rel >= minRel {
			n++
		}
	}
	return n
}

// LoadQrels reads a qrel TSV into judgments.
func LoadQrels(fs afero.Fs, path string) (Judgments, error) {
	rows, err := qrels.ReadTSV(fs, path)
	if err != nil {
		return nil, err
	}
	return FromRows(rows), nil
}

// LoadRun reads a model run file of "query_id doc_id score" lines. Doc ids
// written as floats are normalised to integers so they match qrel doc ids.
func LoadRun(fs afero.Fs, path string) (Run, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.LoadError(path, err)
	}
	defer f.Close()

	run := make(Run)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, errors.LoadError(path, fmt.Errorf("line %d: want 3 fields, got %d", lineNo, len(fields)))
		}
		doc, err := qrels.ParseEntityID(fields[1])
		if err != nil {
			return nil, errors.LoadError(path, fmt.Errorf("line %d: %w", lineNo, err))
		}
		score, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.LoadError(path, fmt.Errorf("line %d: invalid score %q", lineNo, fields[2]))
		}
		if run[fields[0]] == nil {
			run[fields[0]] = make(map[string]float64)
		}
		run[fields[0]][strconv.Itoa(int(doc))] = score
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.LoadError(path, err)
	}
	return run, nil
}
