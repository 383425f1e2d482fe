package evaluation

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
	"github.com/ricesearch/kgeval/internal/qrels"
)

func TestFromRows(t *testing.T) {
	rows := []qrels.Row{
		{QueryID: "(0,0,1)-t", Entity: 1, Relevance: qrels.Positive},
		{QueryID: "(0,0,1)-t", Entity: 2, Relevance: 4},
		{QueryID: "(0,0,1)-h", Entity: 0, Relevance: qrels.Positive},
		{QueryID: "(0,0,1)-t", Entity: 2, Relevance: 3},
	}

	j := FromRows(rows)

	want := Judgments{
		"(0,0,1)-t": {"1": 5, "2": 3},
		"(0,0,1)-h": {"0": 5},
	}
	if diff := cmp.Diff(want, j); diff != "" {
		t.Errorf("FromRows() mismatch (-want +got):\n%s", diff)
	}
	if j.Len() != 3 {
		t.Errorf("Len() = %d, want 3", j.Len())
	}
	if diff := cmp.Diff([]string{"(0,0,1)-h", "(0,0,1)-t"}, j.Queries()); diff != "" {
		t.Errorf("Queries() mismatch (-want +got):\n%s", diff)
	}
	if got := j.Relevant("(0,0,1)-t", 4); got != 1 {
		t.Errorf("Relevant(>=4) = %d, want 1", got)
	}
}

func TestLoadRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "boxe_top.tsv", []byte("(0,0,1)-t\t1.0\t0.93\n(0,0,1)-t 2 0.12\n\n(0,0,1)-h 0 -1.5\n"), 0o644)

	run, err := LoadRun(fs, "boxe_top.tsv")
	if err != nil {
		t.Fatalf("LoadRun() error = %v", err)
	}

	want := Run{
		"(0,0,1)-t": {"1": 0.93, "2": 0.12},
		"(0,0,1)-h": {"0": -1.5},
	}
	if diff := cmp.Diff(want, run); diff != "" {
		t.Errorf("LoadRun() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing score", "(0,0,1)-t 1\n"},
		{"bad doc", "(0,0,1)-t one 0.5\n"},
		{"bad score", "(0,0,1)-t 1 high\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			_ = afero.WriteFile(fs, "run.tsv", []byte(tt.content), 0o644)
			if _, err := LoadRun(fs, "run.tsv"); !errors.IsLoad(err) {
				t.Errorf("LoadRun() error = %v, want load error", err)
			}
		})
	}
}

func TestLoadQrels(t *testing.T) {
	fs := afero.NewMemMapFs()
	rows := []qrels.Row{{QueryID: "(3,1,4)-h", Entity: 3, Relevance: qrels.Positive}, {QueryID: "(3,1,4)-h", Entity: 9, Relevance: 2}}
	if err := qrels.WriteTSV(fs, "q/qrels_max.tsv", rows); err != nil {
		t.Fatalf("WriteTSV() error = %v", err)
	}

	j, err := LoadQrels(fs, "q/qrels_max.tsv")
	if err != nil {
		t.Fatalf("LoadQrels() error = %v", err)
	}
	if diff := cmp.Diff(Judgments{"(3,1,4)-h": {"3": 5, "9": 2}}, j); diff != "" {
		t.Errorf("LoadQrels() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultMeasures(t *testing.T) {
	got := DefaultMeasures([]int{10})
	want := []string{"AP", "Bpref", "MAP", "MRR", "RR", "P@10", "nDCG@10", "R@10", "Success@10"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DefaultMeasures() mismatch (-want +got):\n%s", diff)
	}
	if n := len(DefaultMeasures(DefaultKs)); n != 5+4*len(DefaultKs) {
		t.Errorf("len(DefaultMeasures(DefaultKs)) = %d", n)
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManifest("people", "test")
	m.Hyperparameters = Hyperparameters{Threshold: 0.75, Method: "overlap", Alpha: 0.5, Beta: 0.5}
	m.RecordQrels(&qrels.Result{
		Policies: []qrels.Policy{qrels.Max},
		Rows:     map[qrels.Policy][]qrels.Row{qrels.Max: {{QueryID: "q", Entity: 1, Relevance: 5}}},
		Triples:  1,
		Queries:  2,
	}, map[qrels.Policy]string{qrels.Max: "out/qrels_max.tsv"})

	if _, err := uuid.Parse(m.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", m.RunID, err)
	}
	if m.Relevance["sensical"] != 4 || m.Relevance["positive"] != 5 {
		t.Errorf("Relevance = %v", m.Relevance)
	}

	if err := m.Write(fs, "out/manifest.json"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := ReadManifest(fs, "out/manifest.json")
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("manifest round trip mismatch (-want +got):\n%s", diff)
	}
	if got.Files["max"] != "out/qrels_max.tsv" || got.Rows["max"] != 1 {
		t.Errorf("qrel section = files %v rows %v", got.Files, got.Rows)
	}
}

func TestReadManifest_Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "m.json", []byte("{"), 0o644)
	if _, err := ReadManifest(fs, "m.json"); !errors.IsLoad(err) {
		t.Errorf("ReadManifest() error = %v, want load error", err)
	}
}

// recallAt1 is a toy evaluator: the fraction of queries whose top-scored doc
// is judged at or above the relevance threshold.
type recallAt1 struct {
	calls int
}

func (e *recallAt1) Evaluate(_ context.Context, q Judgments, run Run, _ []string) (map[string]float64, error) {
	e.calls++
	hits := 0
	for qid, docs := range run {
		best, bestScore := "", 0.0
		for doc, s := range docs {
			if best == "" || s > bestScore {
				best, bestScore = doc, s
			}
		}
		if q[qid][best] >= DefaultRelThreshold {
			hits++
		}
	}
	return map[string]float64{"Success@1": float64(hits) / float64(len(run))}, nil
}

func TestRunner_Evaluate(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = qrels.WriteTSV(fs, "qrels.tsv", []qrels.Row{
		{QueryID: "a", Entity: 1, Relevance: 5},
		{QueryID: "b", Entity: 2, Relevance: 5},
		{QueryID: "c", Entity: 3, Relevance: 5},
	})
	_ = afero.WriteFile(fs, "runs/top.tsv", []byte("a 1 0.9\na 7 0.1\nb 2 0.8\nc 9 0.7\nc 3 0.2\n"), 0o644)

	ev := &recallAt1{}
	m := NewManifest("toy", "test")
	runner := NewRunner(fs, ev, []string{"Success@1"}, logger.Discard())

	if err := runner.Evaluate(context.Background(), "qrels.tsv", []string{"runs/top.tsv"}, m); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	res, ok := m.Results["top.tsv"]
	if !ok {
		t.Fatalf("Results missing top.tsv: %v", m.Results)
	}
	if res.Measures["Success@1"] != 0.6667 {
		t.Errorf("Success@1 = %v, want 0.6667", res.Measures["Success@1"])
	}
	if res.Queries != 3 || ev.calls != 1 {
		t.Errorf("Queries = %d, calls = %d", res.Queries, ev.calls)
	}
	if diff := cmp.Diff([]string{"Success@1"}, m.Measures); diff != "" {
		t.Errorf("Measures mismatch (-want +got):\n%s", diff)
	}
}

func TestRunner_MissingRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = qrels.WriteTSV(fs, "qrels.tsv", nil)

	err := NewRunner(fs, &recallAt1{}, nil, logger.Discard()).
		Evaluate(context.Background(), "qrels.tsv", []string{"nope.tsv"}, NewManifest("toy", "test"))
	if !errors.IsLoad(err) {
		t.Errorf("Evaluate() error = %v, want load error", err)
	}
}
