package qrels

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ricesearch/kgeval/internal/compat"
	"github.com/ricesearch/kgeval/internal/corrupt"
	"github.com/ricesearch/kgeval/internal/index"
	"github.com/ricesearch/kgeval/internal/kg"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

const (
	alice kg.Entity = iota
	bob
	charlie
	david
	eve
)

const (
	knows kg.Relation = iota
	likes
	worksWith
)

var aliceKnowsBob = kg.Triple{Head: alice, Relation: knows, Tail: bob}

func peopleEngine(t *testing.T) (*corrupt.Engine, *index.RelationIndex) {
	t.Helper()
	train := index.Build([]kg.Triple{
		aliceKnowsBob,
		{Head: bob, Relation: knows, Tail: charlie},
		{Head: charlie, Relation: likes, Tail: david},
		{Head: david, Relation: worksWith, Tail: eve},
	})
	table, err := compat.Compute(context.Background(), train, compat.Params{Method: compat.Overlap, Threshold: 0.4, Workers: 2})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	union := index.NewUnion([]kg.Entity{alice, bob, charlie, david, eve}, train)
	return corrupt.NewEngine(union, compat.Unify(table)), train
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		values []Level
		want   PolicyScores
		ok     bool
	}{
		{"all zero", []Level{0, 0, 0, 0}, PolicyScores{}, false},
		{"single", []Level{0, 3, 0, 0}, PolicyScores{3, 3, 3, 3}, true},
		{"two", []Level{1, 0, 0, 4}, PolicyScores{Max: 4, Min: 1, AvgFloor: 2, AvgCeil: 3}, true},
		{"exact mean", []Level{1, 0, 3, 0}, PolicyScores{Max: 3, Min: 1, AvgFloor: 2, AvgCeil: 2}, true},
		{"all tiers", []Level{1, 2, 3, 4}, PolicyScores{Max: 4, Min: 1, AvgFloor: 2, AvgCeil: 3}, true},
		{"empty", nil, PolicyScores{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.values)
			if ok != tt.ok {
				t.Fatalf("Resolve() ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolve_PolicyOrdering(t *testing.T) {
	// Every combination of the four scored tiers being present.
	for mask := 1; mask < 16; mask++ {
		values := make([]Level, 4)
		for i := 0; i < 4; i++ {
			if mask&(1<<i) != 0 {
				values[i] = Level(i + 1)
			}
		}
		s, ok := Resolve(values)
		if !ok {
			t.Fatalf("Resolve(%v) reported all zero", values)
		}
		if !(s.Min <= s.AvgFloor && s.AvgFloor <= s.AvgCeil && s.AvgCeil <= s.Max) {
			t.Errorf("Resolve(%v) = %+v violates min <= avg_floor <= avg_ceil <= max", values, s)
		}
	}
}

func TestReduce(t *testing.T) {
	m := &Matrix{
		Tiers:   ScoredTiers,
		Columns: []kg.Entity{3, 7, 9},
		Cells: [][]Level{
			{1, 0, 0},
			{0, 0, 0},
			{3, 0, 0},
			{4, 4, 0},
		},
	}

	got := Reduce(m, []Policy{Min, AvgCeil})

	want := map[Policy][]Scored{
		Min:     {{Entity: 3, Relevance: 1}, {Entity: 7, Relevance: 4}},
		AvgCeil: {{Entity: 3, Relevance: 3}, {Entity: 7, Relevance: 4}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMatrix(t *testing.T) {
	engine, _ := peopleEngine(t)

	m, err := BuildMatrix(engine, aliceKnowsBob, kg.Head)
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}

	if diff := cmp.Diff([]kg.Entity{bob, charlie}, m.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	want := [][]Level{
		{1, 1}, // nonsensical: range(knows) \ {alice}
		{0, 2}, // one-hop nonsensical: domain(likes)
		{0, 0}, // one-hop sensical: nothing compatible with domain(knows)
		{4, 0}, // sensical: domain(knows) \ {alice}
	}
	if diff := cmp.Diff(want, m.Cells); diff != "" {
		t.Errorf("Cells mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_PeopleGraph(t *testing.T) {
	engine, _ := peopleEngine(t)

	rows, err := Aggregate(engine, aliceKnowsBob, Policies)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	const hq, tq = "(0,0,1)-h", "(0,0,1)-t"
	want := map[Policy][]Row{
		Max: {
			{hq, alice, Positive}, {hq, bob, 4}, {hq, charlie, 2},
			{tq, bob, Positive}, {tq, alice, 1}, {tq, charlie, 4},
		},
		Min: {
			{hq, alice, Positive}, {hq, bob, 1}, {hq, charlie, 1},
			{tq, bob, Positive}, {tq, alice, 1}, {tq, charlie, 3},
		},
		AvgFloor: {
			{hq, alice, Positive}, {hq, bob, 2}, {hq, charlie, 1},
			{tq, bob, Positive}, {tq, alice, 1}, {tq, charlie, 3},
		},
		AvgCeil: {
			{hq, alice, Positive}, {hq, bob, 3}, {hq, charlie, 2},
			{tq, bob, Positive}, {tq, alice, 1}, {tq, charlie, 4},
		},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
}

// fixedCorrupter returns the same candidates for every tier.
type fixedCorrupter struct {
	set kg.EntitySet
	err error
}

func (f fixedCorrupter) Corrupted(kg.Triple, kg.Side, corrupt.Tier) (kg.EntitySet, error) {
	return f.set.Clone(), f.err
}

func TestAggregate_PositiveNotOverwritten(t *testing.T) {
	// The true answers show up as candidates of every tier.
	c := fixedCorrupter{set: kg.NewEntitySet(alice, bob, charlie)}

	rows, err := Aggregate(c, aliceKnowsBob, []Policy{Min})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	for _, r := range rows[Min] {
		isAnswer := (r.QueryID == "(0,0,1)-h" && r.Entity == alice) || (r.QueryID == "(0,0,1)-t" && r.Entity == bob)
		if isAnswer && r.Relevance != Positive {
			t.Errorf("true answer row %+v overwritten", r)
		}
	}
	if got := len(rows[Min]); got != 6 {
		t.Errorf("len(rows) = %d, want 6 (one positive and two candidates per query)", got)
	}
	if rows[Min][0].Relevance != Positive || rows[Min][3].Relevance != Positive {
		t.Errorf("positive rows must lead each query: %+v", rows[Min])
	}
}

func TestAggregate_Error(t *testing.T) {
	c := fixedCorrupter{err: errors.ConfigError("tier", "x")}
	if _, err := Aggregate(c, aliceKnowsBob, Policies); !errors.IsConfig(err) {
		t.Errorf("Aggregate() error = %v, want config error", err)
	}
}

func TestQueryID(t *testing.T) {
	tr := kg.Triple{Head: 12, Relation: 3, Tail: 40}

	tests := []struct {
		side kg.Side
		want string
	}{
		{kg.Head, "(12,3,40)-h"},
		{kg.Tail, "(12,3,40)-t"},
	}
	for _, tt := range tests {
		id := QueryID(tr, tt.side)
		if id != tt.want {
			t.Errorf("QueryID(%v, %s) = %s, want %s", tr, tt.side, id, tt.want)
		}
		gotTriple, gotSide, err := ParseQueryID(id)
		if err != nil {
			t.Fatalf("ParseQueryID(%s) error = %v", id, err)
		}
		if gotTriple != tr || gotSide != tt.side {
			t.Errorf("ParseQueryID(%s) = %v, %s", id, gotTriple, gotSide)
		}
	}

	for _, bad := range []string{"", "(1,2,3)", "(1,2,3)-x", "1,2,3)-h", "(1,2)-t", "(a,2,3)-h"} {
		if _, _, err := ParseQueryID(bad); err == nil {
			t.Errorf("ParseQueryID(%q) should fail", bad)
		}
	}
}

func TestParsePolicies(t *testing.T) {
	got, err := ParsePolicies([]string{"min", "max", "min"})
	if err != nil {
		t.Fatalf("ParsePolicies() error = %v", err)
	}
	if diff := cmp.Diff([]Policy{Min, Max}, got); diff != "" {
		t.Errorf("ParsePolicies() mismatch (-want +got):\n%s", diff)
	}

	all, _ := ParsePolicies(nil)
	if diff := cmp.Diff(Policies, all); diff != "" {
		t.Errorf("ParsePolicies(nil) mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParsePolicies([]string{"median"}); !errors.IsConfig(err) {
		t.Errorf("ParsePolicies(median) error = %v, want config error", err)
	}
}

func TestScale(t *testing.T) {
	want := map[string]int{
		"LCWA":                0,
		"nonsensical":         1,
		"one-hop nonsensical": 2,
		"one-hop sensical":    3,
		"sensical":            4,
		"positive":            5,
	}
	if diff := cmp.Diff(want, Scale()); diff != "" {
		t.Errorf("Scale() mismatch (-want +got):\n%s", diff)
	}
}

type countingObserver struct {
	triples int
	rows    int
}

func (c *countingObserver) TripleDone(rows int, _ time.Duration) {
	c.triples++
	c.rows += rows
}

func TestGenerator_OrderIndependentOfWorkers(t *testing.T) {
	engine, train := peopleEngine(t)
	triples := train.Triples()

	var baseline *Result
	for _, workers := range []int{1, 3, 8} {
		cfg := DefaultGeneratorConfig()
		cfg.Workers = workers
		res, err := NewGenerator(engine, cfg, logger.Discard()).Generate(context.Background(), triples)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if res.Triples != 4 || res.Queries != 8 {
			t.Errorf("Triples/Queries = %d/%d, want 4/8", res.Triples, res.Queries)
		}
		if baseline == nil {
			baseline = res
			continue
		}
		if diff := cmp.Diff(baseline.Rows, res.Rows); diff != "" {
			t.Errorf("workers=%d changed the output (-want +got):\n%s", workers, diff)
		}
	}

	// Rows of the first triple lead every policy file.
	for _, p := range Policies {
		if first := baseline.Rows[p][0]; first != (Row{"(0,0,1)-h", alice, Positive}) {
			t.Errorf("policy %s starts with %+v", p, first)
		}
	}
}

func TestGenerator_Observer(t *testing.T) {
	engine, train := peopleEngine(t)
	obs := &countingObserver{}

	cfg := DefaultGeneratorConfig()
	cfg.Workers = 1
	res, err := NewGenerator(engine, cfg, logger.Discard()).WithObserver(obs).Generate(context.Background(), train.Triples())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	total := 0
	for _, p := range res.Policies {
		total += res.Len(p)
	}
	if obs.triples != 4 || obs.rows != total {
		t.Errorf("observer saw %d triples / %d rows, want 4 / %d", obs.triples, obs.rows, total)
	}
}

func TestGenerator_Cancelled(t *testing.T) {
	engine, train := peopleEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator(engine, DefaultGeneratorConfig(), logger.Discard()).Generate(ctx, train.Triples())
	if err == nil {
		t.Error("Generate() with cancelled context should fail")
	}
}
