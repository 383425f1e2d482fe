package evaluation

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// Builtin computes trec_eval style ranking measures in process.
//
// A doc counts as relevant for the binary measures when its grade is at least
// RelThreshold; nDCG uses the grades themselves as gains. Run docs missing from
// the judgments are unjudged. Per-query values are averaged over the queries
// that appear in the run and have at least one relevant judgment.
type Builtin struct {
	RelThreshold int
}

// NewBuiltin creates an evaluator counting grades >= relThreshold as relevant.
func NewBuiltin(relThreshold int) *Builtin {
	return &Builtin{RelThreshold: relThreshold}
}

// measure is a parsed measure name such as "nDCG@10".
type measure struct {
	name string
	base string
	k    int // 0 = whole ranking
}

func parseMeasure(name string) (measure, error) {
	base, cutoff, hasCutoff := strings.Cut(name, "@")
	m := measure{name: name, base: strings.ToLower(base)}
	if hasCutoff {
		k, err := strconv.Atoi(cutoff)
		if err != nil || k < 1 {
			return measure{}, errors.ConfigError("measure", name)
		}
		m.k = k
	}

	switch m.base {
	case "ap", "map", "rr", "mrr", "ndcg":
	case "p", "r", "success":
		if m.k == 0 {
			return measure{}, errors.ConfigError("measure", name)
		}
	case "bpref", "rprec":
		if m.k != 0 {
			return measure{}, errors.ConfigError("measure", name)
		}
	default:
		return measure{}, errors.ConfigError("measure", name)
	}
	return m, nil
}

// Evaluate implements Evaluator.
func (b *Builtin) Evaluate(ctx context.Context, qrels Judgments, run Run, measures []string) (map[string]float64, error) {
	parsed := make([]measure, len(measures))
	for i, name := range measures {
		m, err := parseMeasure(name)
		if err != nil {
			return nil, err
		}
		parsed[i] = m
	}

	sums := make([]float64, len(parsed))
	evaluated := 0
	for _, q := range qrels.Queries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs, ok := run[q]
		if !ok || qrels.Relevant(q, b.RelThreshold) == 0 {
			continue
		}
		rq := b.rankQuery(qrels[q], docs)
		for i, m := range parsed {
			sums[i] += rq.score(m)
		}
		evaluated++
	}

	out := make(map[string]float64, len(parsed))
	for i, m := range parsed {
		if evaluated > 0 {
			out[m.name] = sums[i] / float64(evaluated)
		} else {
			out[m.name] = 0
		}
	}
	return out, nil
}

// rankedQuery holds one query's ranking as judged grades, -1 for unjudged.
type rankedQuery struct {
	grades      []int
	ideal       []int
	relevant    int
	nonrelevant int
	threshold   int
}

func (b *Builtin) rankQuery(judged map[string]int, docs map[string]float64) rankedQuery {
	rq := rankedQuery{threshold: b.RelThreshold}
	for _, g := range judged {
		if g >= b.RelThreshold {
			rq.relevant++
		} else {
			rq.nonrelevant++
		}
		if g > 0 {
			rq.ideal = append(rq.ideal, g)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rq.ideal)))

	for _, id := range rank(docs) {
		g, ok := judged[id]
		if !ok {
			g = -1
		}
		rq.grades = append(rq.grades, g)
	}
	return rq
}

// rank orders docs by descending score, ties broken by descending doc id.
func rank(docs map[string]float64) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := docs[ids[i]], docs[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] > ids[j]
	})
	return ids
}

func (rq rankedQuery) score(m measure) float64 {
	switch m.base {
	case "ap", "map":
		return AveragePrecision(rq.grades, m.k, rq.threshold, rq.relevant)
	case "rr", "mrr":
		return ReciprocalRank(rq.grades, m.k, rq.threshold)
	case "ndcg":
		return NDCG(rq.grades, rq.ideal, m.k)
	case "p":
		return Precision(rq.grades, m.k, rq.threshold)
	case "r":
		return Recall(rq.grades, m.k, rq.threshold, rq.relevant)
	case "success":
		return Success(rq.grades, m.k, rq.threshold)
	case "rprec":
		return Precision(rq.grades, rq.relevant, rq.threshold)
	case "bpref":
		return BPref(rq.grades, rq.threshold, rq.relevant, rq.nonrelevant)
	}
	return 0
}

func cut(grades []int, k int) []int {
	if k > 0 && k < len(grades) {
		return grades[:k]
	}
	return grades
}

// NDCG calculates Normalized Discounted Cumulative Gain at k of a ranking
// against the ideal ordering of every judged grade.
func NDCG(grades, ideal []int, k int) float64 {
	idcg := dcg(cut(ideal, k))
	if idcg == 0 {
		return 0
	}
	return dcg(cut(grades, k)) / idcg
}

func dcg(gains []int) float64 {
	sum := 0.0
	for i, g := range gains {
		if g > 0 {
			sum += float64(g) / math.Log2(float64(i+2))
		}
	}
	return sum
}

// Precision calculates Precision at k. Missing ranks count as non-relevant.
func Precision(grades []int, k, threshold int) float64 {
	if k <= 0 {
		return 0
	}
	hits := 0
	for _, g := range cut(grades, k) {
		if g >= threshold {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// Recall calculates Recall at k given the number of relevant judgments.
func Recall(grades []int, k, threshold, relevant int) float64 {
	if relevant == 0 {
		return 0
	}
	hits := 0
	for _, g := range cut(grades, k) {
		if g >= threshold {
			hits++
		}
	}
	return float64(hits) / float64(relevant)
}

// ReciprocalRank returns 1/rank of the first relevant doc within k.
func ReciprocalRank(grades []int, k, threshold int) float64 {
	for i, g := range cut(grades, k) {
		if g >= threshold {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// Success is 1 when a relevant doc appears within k.
func Success(grades []int, k, threshold int) float64 {
	if ReciprocalRank(grades, k, threshold) > 0 {
		return 1
	}
	return 0
}

// AveragePrecision sums precision at each relevant rank within k and divides
// by the number of relevant judgments.
func AveragePrecision(grades []int, k, threshold, relevant int) float64 {
	if relevant == 0 {
		return 0
	}
	hits := 0
	sum := 0.0
	for i, g := range cut(grades, k) {
		if g >= threshold {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(relevant)
}

// BPref penalises each retrieved relevant doc by the judged non-relevant docs
// ranked above it. Unjudged docs are ignored.
func BPref(grades []int, threshold, relevant, nonrelevant int) float64 {
	if relevant == 0 {
		return 0
	}
	denom := min(relevant, nonrelevant)
	above := 0
	sum := 0.0
	for _, g := range grades {
		switch {
		case g >= threshold:
			if denom == 0 {
				sum++
			} else {
				sum += 1 - float64(min(above, relevant))/float64(denom)
			}
		case g >= 0:
			above++
		}
	}
	return sum / float64(relevant)
}
