package qrels

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ricesearch/kgeval/internal/kg"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

// Observer receives per-triple timings.
type Observer interface {
	TripleDone(rows int, elapsed time.Duration)
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Policies []Policy

	// Workers is the number of triples judged in parallel.
	Workers int

	// ProgressInterval throttles progress logging.
	ProgressInterval time.Duration
}

// DefaultGeneratorConfig returns sensible defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Policies:         append([]Policy(nil), Policies...),
		Workers:          4,
		ProgressInterval: 10 * time.Second,
	}
}

// Result is the full set of judgments of one run, grouped by policy. Within
// a policy, rows follow triple order and then query order.
type Result struct {
	Policies []Policy
	Rows     map[Policy][]Row
	Triples  int
	Queries  int
}

// Len returns the number of rows under p.
func (r *Result) Len(p Policy) int {
	return len(r.Rows[p])
}

// Generator judges every triple of a split.
type Generator struct {
	corrupter Corrupter
	cfg       GeneratorConfig
	log       *logger.Logger
	observer  Observer
}

// NewGenerator creates a generator.
func NewGenerator(c Corrupter, cfg GeneratorConfig, log *logger.Logger) *Generator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if len(cfg.Policies) == 0 {
		cfg.Policies = append([]Policy(nil), Policies...)
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultGeneratorConfig().ProgressInterval
	}
	if log == nil {
		log = logger.Default()
	}
	return &Generator{corrupter: c, cfg: cfg, log: log}
}

// WithObserver attaches an observer and returns g.
func (g *Generator) WithObserver(o Observer) *Generator {
	g.observer = o
	return g
}

// Generate aggregates every triple. Triples are processed in parallel but
// each writes into its own slot, so output order equals input order.
func (g *Generator) Generate(ctx context.Context, triples []kg.Triple) (*Result, error) {
	slots := make([]map[Policy][]Row, len(triples))

	var done atomic.Int64
	progress := rate.Sometimes{Interval: g.cfg.ProgressInterval}
	total := humanize.Comma(int64(len(triples)))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)

	for i, t := range triples {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			rows, err := Aggregate(g.corrupter, t, g.cfg.Policies)
			if err != nil {
				return fmt.Errorf("triple %d %v: %w", i, t, err)
			}
			slots[i] = rows

			if g.observer != nil {
				n := 0
				for _, r := range rows {
					n += len(r)
				}
				g.observer.TripleDone(n, time.Since(start))
			}

			n := done.Add(1)
			progress.Do(func() {
				g.log.Info("Generating qrels", "done", humanize.Comma(n), "total", total)
			})
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("generating qrels: %w", err)
	}

	res := &Result{
		Policies: append([]Policy(nil), g.cfg.Policies...),
		Rows:     make(map[Policy][]Row, len(g.cfg.Policies)),
		Triples:  len(triples),
		Queries:  len(triples) * len(kg.Sides),
	}
	for _, slot := range slots {
		for _, p := range g.cfg.Policies {
			res.Rows[p] = append(res.Rows[p], slot[p]...)
		}
	}

	for _, p := range res.Policies {
		g.log.Debug("Policy rows collected", "policy", string(p), "rows", humanize.Comma(int64(len(res.Rows[p]))))
	}
	return res, nil
}
