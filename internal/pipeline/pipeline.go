// Package pipeline wires the dataset loader, compatibility engine, table
// store, corruption engine and qrel generator into the runs exposed by the
// command line.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/bus"
	"github.com/ricesearch/kgeval/internal/compat"
	"github.com/ricesearch/kgeval/internal/config"
	"github.com/ricesearch/kgeval/internal/corrupt"
	"github.com/ricesearch/kgeval/internal/dataset"
	"github.com/ricesearch/kgeval/internal/evaluation"
	"github.com/ricesearch/kgeval/internal/index"
	"github.com/ricesearch/kgeval/internal/metrics"
	kgctx "github.com/ricesearch/kgeval/internal/pkg/context"
	"github.com/ricesearch/kgeval/internal/pkg/hash"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
	"github.com/ricesearch/kgeval/internal/qrels"
	"github.com/ricesearch/kgeval/internal/store"
)

// JournalFile is the event journal written next to the qrel files.
const JournalFile = "events.jsonl"

// Options overrides the components New would otherwise build from config.
// Zero fields are built from the configuration.
type Options struct {
	Fs      afero.Fs
	Log     *logger.Logger
	Storage store.Storage
	Bus     bus.Bus
	Metrics *metrics.Metrics
}

// Pipeline runs the compatibility and qrel stages for one configuration.
type Pipeline struct {
	cfg     *config.Config
	fs      afero.Fs
	log     *logger.Logger
	runID   string
	loader  *dataset.Loader
	tables  *store.Service
	bus     bus.Bus
	metrics *metrics.Metrics
}

// New builds a pipeline. The caller must Close it.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Log == nil {
		opts.Log = logger.New(cfg.Log.Level, cfg.Log.Format)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	runID := uuid.NewString()
	log := opts.Log.WithRun(runID)

	storage := opts.Storage
	if storage == nil {
		var err error
		if storage, err = store.NewStorage(cfg.Store, opts.Fs); err != nil {
			return nil, fmt.Errorf("creating compat store: %w", err)
		}
	}

	b := opts.Bus
	if b == nil {
		var err error
		if b, err = bus.NewBus(cfg.Bus, log); err != nil {
			storage.Close()
			return nil, fmt.Errorf("creating event bus: %w", err)
		}
	}
	journal, err := bus.NewEventLogger(opts.Fs, filepath.Join(cfg.Qrels.OutputDir, JournalFile))
	if err != nil {
		b.Close()
		storage.Close()
		return nil, fmt.Errorf("opening event journal: %w", err)
	}
	b = bus.NewLoggedBus(bus.NewInstrumentedBus(b, opts.Metrics), journal, log)

	return &Pipeline{
		cfg:     cfg,
		fs:      opts.Fs,
		log:     log,
		runID:   runID,
		loader:  dataset.NewLoader(opts.Fs, log),
		tables:  store.NewService(storage, log),
		bus:     b,
		metrics: opts.Metrics,
	}, nil
}

// RunID identifies this pipeline's events, logs and manifest.
func (p *Pipeline) RunID() string { return p.runID }

// Metrics returns the pipeline's metrics.
func (p *Pipeline) Metrics() *metrics.Metrics { return p.metrics }

// Tables returns the compatibility table service.
func (p *Pipeline) Tables() *store.Service { return p.tables }

// Bus returns the event bus events are published on.
func (p *Pipeline) Bus() bus.Bus { return p.bus }

// Close releases the bus and the table store.
func (p *Pipeline) Close() error {
	busErr := p.bus.Close()
	storeErr := p.tables.Close()
	if busErr != nil {
		return busErr
	}
	return storeErr
}

// Paths resolves the dataset files: the conventional layout under
// Dataset.Dir with any explicitly configured path applied on top.
func (p *Pipeline) Paths() dataset.Paths {
	d := p.cfg.Dataset
	return dataset.PathsFromDir(d.Dir, d.Prefix).Override(dataset.Paths{
		Train:        d.Train,
		Valid:        d.Valid,
		Test:         d.Test,
		OriginalTest: d.OriginalTest,
		Entities:     d.Entities,
		Relations:    d.Relations,
		Anomaly:      d.Anomaly,
	})
}

// Splits returns the main split followed by the secondary ones, each once.
// With a test prefix the unprefixed test split is always included, so its
// triples are masked like every other known fact.
func (p *Pipeline) Splits() []string {
	d := p.cfg.Dataset
	names := append([]string{d.Main}, d.Secondary...)
	if d.Prefix != "" {
		names = append(names, dataset.OriginalTest)
	}

	seen := make(map[string]bool, len(names))
	splits := names[:0]
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			splits = append(splits, name)
		}
	}
	return splits
}

// LoadDataset reads every configured split plus the id and anomaly files.
func (p *Pipeline) LoadDataset() (*dataset.Dataset, error) {
	name := p.cfg.Dataset.Name
	if name == "" {
		name = filepath.Base(filepath.Clean(p.cfg.Dataset.Dir))
	}
	ds, err := p.loader.Load(name, p.Paths(), p.Splits()...)
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]int, len(ds.Splits))
	for split, triples := range ds.Splits {
		sizes[split] = len(triples)
	}
	p.metrics.RecordDataset(len(ds.Entities), sizes)
	return ds, nil
}

// Params returns the configured compatibility parameters.
func (p *Pipeline) Params() (compat.Params, error) {
	c := p.cfg.Compat
	method, err := compat.ParseMethod(c.Method)
	if err != nil {
		return compat.Params{}, err
	}
	params := compat.Params{
		Method:    method,
		Threshold: c.Threshold,
		Alpha:     c.Alpha,
		Beta:      c.Beta,
		Workers:   c.Workers,
	}
	if err := params.Validate(); err != nil {
		return compat.Params{}, err
	}
	return params, nil
}

// CompatResult is a compatibility table made available to a run.
type CompatResult struct {
	Table    *compat.Table
	Index    *index.RelationIndex
	Key      string
	Cached   bool
	Duration time.Duration
}

// Compat builds the main split's relation index and returns its
// compatibility table, from the store when an entry for the same split
// contents and parameters exists.
func (p *Pipeline) Compat(ctx context.Context, ds *dataset.Dataset, params compat.Params) (*CompatResult, error) {
	main := p.cfg.Dataset.Main
	idx := index.Build(ds.Splits[main])

	key, err := p.compatKey(ds, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	table, cached, err := p.tables.GetOrCompute(ctx, key, func(ctx context.Context) (*compat.Table, error) {
		return compat.Compute(ctx, idx, params)
	})
	if err != nil {
		return nil, err
	}
	res := &CompatResult{
		Table:    table,
		Index:    idx,
		Key:      key,
		Cached:   cached,
		Duration: time.Since(start),
	}

	p.metrics.RecordCompat(string(params.Method), res.Duration, table.Links(), cached)
	p.publish(ctx, bus.TypeCompatComputed, bus.CompatPayload{
		Dataset:    ds.Name,
		Key:        key,
		Method:     string(params.Method),
		Threshold:  params.Threshold,
		Relations:  len(table.Order),
		Links:      table.Links(),
		Cached:     cached,
		DurationMs: res.Duration.Milliseconds(),
	})
	return res, nil
}

// compatKey derives the store key from the main split's contents and the
// similarity parameters.
func (p *Pipeline) compatKey(ds *dataset.Dataset, params compat.Params) (string, error) {
	path, err := ds.Paths.Split(p.cfg.Dataset.Main)
	if err != nil {
		return "", err
	}
	fingerprint, err := p.loader.Fingerprint(path)
	if err != nil {
		return "", err
	}
	return hash.CompatKey(ds.Name+"@"+fingerprint, string(params.Method), params.Threshold, params.Alpha, params.Beta), nil
}

// RunResult summarises a qrel generation run.
type RunResult struct {
	RunID        string
	Dataset      string
	Compat       *CompatResult
	Qrels        *qrels.Result
	Files        map[qrels.Policy]string
	Conflicts    map[qrels.Policy]qrels.ConflictReport
	ManifestPath string
	Duration     time.Duration
}

// Run generates qrels for every triple of the main split and writes one TSV
// per policy, the manifest, and the metrics textfile.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	ctx = kgctx.WithRunID(ctx, p.runID)

	params, err := p.Params()
	if err != nil {
		return nil, err
	}
	policies, err := qrels.ParsePolicies(p.cfg.Qrels.Policies)
	if err != nil {
		return nil, err
	}

	ds, err := p.LoadDataset()
	if err != nil {
		return nil, err
	}
	log := p.log.WithDataset(ds.Name)

	cr, err := p.Compat(ctx, ds, params)
	if err != nil {
		return nil, err
	}

	engine := p.engine(ds, cr)

	gen := qrels.NewGenerator(engine, qrels.GeneratorConfig{
		Policies:         policies,
		Workers:          p.cfg.Qrels.Workers,
		ProgressInterval: qrels.DefaultGeneratorConfig().ProgressInterval,
	}, log).WithObserver(p.metrics)

	res, err := gen.Generate(ctx, ds.Splits[p.cfg.Dataset.Main])
	if err != nil {
		return nil, err
	}

	files, err := qrels.NewWriter(p.fs, p.cfg.Qrels.OutputDir, p.cfg.Qrels.Prefix).Write(res)
	if err != nil {
		return nil, err
	}

	out := &RunResult{
		RunID:     p.runID,
		Dataset:   ds.Name,
		Compat:    cr,
		Qrels:     res,
		Files:     files,
		Conflicts: make(map[qrels.Policy]qrels.ConflictReport, len(policies)),
	}
	for _, pol := range res.Policies {
		rep := qrels.Conflicts(res.Rows[pol])
		out.Conflicts[pol] = rep
		p.metrics.RecordQrels(string(pol), res.Len(pol), len(rep.Conflicts))
		if len(rep.Conflicts) > 0 {
			log.WithPolicy(string(pol)).Warn("Conflicting judgments", "pairs", len(rep.Conflicts))
		}
		p.publish(ctx, bus.TypeQrelsWritten, bus.QrelsPayload{
			Dataset: ds.Name,
			Policy:  string(pol),
			Path:    files[pol],
			Rows:    res.Len(pol),
		})
	}

	if p.cfg.Qrels.Manifest {
		if out.ManifestPath, err = p.writeManifest(ds, params, cr, res, files); err != nil {
			return nil, err
		}
	}

	out.Duration = time.Since(start)
	p.metrics.RecordRun(out.Duration, time.Now())
	p.publish(ctx, bus.TypeRunCompleted, bus.RunPayload{
		Dataset:    ds.Name,
		Manifest:   out.ManifestPath,
		Triples:    res.Triples,
		Queries:    res.Queries,
		DurationMs: out.Duration.Milliseconds(),
	})
	p.writeMetrics()

	log.Info("Qrels generated",
		"triples", humanize.Comma(int64(res.Triples)),
		"queries", humanize.Comma(int64(res.Queries)),
		"policies", len(res.Policies),
		"compat_cached", cr.Cached,
		"duration", out.Duration.Round(time.Millisecond),
	)
	return out, nil
}

// engine builds the corruption engine over the union of every loaded split.
func (p *Pipeline) engine(ds *dataset.Dataset, cr *CompatResult) *corrupt.Engine {
	splits := p.Splits()[1:]
	secondary := make([]*index.RelationIndex, 0, len(splits))
	for _, split := range splits {
		secondary = append(secondary, index.Build(ds.Splits[split]))
	}
	union := index.NewUnion(ds.Entities, cr.Index, secondary...)
	return corrupt.NewEngine(union, compat.Unify(cr.Table))
}

func (p *Pipeline) writeManifest(ds *dataset.Dataset, params compat.Params, cr *CompatResult, res *qrels.Result, files map[qrels.Policy]string) (string, error) {
	m := evaluation.NewManifest(ds.Name, p.cfg.Dataset.Main)
	m.RunID = p.runID
	m.Hyperparameters = evaluation.Hyperparameters{
		Threshold: params.Threshold,
		Method:    string(params.Method),
		Alpha:     params.Alpha,
		Beta:      params.Beta,
	}
	m.CompatKey = cr.Key
	m.CompatCached = cr.Cached
	m.RecordQrels(res, files)
	if len(ds.Anomaly) > 0 {
		m.Anomaly = make(map[string]float64, len(ds.Anomaly))
		for r, score := range ds.Anomaly {
			m.Anomaly[strconv.Itoa(int(r))] = score
		}
	}

	name := "manifest.json"
	if p.cfg.Qrels.Prefix != "" {
		name = p.cfg.Qrels.Prefix + "_" + name
	}
	path := filepath.Join(p.cfg.Qrels.OutputDir, name)
	if err := m.Write(p.fs, path); err != nil {
		return "", err
	}
	return path, nil
}

// publish sends an event. Bus failures are logged and never fail a run.
func (p *Pipeline) publish(ctx context.Context, eventType string, payload any) {
	runID := kgctx.GetRunID(ctx)
	if runID == "" {
		runID = p.runID
	}
	topic := bus.Topic(p.cfg.Bus.TopicPrefix, eventType)
	if err := p.bus.Publish(ctx, topic, bus.NewEvent(eventType, runID, payload)); err != nil {
		p.log.WithError(err).Warn("Failed to publish event", "topic", topic)
	}
}

func (p *Pipeline) writeMetrics() {
	if !p.cfg.Metrics.Enabled || p.cfg.Metrics.Textfile == "" {
		return
	}
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		p.log.WithError(err).Warn("Failed to write metrics textfile", "path", p.cfg.Metrics.Textfile)
	}
}
