package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ricesearch/kgeval/internal/bus"
	"github.com/ricesearch/kgeval/internal/compat"
	"github.com/ricesearch/kgeval/internal/evaluation"
	"github.com/ricesearch/kgeval/internal/pipeline"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/qrels"
)

func compatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compat",
		Short: "Compute the relation compatibility table",
		Long: `Build the relation index of the main split and link every pair of relations
whose domain or range sets are similar enough. The table is kept in the
configured store and reused by later runs over the same split contents.`,
		Args: cobra.NoArgs,
		RunE: runCompat,
	}
	addDatasetFlags(cmd)
	addCompatFlags(cmd)
	cmd.Flags().String("out", "", "also write the table as JSON to this path")
	return cmd
}

type compatReport struct {
	Dataset    string         `json:"dataset"`
	Key        string         `json:"key"`
	Cached     bool           `json:"cached"`
	Method     string         `json:"method"`
	Threshold  float64        `json:"threshold"`
	Relations  int            `json:"relations"`
	Links      map[string]int `json:"links"`
	Summary    compat.Summary `json:"summary"`
	DurationMs int64          `json:"duration_ms"`
}

func runCompat(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	p, _, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := signalContext()
	defer cancel()

	ds, err := p.LoadDataset()
	if err != nil {
		return err
	}
	params, err := p.Params()
	if err != nil {
		return err
	}
	cr, err := p.Compat(ctx, ds, params)
	if err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		var buf bytes.Buffer
		if err := compat.Encode(&buf, cr.Table); err != nil {
			return err
		}
		if err := afero.WriteFile(afero.NewOsFs(), out, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	}

	report := compatReport{
		Dataset:    ds.Name,
		Key:        cr.Key,
		Cached:     cr.Cached,
		Method:     string(params.Method),
		Threshold:  params.Threshold,
		Relations:  len(cr.Table.Order),
		Links:      make(map[string]int, len(compat.Kinds)),
		Summary:    compat.Summarize(compat.Unify(cr.Table)),
		DurationMs: cr.Duration.Milliseconds(),
	}
	for _, k := range compat.Kinds {
		for _, r := range cr.Table.Order {
			report.Links[k.String()] += len(cr.Table.List(k, r))
		}
	}

	w := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(w, report)
	}
	rows := [][]string{
		{"dataset", report.Dataset},
		{"method", report.Method},
		{"threshold", strconv.FormatFloat(report.Threshold, 'g', -1, 64)},
		{"relations", count(report.Relations)},
	}
	for _, k := range compat.Kinds {
		rows = append(rows, []string{k.String() + " links", count(report.Links[k.String()])})
	}
	rows = append(rows,
		[]string{"non-empty keys", fmt.Sprintf("%d / %d", report.Summary.NonEmptyKeys, report.Summary.TotalKeys)},
		[]string{"mean links", decimal(report.Summary.MeanLinks)},
		[]string{"median links", decimal(report.Summary.MedianLinks)},
		[]string{"max links", count(report.Summary.MaxLinks)},
		[]string{"cached", strconv.FormatBool(report.Cached)},
		[]string{"key", report.Key},
	)
	renderTable(w, []string{"field", "value"}, rows)
	return nil
}

func qrelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qrels",
		Short: "Generate graded qrels for every triple of the main split",
		Long: `Load the dataset, obtain the compatibility table, and grade every candidate
of the head and tail query of each main-split triple. One TSV file is written
per aggregation policy, plus a manifest describing the run.`,
		Args: cobra.NoArgs,
		RunE: runQrels,
	}
	addDatasetFlags(cmd)
	addCompatFlags(cmd)
	addQrelsFlags(cmd)
	return cmd
}

type policyReport struct {
	Policy    string `json:"policy"`
	Path      string `json:"path"`
	Rows      int    `json:"rows"`
	Conflicts int    `json:"conflicts"`
}

type qrelsReport struct {
	RunID        string         `json:"run_id"`
	Dataset      string         `json:"dataset"`
	Triples      int            `json:"triples"`
	Queries      int            `json:"queries"`
	CompatKey    string         `json:"compat_key"`
	CompatCached bool           `json:"compat_cached"`
	Manifest     string         `json:"manifest,omitempty"`
	Policies     []policyReport `json:"policies"`
	DurationMs   int64          `json:"duration_ms"`
}

func runQrels(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	p, _, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	report := qrelsReport{
		RunID:        res.RunID,
		Dataset:      res.Dataset,
		Triples:      res.Qrels.Triples,
		Queries:      res.Qrels.Queries,
		CompatKey:    res.Compat.Key,
		CompatCached: res.Compat.Cached,
		Manifest:     res.ManifestPath,
		DurationMs:   res.Duration.Milliseconds(),
	}
	for _, pol := range res.Qrels.Policies {
		report.Policies = append(report.Policies, policyReport{
			Policy:    string(pol),
			Path:      res.Files[pol],
			Rows:      res.Qrels.Len(pol),
			Conflicts: len(res.Conflicts[pol].Conflicts),
		})
	}

	w := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(w, report)
	}
	rows := make([][]string, 0, len(report.Policies))
	for _, pr := range report.Policies {
		rows = append(rows, []string{pr.Policy, count(pr.Rows), count(pr.Conflicts), pr.Path})
	}
	renderTable(w, []string{"policy", "rows", "conflicts", "file"}, rows)
	fmt.Fprintf(w, "%s triples, %s queries in %s\n",
		count(report.Triples), count(report.Queries), res.Duration.Round(time.Millisecond))
	if report.Manifest != "" {
		fmt.Fprintf(w, "manifest: %s\n", report.Manifest)
	}
	return nil
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Compare compatibility tables across methods and thresholds",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addDatasetFlags(cmd)
	addCompatFlags(cmd)

	methods := make([]string, len(compat.Methods))
	for i, m := range compat.Methods {
		methods[i] = string(m)
	}
	cmd.Flags().StringSlice("methods", methods, "similarity methods to compare")
	cmd.Flags().Float64Slice("thresholds", pipeline.DefaultSweepThresholds, "thresholds to compare")
	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	names, _ := cmd.Flags().GetStringSlice("methods")
	thresholds, _ := cmd.Flags().GetFloat64Slice("thresholds")
	methods := make([]compat.Method, 0, len(names))
	for _, name := range names {
		m, err := compat.ParseMethod(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		methods = append(methods, m)
	}

	p, _, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := signalContext()
	defer cancel()

	ds, err := p.LoadDataset()
	if err != nil {
		return err
	}
	res, err := p.Sweep(ctx, ds, methods, thresholds)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(w, res)
	}

	variants := make([][]string, 0, len(res.Variants))
	for _, v := range res.Variants {
		s := v.Summary
		variants = append(variants, []string{
			v.Label(),
			fmt.Sprintf("%d / %d", s.NonEmptyKeys, s.TotalKeys),
			count(s.TotalLinks),
			decimal(s.MeanLinks),
			decimal(s.MedianLinks),
			count(s.MaxLinks),
			strconv.FormatBool(v.Cached),
		})
	}
	renderTable(w, []string{"variant", "non-empty keys", "links", "mean", "median", "max", "cached"}, variants)

	pairs := make([][]string, 0, len(res.Pairs))
	for _, pr := range res.Pairs {
		c := pr.Comparison
		pairs = append(pairs, []string{
			pr.A,
			pr.B,
			count(c.SharedNonEmpty),
			count(c.DiffLengthKeys),
			count(c.OnlyInA),
			count(c.OnlyInB),
			strconv.FormatBool(c.Identical()),
		})
	}
	fmt.Fprintln(w)
	renderTable(w, []string{"a", "b", "shared keys", "length differs", "only in a", "only in b", "identical"}, pairs)
	return nil
}

func conflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts <qrels.tsv>...",
		Short: "Report entities judged more than once per query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runConflicts,
	}
	cmd.Flags().Bool("details", false, "list every conflicting pair")
	return cmd
}

type conflictsReport struct {
	File   string               `json:"file"`
	Report qrels.ConflictReport `json:"report"`
}

func runConflicts(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	details, _ := cmd.Flags().GetBool("details")
	fs := afero.NewOsFs()

	reports := make([]conflictsReport, 0, len(args))
	for _, path := range args {
		rows, err := qrels.ReadTSV(fs, path)
		if err != nil {
			return err
		}
		reports = append(reports, conflictsReport{File: path, Report: qrels.Conflicts(rows)})
	}

	w := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(w, reports)
	}

	summary := make([][]string, 0, len(reports))
	for _, r := range reports {
		summary = append(summary, []string{
			r.File,
			count(r.Report.Rows),
			count(r.Report.Pairs),
			count(r.Report.Duplicates),
			count(len(r.Report.Conflicts)),
		})
	}
	renderTable(w, []string{"file", "rows", "pairs", "duplicated pairs", "conflicts"}, summary)

	if !details {
		return nil
	}
	var rows [][]string
	for _, r := range reports {
		for _, c := range r.Report.Conflicts {
			grades := make([]string, len(c.Relevances))
			for i, l := range c.Relevances {
				grades[i] = strconv.Itoa(int(l))
			}
			rows = append(rows, []string{r.File, c.QueryID, strconv.Itoa(int(c.Entity)), strings.Join(grades, ",")})
		}
	}
	fmt.Fprintln(w)
	renderTable(w, []string{"file", "query", "entity", "grades"}, rows)
	return nil
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List or replay the event journal of past runs",
		Long: `List the events journaled next to the qrel files. With --replay the events
are published again on the configured bus, e.g. to feed a Kafka consumer that
was offline during the run.`,
		Args: cobra.NoArgs,
		RunE: runEvents,
	}
	cmd.Flags().String("journal", "", "journal path (default: <qrels output dir>/"+pipeline.JournalFile+")")
	cmd.Flags().Duration("since", 0, "only events newer than this age, e.g. 24h (0 = all)")
	cmd.Flags().Int("limit", 0, "maximum number of events to list (0 = all)")
	cmd.Flags().Bool("replay", false, "publish the events on the configured bus")
	cmd.Flags().String("bus", "", "event bus type (none, memory, kafka)")
	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("journal")
	if path == "" {
		path = filepath.Join(cfg.Qrels.OutputDir, pipeline.JournalFile)
	}
	var since time.Time
	if age, _ := cmd.Flags().GetDuration("since"); age > 0 {
		since = time.Now().Add(-age)
	}
	fs := afero.NewOsFs()
	w := cmd.OutOrStdout()

	if replay, _ := cmd.Flags().GetBool("replay"); replay {
		log := newLogger(cfg)
		b, err := bus.NewBus(cfg.Bus, log)
		if err != nil {
			return err
		}
		defer b.Close()
		if cfg.Bus.Type == "none" || cfg.Bus.Type == "" {
			log.Warn("Replaying onto a disabled bus, events will be dropped")
		}

		ctx, cancel := signalContext()
		defer cancel()
		n, err := bus.Replay(ctx, fs, path, b, since)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "replayed %s event%s from %s\n", count(n), plural(n), path)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	events, err := bus.ReadEvents(fs, path, since, limit)
	if err != nil {
		return err
	}
	if format == formatJSON {
		return writeJSON(w, events)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.Timestamp.Format(time.RFC3339),
			e.Topic,
			e.Event.Type,
			e.Event.CorrelationID,
		})
	}
	renderTable(w, []string{"time", "topic", "type", "run"}, rows)
	return nil
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <run.tsv>...",
		Short: "Score model run files against generated qrels",
		Long: `Rank the candidates of every query in each run file ("query_id entity score"
lines) and compute ranking measures against a qrel file. With --manifest the
qrel file is taken from the manifest of a qrels run and the results are
recorded in it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEvaluate,
	}
	cmd.Flags().String("qrels", "", "qrel TSV to evaluate against")
	cmd.Flags().String("manifest", "", "manifest of a qrels run; results are written back to it")
	cmd.Flags().String("policy", string(qrels.Max), "qrel file of the manifest to use")
	cmd.Flags().StringSlice("measures", nil, "measures, e.g. AP,nDCG@10 (default: AP, Bpref, MAP, MRR, RR and P, nDCG, R, Success at every --ks)")
	cmd.Flags().IntSlice("ks", evaluation.DefaultKs, "cutoffs of the default @k measures")
	cmd.Flags().Int("rel-threshold", evaluation.DefaultRelThreshold, "minimum grade counted as relevant (default: the manifest's)")
	return cmd
}

type evaluateReport struct {
	Qrels        string                        `json:"qrels"`
	Manifest     string                        `json:"manifest,omitempty"`
	RelThreshold int                           `json:"rel_threshold"`
	Results      []evaluation.EvaluationResult `json:"results"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()

	qrelPath, _ := cmd.Flags().GetString("qrels")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	relThreshold, _ := cmd.Flags().GetInt("rel-threshold")

	m := evaluation.NewManifest(cfg.Dataset.Name, cfg.Dataset.Main)
	if manifestPath != "" {
		if m, err = evaluation.ReadManifest(fs, manifestPath); err != nil {
			return err
		}
		if qrelPath == "" {
			policy, _ := cmd.Flags().GetString("policy")
			qrelPath = m.Files[policy]
			if qrelPath == "" {
				return errors.ConfigError("policy", policy)
			}
		}
		if !cmd.Flags().Changed("rel-threshold") {
			relThreshold = m.RelThreshold
		}
	}
	if qrelPath == "" {
		return errors.ConfigError("qrels", "")
	}
	if relThreshold < 0 {
		return errors.ConfigError("rel-threshold", strconv.Itoa(relThreshold))
	}
	m.RelThreshold = relThreshold

	measures, _ := cmd.Flags().GetStringSlice("measures")
	if len(measures) == 0 {
		ks, _ := cmd.Flags().GetIntSlice("ks")
		measures = evaluation.DefaultMeasures(ks)
	}

	ctx, cancel := signalContext()
	defer cancel()

	runner := evaluation.NewRunner(fs, evaluation.NewBuiltin(relThreshold), measures, newLogger(cfg))
	if err := runner.Evaluate(ctx, qrelPath, args, m); err != nil {
		return err
	}
	if manifestPath != "" {
		if err := m.Write(fs, manifestPath); err != nil {
			return err
		}
	}

	report := evaluateReport{
		Qrels:        qrelPath,
		Manifest:     manifestPath,
		RelThreshold: relThreshold,
	}
	for _, path := range args {
		report.Results = append(report.Results, m.Results[filepath.Base(path)])
	}

	w := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(w, report)
	}
	var rows [][]string
	for _, res := range report.Results {
		for _, name := range m.Measures {
			rows = append(rows, []string{res.RunFile, name, strconv.FormatFloat(res.Measures[name], 'f', 4, 64)})
		}
	}
	renderTable(w, []string{"run", "measure", "value"}, rows)
	return nil
}
