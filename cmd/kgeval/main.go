// Package main provides the kgeval binary: compatibility tables, graded
// qrels and conflict reports for knowledge-graph link prediction benchmarks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ricesearch/kgeval/internal/config"
	"github.com/ricesearch/kgeval/internal/pipeline"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kgeval",
		Short: "kgeval - graded relevance judgments for link prediction",
		Long: `kgeval turns a knowledge-graph benchmark into graded relevance judgments.

Relations whose head and tail entities overlap are linked as compatible;
every candidate answer of a test query is then graded by how sensible it is
for the queried relation, from nonsensical (1) to sensical (4), with the true
answer at 5.

Examples:
  kgeval compat --dataset-dir data/FB15K237
  kgeval qrels --dataset-dir data/FB15K237 --method jaccard --threshold 0.8
  kgeval sweep --dataset-dir data/FB15K237 --thresholds 0.75,0.8,0.9
  kgeval conflicts qrels/qrels_max.tsv
  kgeval evaluate --manifest qrels/manifest.json runs/boxe_top.tsv`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		compatCmd(),
		qrelsCmd(),
		sweepCmd(),
		conflictsCmd(),
		evaluateCmd(),
		eventsCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kgeval %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// signalContext is cancelled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig reads the config file and environment, then applies every flag
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(cfg.Log.Level, cfg.Log.Format)
}

// openPipeline loads the configuration and builds a pipeline from it.
func openPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(cfg, pipeline.Options{Log: newLogger(cfg)})
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

// Flag registration. Each command only registers the groups it uses;
// applyFlags skips names a command does not define.

func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("dataset-dir", "d", "", "dataset directory (train2id.txt, entity2id.txt, ...)")
	cmd.Flags().String("dataset-name", "", "dataset name (default: directory name)")
	cmd.Flags().String("prefix", "", "test split prefix, e.g. 3_ for 3_test2id.txt")
	cmd.Flags().String("main", "", "split the queries are generated from (train, valid, test, original_test)")
	cmd.Flags().StringSlice("secondary", nil, "splits merged into the candidate index (original_test is added when --prefix is set)")
	cmd.Flags().String("entities", "", "entity id file (overrides the directory layout)")
}

func addCompatFlags(cmd *cobra.Command) {
	cmd.Flags().String("method", "", "similarity method (overlap, jaccard, dice, cosine, tversky)")
	cmd.Flags().Float64("threshold", 0, "compatibility threshold; scores must be strictly greater")
	cmd.Flags().Float64("alpha", 0, "tversky alpha")
	cmd.Flags().Float64("beta", 0, "tversky beta")
	cmd.Flags().Int("workers", 0, "parallel workers")
	cmd.Flags().String("store", "", "compatibility store (none, file, badger, redis)")
}

func addQrelsFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("policies", nil, "aggregation policies (max, min, avg_floor, avg_ceil)")
	cmd.Flags().StringP("out-dir", "o", "", "qrel output directory")
	cmd.Flags().String("out-prefix", "", "qrel file name prefix")
	cmd.Flags().String("bus", "", "event bus type (none, memory, kafka)")
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}
	str := func(name string, dst *string) {
		if changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	strs := func(name string, dst *[]string) {
		if changed(name) {
			*dst, _ = flags.GetStringSlice(name)
		}
	}
	float := func(name string, dst *float64) {
		if changed(name) {
			*dst, _ = flags.GetFloat64(name)
		}
	}

	str("dataset-dir", &cfg.Dataset.Dir)
	str("dataset-name", &cfg.Dataset.Name)
	str("prefix", &cfg.Dataset.Prefix)
	str("main", &cfg.Dataset.Main)
	strs("secondary", &cfg.Dataset.Secondary)
	str("entities", &cfg.Dataset.Entities)

	str("method", &cfg.Compat.Method)
	float("threshold", &cfg.Compat.Threshold)
	float("alpha", &cfg.Compat.Alpha)
	float("beta", &cfg.Compat.Beta)
	if changed("workers") {
		workers, _ := flags.GetInt("workers")
		cfg.Compat.Workers = workers
		cfg.Qrels.Workers = workers
	}
	str("store", &cfg.Store.Type)

	strs("policies", &cfg.Qrels.Policies)
	str("out-dir", &cfg.Qrels.OutputDir)
	str("out-prefix", &cfg.Qrels.Prefix)
	str("bus", &cfg.Bus.Type)
}
