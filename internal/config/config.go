// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ricesearch/kgeval/internal/pkg/security"
)

// DotEnvFile is read before environment processing when it exists.
const DotEnvFile = ".env"

// Config holds all application configuration.
type Config struct {
	// Dataset configuration
	Dataset DatasetConfig `yaml:"dataset"`

	// Compatibility configuration
	Compat CompatConfig `yaml:"compat"`

	// Qrels configuration
	Qrels QrelsConfig `yaml:"qrels"`

	// Compatibility store configuration
	Store StoreConfig `yaml:"store"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`
}

// DatasetConfig locates the input files. Explicit paths override the
// conventional layout under Dir.
type DatasetConfig struct {
	Name         string   `envconfig:"KGE_DATASET_NAME" yaml:"name"`
	Dir          string   `envconfig:"KGE_DATASET_DIR" yaml:"dir"`
	Prefix       string   `envconfig:"KGE_DATASET_PREFIX" yaml:"prefix"` // e.g. "3_" for reshuffled test splits
	Train        string   `envconfig:"KGE_TRAIN_FILE" yaml:"train"`
	Valid        string   `envconfig:"KGE_VALID_FILE" yaml:"valid"`
	Test         string   `envconfig:"KGE_TEST_FILE" yaml:"test"`
	OriginalTest string   `envconfig:"KGE_ORIGINAL_TEST_FILE" yaml:"original_test"`
	Entities     string   `envconfig:"KGE_ENTITY_FILE" yaml:"entities"`
	Relations    string   `envconfig:"KGE_RELATION_FILE" yaml:"relations"`
	Anomaly      string   `envconfig:"KGE_ANOMALY_FILE" yaml:"anomaly"`
	Main         string   `envconfig:"KGE_MAIN_SPLIT" yaml:"main"`
	Secondary    []string `envconfig:"KGE_SECONDARY_SPLITS" yaml:"secondary"`
}

// CompatConfig holds relation compatibility settings.
type CompatConfig struct {
	Method    string  `envconfig:"KGE_COMPAT_METHOD" yaml:"method"`
	Threshold float64 `envconfig:"KGE_COMPAT_THRESHOLD" yaml:"threshold"`
	Alpha     float64 `envconfig:"KGE_COMPAT_ALPHA" yaml:"alpha"`
	Beta      float64 `envconfig:"KGE_COMPAT_BETA" yaml:"beta"`
	Workers   int     `envconfig:"KGE_COMPAT_WORKERS" yaml:"workers"`
}

// QrelsConfig holds relevance aggregation settings.
type QrelsConfig struct {
	Policies  []string `envconfig:"KGE_QRELS_POLICIES" yaml:"policies"`
	Workers   int      `envconfig:"KGE_QRELS_WORKERS" yaml:"workers"`
	OutputDir string   `envconfig:"KGE_QRELS_OUTPUT_DIR" yaml:"output_dir"`
	Prefix    string   `envconfig:"KGE_QRELS_PREFIX" yaml:"prefix"`
	Manifest  bool     `envconfig:"KGE_QRELS_MANIFEST" yaml:"manifest"`
}

// StoreConfig holds compatibility table persistence settings.
type StoreConfig struct {
	Type     string `envconfig:"KGE_STORE_TYPE" yaml:"type"`
	Path     string `envconfig:"KGE_STORE_PATH" yaml:"path"`
	RedisURL string `envconfig:"KGE_REDIS_URL" yaml:"redis_url"`
	TTL      int    `envconfig:"KGE_STORE_TTL" yaml:"ttl"` // seconds, 0 = no expiry
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"KGE_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"KGE_KAFKA_BROKERS" yaml:"kafka_brokers"`
	TopicPrefix  string `envconfig:"KGE_BUS_TOPIC_PREFIX" yaml:"topic_prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"KGE_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"KGE_LOG_FORMAT" yaml:"format"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Enabled  bool   `envconfig:"KGE_METRICS_ENABLED" yaml:"enabled"`
	Textfile string `envconfig:"KGE_METRICS_TEXTFILE" yaml:"textfile"`
}

// Load loads configuration from an optional .env file, environment
// variables and an optional config file.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, fmt.Errorf("loading %s: %w", DotEnvFile, err)
	}

	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// loadDotEnv populates the process environment from path. Variables that
// are already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Dataset = DatasetConfig{
		Dir:       ".",
		Main:      "test",
		Secondary: []string{"train", "valid"},
	}

	cfg.Compat = CompatConfig{
		Method:    "overlap",
		Threshold: 0.75,
		Alpha:     0.5,
		Beta:      0.5,
		Workers:   4,
	}

	cfg.Qrels = QrelsConfig{
		Policies:  []string{"max", "min", "avg_floor", "avg_ceil"},
		Workers:   4,
		OutputDir: "qrels",
		Manifest:  true,
	}

	cfg.Store = StoreConfig{
		Type:     "file",
		Path:     ".kgeval",
		RedisURL: "redis://localhost:6379",
	}

	cfg.Bus = BusConfig{
		Type:        "none",
		TopicPrefix: "kge",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Metrics = MetricsConfig{
		Enabled: true,
	}
}

var (
	validMethods  = map[string]bool{"overlap": true, "jaccard": true, "dice": true, "cosine": true, "tversky": true}
	validPolicies = map[string]bool{"max": true, "min": true, "avg_floor": true, "avg_ceil": true}
	validSplits   = map[string]bool{"train": true, "valid": true, "test": true, "original_test": true}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Dataset validation
	if !validSplits[c.Dataset.Main] {
		errs = append(errs, fmt.Sprintf("invalid main split: %s (must be train, valid, test, or original_test)", c.Dataset.Main))
	}
	for _, s := range c.Dataset.Secondary {
		if !validSplits[s] {
			errs = append(errs, fmt.Sprintf("invalid secondary split: %s (must be train, valid, test, or original_test)", s))
		}
	}

	if c.Dataset.Name != "" {
		if err := security.ValidateName("dataset name", c.Dataset.Name); err != nil {
			errs = append(errs, err.Error())
		}
	}

	// Compat validation
	if !validMethods[c.Compat.Method] {
		errs = append(errs, fmt.Sprintf("invalid compat method: %s (must be overlap, jaccard, dice, cosine, or tversky)", c.Compat.Method))
	}

	if math.IsNaN(c.Compat.Threshold) || math.IsInf(c.Compat.Threshold, 0) {
		errs = append(errs, "compat threshold must be a finite number")
	}

	if c.Compat.Alpha < 0 || c.Compat.Beta < 0 {
		errs = append(errs, "compat alpha and beta must be non-negative")
	}

	if c.Compat.Workers < 1 {
		errs = append(errs, "compat workers must be positive")
	}

	// Qrels validation
	if len(c.Qrels.Policies) == 0 {
		errs = append(errs, "at least one qrels policy is required")
	}
	for _, p := range c.Qrels.Policies {
		if !validPolicies[p] {
			errs = append(errs, fmt.Sprintf("invalid qrels policy: %s (must be max, min, avg_floor, or avg_ceil)", p))
		}
	}

	if c.Qrels.Workers < 1 {
		errs = append(errs, "qrels workers must be positive")
	}

	if c.Qrels.Prefix != "" {
		if err := security.ValidateName("qrels prefix", c.Qrels.Prefix); err != nil {
			errs = append(errs, err.Error())
		}
	}

	// Store validation
	validStoreTypes := map[string]bool{"none": true, "file": true, "badger": true, "redis": true}
	if !validStoreTypes[c.Store.Type] {
		errs = append(errs, fmt.Sprintf("invalid store type: %s (must be none, file, badger, or redis)", c.Store.Type))
	}

	if c.Store.TTL < 0 {
		errs = append(errs, "store ttl must not be negative")
	}

	// Bus validation
	validBusTypes := map[string]bool{"none": true, "memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be none, memory, or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers is required for the kafka bus")
	}

	if c.Bus.TopicPrefix != "" {
		if err := security.ValidateName("topic prefix", c.Bus.TopicPrefix); err != nil {
			errs = append(errs, err.Error())
		}
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// KafkaBrokerList splits the comma separated broker setting.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Bus.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
