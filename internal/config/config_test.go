package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KGE_COMPAT_THRESHOLD", "0.9")
	t.Setenv("KGE_LOG_LEVEL", "debug")
	t.Setenv("KGE_QRELS_POLICIES", "max,min")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Compat.Threshold != 0.9 {
		t.Errorf("Compat.Threshold = %v, want 0.9", cfg.Compat.Threshold)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if diff := cmp.Diff([]string{"max", "min"}, cfg.Qrels.Policies); diff != "" {
		t.Errorf("Qrels.Policies mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
dataset:
  name: FB15K237
  dir: /data/fb15k237
  main: test
  secondary: [train]
compat:
  method: tversky
  threshold: 0.8
  alpha: 0.3
  beta: 0.7
qrels:
  policies: [avg_floor]
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Dataset.Name != "FB15K237" {
		t.Errorf("Dataset.Name = %s, want FB15K237", cfg.Dataset.Name)
	}

	if diff := cmp.Diff([]string{"train"}, cfg.Dataset.Secondary); diff != "" {
		t.Errorf("Dataset.Secondary mismatch (-want +got):\n%s", diff)
	}

	if cfg.Compat.Method != "tversky" || cfg.Compat.Alpha != 0.3 || cfg.Compat.Beta != 0.7 {
		t.Errorf("Compat = %+v, want tversky alpha=0.3 beta=0.7", cfg.Compat)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}

	// Untouched sections keep their defaults.
	if cfg.Compat.Workers != 4 {
		t.Errorf("Compat.Workers = %d, want default 4", cfg.Compat.Workers)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("compat:\n  method: dice\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("KGE_COMPAT_METHOD", "cosine")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Compat.Method != "cosine" {
		t.Errorf("Compat.Method = %s, want cosine", cfg.Compat.Method)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("compat:\n  method: hamming\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should reject an unknown method")
	}
	if !strings.Contains(err.Error(), "hamming") {
		t.Errorf("error should name the offending value: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KGE_TEST_DOTENV_VALUE=from-file\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("KGE_TEST_DOTENV_VALUE") })

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("KGE_TEST_DOTENV_VALUE"); got != "from-file" {
		t.Errorf("KGE_TEST_DOTENV_VALUE = %q, want from-file", got)
	}

	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid method",
			modify: func(c *Config) {
				c.Compat.Method = "hamming"
			},
			wantErr: true,
		},
		{
			name: "threshold not a number",
			modify: func(c *Config) {
				c.Compat.Threshold = math.NaN()
			},
			wantErr: true,
		},
		{
			name: "negative threshold",
			modify: func(c *Config) {
				c.Compat.Threshold = -0.5
			},
			wantErr: false,
		},
		{
			name: "negative tversky weight",
			modify: func(c *Config) {
				c.Compat.Alpha = -0.1
			},
			wantErr: true,
		},
		{
			name: "invalid policy",
			modify: func(c *Config) {
				c.Qrels.Policies = []string{"max", "median"}
			},
			wantErr: true,
		},
		{
			name: "no policies",
			modify: func(c *Config) {
				c.Qrels.Policies = nil
			},
			wantErr: true,
		},
		{
			name: "invalid main split",
			modify: func(c *Config) {
				c.Dataset.Main = "dev"
			},
			wantErr: true,
		},
		{
			name: "original test as secondary",
			modify: func(c *Config) {
				c.Dataset.Prefix = "3_"
				c.Dataset.Secondary = []string{"train", "valid", "original_test"}
			},
			wantErr: false,
		},
		{
			name: "invalid store type",
			modify: func(c *Config) {
				c.Store.Type = "s3"
			},
			wantErr: true,
		},
		{
			name: "kafka without brokers",
			modify: func(c *Config) {
				c.Bus.Type = "kafka"
			},
			wantErr: true,
		},
		{
			name: "kafka with brokers",
			modify: func(c *Config) {
				c.Bus.Type = "kafka"
				c.Bus.KafkaBrokers = "localhost:9092"
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "zero workers",
			modify: func(c *Config) {
				c.Qrels.Workers = 0
			},
			wantErr: true,
		},
		{
			name: "qrels prefix with separator",
			modify: func(c *Config) {
				c.Qrels.Prefix = "../fb"
			},
			wantErr: true,
		},
		{
			name: "qrels prefix",
			modify: func(c *Config) {
				c.Qrels.Prefix = "fb_0"
				c.Dataset.Name = "FB15K237"
			},
			wantErr: false,
		},
		{
			name: "dataset name with space",
			modify: func(c *Config) {
				c.Dataset.Name = "fb 15k"
			},
			wantErr: true,
		},
		{
			name: "topic prefix with colon",
			modify: func(c *Config) {
				c.Bus.TopicPrefix = "kge:events"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKafkaBrokerList(t *testing.T) {
	cfg := &Config{}
	cfg.Bus.KafkaBrokers = "a:9092, b:9092,,"

	if diff := cmp.Diff([]string{"a:9092", "b:9092"}, cfg.KafkaBrokerList()); diff != "" {
		t.Errorf("KafkaBrokerList() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{}

	cfg.Log.Level = "debug"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true for debug level")
	}

	cfg.Log.Level = "info"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for info level")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Compat.Method != "overlap" || cfg.Compat.Threshold != 0.75 {
		t.Errorf("Compat = %+v", cfg.Compat)
	}
	if cfg.Dataset.Main != "test" || len(cfg.Dataset.Secondary) != 2 {
		t.Errorf("Dataset = %+v", cfg.Dataset)
	}
}
