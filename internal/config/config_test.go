package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/objectfs/l2refresh/internal/sampler"
	"github.com/objectfs/l2refresh/pkg/errors"
)

// Test Constants
const (
	TestDebugLevel = "DEBUG"
	TestMaxReads   = 8192
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	// Test global defaults
	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.LogFormat != "text" {
		t.Errorf("Expected LogFormat to be text, got %s", cfg.Global.LogFormat)
	}

	// Test sampling defaults
	if cfg.Sampling.MaxReads != 4096 {
		t.Errorf("Expected MaxReads to be 4096, got %d", cfg.Sampling.MaxReads)
	}
	if cfg.Sampling.ReadTimeout != 60*time.Second {
		t.Errorf("Expected ReadTimeout to be 60s, got %v", cfg.Sampling.ReadTimeout)
	}
	if cfg.Sampling.RandomizeReads {
		t.Error("Expected RandomizeReads to be false")
	}
	if cfg.Sampling.ProgressMode != "per-sample" {
		t.Errorf("Expected ProgressMode to be per-sample, got %s", cfg.Sampling.ProgressMode)
	}

	if cfg.Dispatch.Jobs != 16 {
		t.Errorf("Expected Jobs to be 16, got %d", cfg.Dispatch.Jobs)
	}
	if cfg.Discovery.Glob != "**/*" || cfg.Discovery.MinFileSize != 100 {
		t.Errorf("Unexpected discovery defaults: %+v", cfg.Discovery)
	}
	if cfg.Report.Table || cfg.Report.TableFormat != "single" || cfg.Report.Output != "text" || cfg.Report.ProgressInterval != 30*time.Second {
		t.Errorf("Unexpected report defaults: %+v", cfg.Report)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != "l2refresh" {
		t.Errorf("Unexpected metrics defaults: %+v", cfg.Metrics)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Configuration)
		wantCode errors.ErrorCode
	}{
		{
			name:   "valid config",
			modify: func(c *Configuration) {},
		},
		{
			name:   "negative max reads means file size",
			modify: func(c *Configuration) { c.Sampling.MaxReads = -1 },
		},
		{
			name:   "zero max reads",
			modify: func(c *Configuration) { c.Sampling.MaxReads = 0 },
		},
		{
			name:   "lower case log level",
			modify: func(c *Configuration) { c.Global.LogLevel = "debug" },
		},
		{
			name:     "randomize reads",
			modify:   func(c *Configuration) { c.Sampling.RandomizeReads = true },
			wantCode: errors.ErrCodeUnimplementedFeature,
		},
		{
			name: "randomize wins over other errors",
			modify: func(c *Configuration) {
				c.Sampling.RandomizeReads = true
				c.Dispatch.Jobs = 0
			},
			wantCode: errors.ErrCodeUnimplementedFeature,
		},
		{
			name:     "zero jobs",
			modify:   func(c *Configuration) { c.Dispatch.Jobs = 0 },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "zero read timeout",
			modify:   func(c *Configuration) { c.Sampling.ReadTimeout = 0 },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "invalid progress mode",
			modify:   func(c *Configuration) { c.Sampling.ProgressMode = "sometimes" },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "negative min file size",
			modify:   func(c *Configuration) { c.Discovery.MinFileSize = -5 },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "negative progress interval",
			modify:   func(c *Configuration) { c.Report.ProgressInterval = -time.Second },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "metrics port out of range",
			modify:   func(c *Configuration) { c.Metrics.Port = 70000 },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "invalid log level",
			modify:   func(c *Configuration) { c.Global.LogLevel = "LOUD" },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "invalid table format",
			modify:   func(c *Configuration) { c.Report.TableFormat = "double" },
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "invalid output",
			modify:   func(c *Configuration) { c.Report.Output = "yaml" },
			wantCode: errors.ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %s", tt.wantCode)
			}
			if got := errors.GetCode(err); got != tt.wantCode {
				t.Errorf("Validate() code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "l2refresh.yaml")

	configContent := `
global:
  log_level: DEBUG
  log_format: json
sampling:
  max_reads: 8192
  read_timeout: 30s
  progress_mode: byte-value
dispatch:
  jobs: 4
discovery:
  glob: "**/*.mkv"
  min_file_size: 1024
report:
  table: true
  table_format: markdown
metrics:
  textfile: /var/lib/node_exporter/l2refresh.prom
`
	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Global.LogLevel != TestDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Sampling.MaxReads != TestMaxReads {
		t.Errorf("Expected MaxReads to be %d, got %d", TestMaxReads, cfg.Sampling.MaxReads)
	}
	if cfg.Sampling.ReadTimeout != 30*time.Second {
		t.Errorf("Expected ReadTimeout to be 30s, got %v", cfg.Sampling.ReadTimeout)
	}
	if cfg.Dispatch.Jobs != 4 {
		t.Errorf("Expected Jobs to be 4, got %d", cfg.Dispatch.Jobs)
	}
	if cfg.Discovery.Glob != "**/*.mkv" || cfg.Discovery.MinFileSize != 1024 {
		t.Errorf("Unexpected discovery section: %+v", cfg.Discovery)
	}
	if !cfg.Report.Table || cfg.Report.TableFormat != "markdown" {
		t.Errorf("Unexpected report section: %+v", cfg.Report)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/l2refresh.prom" {
		t.Errorf("Unexpected metrics textfile: %s", cfg.Metrics.Textfile)
	}

	// Unset keys keep their defaults
	if cfg.Report.Output != "text" {
		t.Errorf("Expected Output default to survive, got %s", cfg.Report.Output)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics to stay enabled")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded config should be valid: %v", err)
	}
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile("/non/existent/file.yaml")
	if err == nil {
		t.Fatal("Expected error when loading non-existent file")
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidConfig {
		t.Errorf("Expected INVALID_CONFIG, got %s", errors.GetCode(err))
	}
}

func TestLoadFromFileMalformed(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configFile, []byte("sampling: [unclosed"), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	err := NewDefault().LoadFromFile(configFile)
	if !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Expected INVALID_CONFIG, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"L2REFRESH_LOG_LEVEL":        "debug",
		"L2REFRESH_LOG_FORMAT":       "json",
		"L2REFRESH_JOBS":             "3",
		"L2REFRESH_MAX_READS":        "-1",
		"L2REFRESH_READ_TIMEOUT":     "90s",
		"L2REFRESH_PROGRESS_MODE":    "byte-value",
		"L2REFRESH_METRICS_TEXTFILE": "/tmp/l2.prom",
		"L2REFRESH_METRICS_ENABLED":  "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Global.LogLevel != TestDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.LogFormat != "json" {
		t.Errorf("Expected LogFormat to be json, got %s", cfg.Global.LogFormat)
	}
	if cfg.Dispatch.Jobs != 3 {
		t.Errorf("Expected Jobs to be 3, got %d", cfg.Dispatch.Jobs)
	}
	if cfg.Sampling.MaxReads != -1 {
		t.Errorf("Expected MaxReads to be -1, got %d", cfg.Sampling.MaxReads)
	}
	if cfg.Sampling.ReadTimeout != 90*time.Second {
		t.Errorf("Expected ReadTimeout to be 90s, got %v", cfg.Sampling.ReadTimeout)
	}
	if cfg.Sampling.ProgressMode != "byte-value" {
		t.Errorf("Expected ProgressMode to be byte-value, got %s", cfg.Sampling.ProgressMode)
	}
	if cfg.Metrics.Textfile != "/tmp/l2.prom" {
		t.Errorf("Expected metrics textfile, got %s", cfg.Metrics.Textfile)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled")
	}
}

func TestLoadFromEnvIgnoresBadNumbers(t *testing.T) {
	t.Setenv("L2REFRESH_JOBS", "many")
	t.Setenv("L2REFRESH_READ_TIMEOUT", "soon")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Dispatch.Jobs != 16 {
		t.Errorf("Expected Jobs default to survive, got %d", cfg.Dispatch.Jobs)
	}
	if cfg.Sampling.ReadTimeout != 60*time.Second {
		t.Errorf("Expected ReadTimeout default to survive, got %v", cfg.Sampling.ReadTimeout)
	}
}

func TestSaveToFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "saved.yaml")

	cfg := NewDefault()
	cfg.Sampling.MaxReads = 123
	cfg.Report.TableFormat = "ascii"

	if err := cfg.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded := NewDefault()
	if err := loaded.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Sampling.MaxReads != 123 {
		t.Errorf("Expected MaxReads to be 123, got %d", loaded.Sampling.MaxReads)
	}
	if loaded.Report.TableFormat != "ascii" {
		t.Errorf("Expected TableFormat to be ascii, got %s", loaded.Report.TableFormat)
	}
}

func TestSaveToFileCreateDirectory(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	if err := NewDefault().SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}

func TestSamplerConfig(t *testing.T) {
	cfg := NewDefault()
	cfg.Sampling.MaxReads = -1
	cfg.Sampling.ReadTimeout = 5 * time.Second
	cfg.Sampling.ProgressMode = "byte-value"

	sc := cfg.SamplerConfig()
	if sc.MaxReads != -1 || sc.ReadTimeout != 5*time.Second {
		t.Errorf("Unexpected sampler config: %+v", sc)
	}
	if sc.ProgressMode != sampler.ProgressByteValue {
		t.Errorf("Expected byte-value mode, got %s", sc.ProgressMode)
	}
}
