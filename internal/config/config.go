package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/l2refresh/internal/sampler"
	"github.com/objectfs/l2refresh/pkg/errors"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global    GlobalConfig    `yaml:"global"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Report    ReportConfig    `yaml:"report"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// SamplingConfig controls the per-file random read loop
type SamplingConfig struct {
	MaxReads       int64         `yaml:"max_reads"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	RandomizeReads bool          `yaml:"randomize_reads"`
	ProgressMode   string        `yaml:"progress_mode"`
}

// DispatchConfig controls the worker pool
type DispatchConfig struct {
	Jobs int `yaml:"jobs"`
}

// DiscoveryConfig controls deep-read file enumeration
type DiscoveryConfig struct {
	Glob        string `yaml:"glob"`
	MinFileSize int64  `yaml:"min_file_size"`
}

// ReportConfig controls result presentation
type ReportConfig struct {
	Table            bool          `yaml:"table"`
	TableFormat      string        `yaml:"table_format"`
	Output           string        `yaml:"output"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Textfile  string `yaml:"textfile"`
	Port      int    `yaml:"port"`
	Namespace string `yaml:"namespace"`
}

var (
	validLogLevels    = []string{"DEBUG", "INFO", "WARN", "ERROR"}
	validTableFormats = []string{"ascii", "markdown", "single"}
	validOutputs      = []string{"text", "json"}
)

// NewDefault returns a configuration with the tool's stock defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Sampling: SamplingConfig{
			MaxReads:     4096,
			ReadTimeout:  60 * time.Second,
			ProgressMode: string(sampler.ProgressPerSample),
		},
		Dispatch: DispatchConfig{
			Jobs: 16,
		},
		Discovery: DiscoveryConfig{
			Glob:        "**/*",
			MinFileSize: 100,
		},
		Report: ReportConfig{
			TableFormat:      "single",
			Output:           "text",
			ProgressInterval: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "l2refresh",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "failed to read config file", err).
			WithComponent("config").
			WithContext("file", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "failed to parse config file", err).
			WithComponent("config").
			WithContext("file", filename)
	}

	return nil
}

// LoadFromEnv loads configuration from L2REFRESH_* environment variables.
// Unparseable numeric values are ignored.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("L2REFRESH_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("L2REFRESH_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("L2REFRESH_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	if val := os.Getenv("L2REFRESH_JOBS"); val != "" {
		if jobs, err := strconv.Atoi(val); err == nil {
			c.Dispatch.Jobs = jobs
		}
	}
	if val := os.Getenv("L2REFRESH_MAX_READS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Sampling.MaxReads = n
		}
	}
	if val := os.Getenv("L2REFRESH_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Sampling.ReadTimeout = d
		}
	}
	if val := os.Getenv("L2REFRESH_PROGRESS_MODE"); val != "" {
		c.Sampling.ProgressMode = val
	}

	if val := os.Getenv("L2REFRESH_METRICS_TEXTFILE"); val != "" {
		c.Metrics.Textfile = val
	}
	if val := os.Getenv("L2REFRESH_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration. The randomize option is recognized
// but rejected with ErrCodeUnimplementedFeature.
func (c *Configuration) Validate() error {
	if c.Sampling.RandomizeReads {
		return errors.NewError(errors.ErrCodeUnimplementedFeature, "read size randomization is not implemented yet").
			WithComponent("config").
			WithContext("option", "randomize_reads")
	}

	if c.Dispatch.Jobs <= 0 {
		return invalid("jobs must be greater than 0")
	}
	if c.Sampling.ReadTimeout <= 0 {
		return invalid("read_timeout must be greater than 0")
	}
	if _, err := sampler.ParseProgressMode(c.Sampling.ProgressMode); err != nil {
		return invalid(err.Error())
	}
	if c.Discovery.MinFileSize < 0 {
		return invalid("min_file_size cannot be negative")
	}
	if c.Report.ProgressInterval < 0 {
		return invalid("progress_interval cannot be negative")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return invalid(fmt.Sprintf("metrics port out of range: %d", c.Metrics.Port))
	}

	if !oneOf(strings.ToUpper(c.Global.LogLevel), validLogLevels) {
		return invalid(fmt.Sprintf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if !oneOf(c.Report.TableFormat, validTableFormats) {
		return invalid(fmt.Sprintf("invalid table_format: %s (must be one of: %s)",
			c.Report.TableFormat, strings.Join(validTableFormats, ", ")))
	}
	if !oneOf(c.Report.Output, validOutputs) {
		return invalid(fmt.Sprintf("invalid output: %s (must be one of: %s)",
			c.Report.Output, strings.Join(validOutputs, ", ")))
	}

	return nil
}

// SamplerConfig converts the sampling section into the sampler's explicit
// configuration value. Call after Validate.
func (c *Configuration) SamplerConfig() sampler.Config {
	mode, _ := sampler.ParseProgressMode(c.Sampling.ProgressMode)
	return sampler.Config{
		MaxReads:     c.Sampling.MaxReads,
		ReadTimeout:  c.Sampling.ReadTimeout,
		ProgressMode: mode,
	}
}

func invalid(msg string) error {
	return errors.NewError(errors.ErrCodeInvalidConfig, msg).WithComponent("config")
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
