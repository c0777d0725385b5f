// Package config loads and validates the YAML configuration that drives a
// correction run: the provider chain, iteration budget, runner limits, and
// storage locations.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported provider vendors, in the order most chains list them.
const (
	VendorAnthropic = "anthropic"
	VendorOpenAI    = "openai"
	VendorGemini    = "gemini"
	VendorOllama    = "ollama"
)

// Defaults applied where the file is silent.
const (
	DefaultMaxIterations     = 5
	DefaultTestTimeoutSecs   = 120
	DefaultModelTimeoutSecs  = 60
	DefaultStagnationWindow  = 2
	DefaultMinImprovementPct = 1.0
	DefaultDBPath            = "autoqa.db"
)

// ProviderConfig describes one entry in the fallback chain.
type ProviderConfig struct {
	Vendor    string `yaml:"vendor"`
	Model     string `yaml:"model,omitempty"`       // empty uses the vendor default
	APIKeyEnv string `yaml:"api_key_env,omitempty"` // env var holding the key
	Host      string `yaml:"host,omitempty"`        // ollama only
}

// APIKey resolves the provider's API key from the environment.
func (p *ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// StagnationConfig controls early termination when iterations stop helping.
// Disabled by default: a later fix round can recover from a flat stretch,
// so cutting the budget short is opt-in.
type StagnationConfig struct {
	Enabled               bool    `yaml:"enabled"`
	Window                int     `yaml:"window"`
	MinImprovementPercent float64 `yaml:"min_improvement_percent"`
}

// CycleConfig bounds the correction loop.
type CycleConfig struct {
	MaxIterations int              `yaml:"max_iterations"`
	Stagnation    StagnationConfig `yaml:"stagnation"`
}

// RunnerConfig bounds test execution.
type RunnerConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Workdir        string `yaml:"workdir,omitempty"` // empty uses a temp dir
}

// Timeout returns the test timeout as a duration.
func (r *RunnerConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// LLMConfig bounds provider calls across the whole chain.
type LLMConfig struct {
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// CallTimeout returns the per-provider call timeout as a duration.
func (l *LLMConfig) CallTimeout() time.Duration {
	return time.Duration(l.CallTimeoutSeconds) * time.Second
}

// StorageConfig locates the audit database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// MetricsConfig controls the Prometheus endpoint and query source.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddr    string `yaml:"listen_addr,omitempty"`
	PrometheusURL string `yaml:"prometheus_url,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	LLM       LLMConfig        `yaml:"llm"`
	Cycle     CycleConfig      `yaml:"cycle"`
	Runner    RunnerConfig     `yaml:"runner"`
	Storage   StorageConfig    `yaml:"storage"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document from bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Cycle.MaxIterations == 0 {
		c.Cycle.MaxIterations = DefaultMaxIterations
	}
	if c.Cycle.Stagnation.Window == 0 {
		c.Cycle.Stagnation.Window = DefaultStagnationWindow
	}
	if c.Cycle.Stagnation.MinImprovementPercent == 0 {
		c.Cycle.Stagnation.MinImprovementPercent = DefaultMinImprovementPct
	}
	if c.Runner.TimeoutSeconds == 0 {
		c.Runner.TimeoutSeconds = DefaultTestTimeoutSecs
	}
	if c.LLM.CallTimeoutSeconds == 0 {
		c.LLM.CallTimeoutSeconds = DefaultModelTimeoutSecs
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = DefaultDBPath
	}
}

// Validate rejects configurations that cannot produce a working run.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	for i, p := range c.Providers {
		switch p.Vendor {
		case VendorAnthropic, VendorOpenAI, VendorGemini:
			if p.APIKeyEnv == "" {
				return fmt.Errorf("provider %d (%s): api_key_env is required", i, p.Vendor)
			}
		case VendorOllama:
			// Local, no key.
		default:
			return fmt.Errorf("provider %d: unknown vendor %q", i, p.Vendor)
		}
	}
	if c.Cycle.MaxIterations < 1 {
		return fmt.Errorf("cycle.max_iterations must be at least 1")
	}
	if c.Cycle.Stagnation.Window < 1 {
		return fmt.Errorf("cycle.stagnation.window must be at least 1")
	}
	if c.Runner.TimeoutSeconds < 1 {
		return fmt.Errorf("runner.timeout_seconds must be at least 1")
	}
	if c.LLM.CallTimeoutSeconds < 1 {
		return fmt.Errorf("llm.call_timeout_seconds must be at least 1")
	}
	return nil
}
