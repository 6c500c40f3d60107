// File: internal/config/config.go
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is constructed once
// at process start and passed explicitly; nothing in the pipeline reads
// ambient global state.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Providers    []ProviderSpec     `mapstructure:"providers" yaml:"providers"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	Redaction    RedactionConfig    `mapstructure:"redaction" yaml:"redaction"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// Provider identifies a supported AI provider wire format.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// ProviderSpec is the immutable per-provider configuration. Ordering by
// ascending Priority defines the fallback sequence; ties keep registration
// order. The spec never carries the credential itself, only the name of the
// environment variable it is resolved from.
type ProviderSpec struct {
	Name          string        `mapstructure:"name" yaml:"name"`
	Provider      Provider      `mapstructure:"provider" yaml:"provider"`
	Model         string        `mapstructure:"model" yaml:"model"`
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint"`
	CredentialEnv string        `mapstructure:"credential_env" yaml:"credential_env"`
	MaxTokens     int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Priority      int           `mapstructure:"priority" yaml:"priority"`
	// RateLimit is requests per second toward this provider; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// FallbackStrategy governs provider try-order on failure.
type FallbackStrategy string

const (
	StrategyPriority   FallbackStrategy = "priority"
	StrategyRoundRobin FallbackStrategy = "round_robin"
	StrategyFailFast   FallbackStrategy = "fail_fast"
)

// OrchestratorConfig bounds a single analysis invocation.
type OrchestratorConfig struct {
	FallbackStrategy FallbackStrategy `mapstructure:"fallback_strategy" yaml:"fallback_strategy"`
	// GlobalTimeout bounds the whole provider sequence regardless of how
	// many providers are tried.
	GlobalTimeout time.Duration `mapstructure:"global_timeout" yaml:"global_timeout"`
	// MaxRetries is the per-provider retry budget for retryable outcomes.
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

// CacheConfig configures the host-local result cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir        string        `mapstructure:"dir" yaml:"dir"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries"`
}

// RedactionConfig tunes the sanitization engine. CustomPatterns and
// PatternFile let an organization add pattern classes without code changes.
type RedactionConfig struct {
	RedactFilePaths bool     `mapstructure:"redact_file_paths" yaml:"redact_file_paths"`
	RedactURLs      bool     `mapstructure:"redact_urls" yaml:"redact_urls"`
	CustomPatterns  []string `mapstructure:"custom_patterns" yaml:"custom_patterns"`
	PatternFile     string   `mapstructure:"pattern_file" yaml:"pattern_file"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "buildmedic")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Orchestrator --
	v.SetDefault("orchestrator.fallback_strategy", string(StrategyPriority))
	v.SetDefault("orchestrator.global_timeout", "120s")
	v.SetDefault("orchestrator.max_retries", 2)
	v.SetDefault("orchestrator.initial_backoff", "1s")
	v.SetDefault("orchestrator.max_backoff", "30s")

	// -- Cache --
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_entries", 200)

	// -- Redaction --
	v.SetDefault("redaction.redact_file_paths", true)
	v.SetDefault("redaction.redact_urls", true)
}

// NewDefaultConfig creates a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with pure defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object
// and validates it.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q invalid: %w", p.Name, err)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	switch c.Orchestrator.FallbackStrategy {
	case StrategyPriority, StrategyRoundRobin, StrategyFailFast:
	default:
		return fmt.Errorf("unknown fallback_strategy %q", c.Orchestrator.FallbackStrategy)
	}
	if c.Orchestrator.GlobalTimeout <= 0 {
		return fmt.Errorf("orchestrator.global_timeout must be positive")
	}
	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator.max_retries must not be negative")
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
		}
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache.max_entries must be positive when the cache is enabled")
		}
	}
	return nil
}

// Validate checks a single provider spec.
func (p *ProviderSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch p.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider kind %q (supported: %s, %s, %s)",
			p.Provider, ProviderOpenAI, ProviderAnthropic, ProviderGemini)
	}
	if p.Model == "" {
		return fmt.Errorf("model is required")
	}
	if p.CredentialEnv == "" {
		return fmt.Errorf("credential_env is required")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// OrderedProviders returns the provider specs sorted by ascending priority,
// ties broken by registration order. The receiver's slice is not modified.
func (c *Config) OrderedProviders() []ProviderSpec {
	ordered := make([]ProviderSpec, len(c.Providers))
	copy(ordered, c.Providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}
