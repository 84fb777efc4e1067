// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (SHOPQUERY_ prefix, runtime override)
//  2. Config file (./shopquery.yaml or the path given to Load)
//  3. Default values
//
// Sensitive values (database passwords, API keys) never appear in logs;
// validation uses sentinel errors checkable with errors.Is().
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidPostgresDSN indicates the PostgreSQL DSN is malformed.
	ErrInvalidPostgresDSN = errors.New("invalid postgres dsn")

	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidPlanBound indicates the re-planning bound is out of range.
	ErrInvalidPlanBound = errors.New("invalid plan iteration bound")
)

// Model provider identifiers used in Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none" // model-free: keyword routing, rule planning, extractive synthesis
)

// Config stores application configuration.
type Config struct {
	// Model provider configuration.
	Provider    string  `mapstructure:"provider"`
	ModelName   string  `mapstructure:"model_name"`
	Temperature float64 `mapstructure:"temperature"`

	// Storage. An empty DSN selects the in-memory stores.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// Server.
	Addr string `mapstructure:"addr"`

	// Turn execution.
	MaxPlanIterations int           `mapstructure:"max_plan_iterations"`
	ExecuteBudget     time.Duration `mapstructure:"execute_budget"`

	// Logging.
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// PromptFile optionally overrides the built-in prompt templates.
	PromptFile string `mapstructure:"prompt_file"`
}

// Load reads configuration from defaults, an optional YAML file and
// SHOPQUERY_* environment variables. path may be empty to use the default
// search locations.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHOPQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shopquery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.shopquery")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file is fine; defaults plus env carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderNone)
	v.SetDefault("model_name", "")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("addr", ":8080")
	v.SetDefault("max_plan_iterations", 3)
	v.SetDefault("execute_budget", 20*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("prompt_file", "")
}

// Validate checks configuration values, returning sentinel errors.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderNone:
	default:
		return fmt.Errorf("%w: %q (want openai, anthropic or none)", ErrInvalidProvider, c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.Addr == "" || !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidAddr, c.Addr)
	}
	if c.MaxPlanIterations < 1 || c.MaxPlanIterations > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidPlanBound, c.MaxPlanIterations)
	}
	if c.PostgresDSN != "" && !strings.HasPrefix(c.PostgresDSN, "postgres://") && !strings.HasPrefix(c.PostgresDSN, "postgresql://") {
		return fmt.Errorf("%w: must start with postgres://", ErrInvalidPostgresDSN)
	}
	return nil
}
