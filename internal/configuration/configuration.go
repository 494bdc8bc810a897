package configuration

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. EXAMSCORE_CACHE_TTL.
const EnvPrefix = "EXAMSCORE"

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Logger      LoggerConfig      `mapstructure:"logger"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Validation  ValidationConfig  `mapstructure:"validation"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Journal     JournalConfig     `mapstructure:"journal"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level: debug, info, warn, warning, error. Case-insensitive.
	Level string `mapstructure:"level"`
	// File: optional log file, rotated by size. Logs go to stderr when empty.
	File string `mapstructure:"file"`
}

// CacheConfig defines the validation cache policy.
type CacheConfig struct {
	// TTL: maximum age of a cached result, e.g. "5m".
	TTL time.Duration `mapstructure:"ttl"`
	// MaxSize: number of cached results after which the cache is flushed.
	MaxSize int `mapstructure:"max_size"`
	// CleanupInterval: period of the in-memory janitor. Zero disables it.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ValidationConfig defines score limits and optional custom rules.
type ValidationConfig struct {
	// Rules: optional path to a YAML rule file. Built-in rules are used when empty.
	Rules        string  `mapstructure:"rules"`
	MaxComponent float64 `mapstructure:"max_component"`
	MaxAggregate float64 `mapstructure:"max_aggregate"`
	// Decimals: number of fractional digits of percentages.
	Decimals int `mapstructure:"decimals"`
}

// CategoryConfig groups subjects under one chart category.
type CategoryConfig struct {
	Name     string   `mapstructure:"name"`
	Subjects []string `mapstructure:"subjects"`
}

// AggregationConfig defines how subjects are grouped in the outer chart.
type AggregationConfig struct {
	Categories []CategoryConfig `mapstructure:"categories"`
}

// JournalConfig defines the validation journal.
type JournalConfig struct {
	// File: journal file path (optional).
	File string `mapstructure:"file"`
	// Size: maximal journal file size in megabytes (default 100).
	Size int `mapstructure:"size"`
	// Amount: number of rotated journal files (default 20).
	Amount int `mapstructure:"amount"`
}

// Validate checks the correctness of the entire application configuration
// and returns the first detected error.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if err := c.Validation.Validate(); err != nil {
		return err
	}

	if err := c.Aggregation.Validate(); err != nil {
		return err
	}

	return c.Journal.Validate()
}

// Validate checks that the log level is one of the supported values.
func (l *LoggerConfig) Validate() error {
	if l.Level == "" {
		return errors.New("logger.level: must be specified")
	}

	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}

	return nil
}

func (c *CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return errors.New("cache.ttl: must be positive")
	}

	if c.MaxSize < 1 {
		return errors.New("cache.max_size: must be at least 1")
	}

	if c.CleanupInterval < 0 {
		return errors.New("cache.cleanup_interval: must not be negative")
	}

	return nil
}

func (v *ValidationConfig) Validate() error {
	if v.MaxComponent <= 0 {
		return errors.New("validation.max_component: must be positive")
	}

	if v.MaxAggregate < v.MaxComponent {
		return errors.New("validation.max_aggregate: must not be less than max_component")
	}

	if v.Decimals < 0 || v.Decimals > 10 {
		return fmt.Errorf("validation.decimals: %d is out of range [0, 10]", v.Decimals)
	}

	return nil
}

// Validate rejects unnamed categories and subjects listed twice.
func (a *AggregationConfig) Validate() error {
	seen := make(map[string]string)
	for i, c := range a.Categories {
		if c.Name == "" {
			return fmt.Errorf("aggregation.categories[%d].name: must be specified", i)
		}
		for _, s := range c.Subjects {
			if other, ok := seen[s]; ok {
				return fmt.Errorf("aggregation.categories: subject '%s' belongs to both '%s' and '%s'", s, other, c.Name)
			}
			seen[s] = c.Name
		}
	}

	return nil
}

// Subjects returns the subject to category mapping.
func (a *AggregationConfig) Subjects() map[string]string {
	m := make(map[string]string)
	for _, c := range a.Categories {
		for _, s := range c.Subjects {
			m[s] = c.Name
		}
	}
	return m
}

// Validate journal parameters
func (d *JournalConfig) Validate() error {
	if d.Amount == 0 {
		d.Amount = 20
	}

	if d.Size == 0 {
		d.Size = 100
	}

	if d.Amount < 0 || d.Size < 0 {
		return errors.New("journal: size and amount must not be negative")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.file", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.cleanup_interval", time.Minute)
	v.SetDefault("validation.rules", "")
	v.SetDefault("validation.max_component", 100.0)
	v.SetDefault("validation.max_aggregate", 1000.0)
	v.SetDefault("validation.decimals", 2)
	v.SetDefault("journal.file", "")
	v.SetDefault("journal.size", 100)
	v.SetDefault("journal.amount", 20)
}

// LoadConfig loads configuration from the YAML file at configPath using Viper.
// An empty path uses defaults only. Environment variables prefixed with
// EXAMSCORE_ override file values, with dots replaced by underscores
// (EXAMSCORE_CACHE_MAX_SIZE overrides cache.max_size).
//
// Returns an error if the file cannot be read, has an invalid format, or one
// of the sections fails validation.
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
