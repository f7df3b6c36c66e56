package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user directory holding config and history.
const DirName = ".dqcheck"

// Global configuration structure.
type Global struct {
	// Duplicate detection
	DedupeThreshold        int    `mapstructure:"dedupe_threshold" yaml:"dedupe_threshold"`
	DedupeBlockSize        int    `mapstructure:"dedupe_block_size" yaml:"dedupe_block_size"`
	DedupeMinNonNull       int    `mapstructure:"dedupe_min_non_null" yaml:"dedupe_min_non_null"`
	DedupeMaxPairsPerBlock int    `mapstructure:"dedupe_max_pairs_per_block" yaml:"dedupe_max_pairs_per_block"`
	DedupeScorer           string `mapstructure:"dedupe_scorer" yaml:"dedupe_scorer"`

	// Profiling
	OutlierThreshold float64 `mapstructure:"outlier_threshold" yaml:"outlier_threshold"`
	MaxRows          int     `mapstructure:"max_rows" yaml:"max_rows"`

	HistoryDB string `mapstructure:"history_db" yaml:"history_db"`
	ServeAddr string `mapstructure:"serve_addr" yaml:"serve_addr"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// LLM rule suggestion
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	OllamaHost      string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
}

var defaults = map[string]any{
	"dedupe_threshold":           90,
	"dedupe_block_size":          2,
	"dedupe_min_non_null":        1,
	"dedupe_max_pairs_per_block": 50000,
	"dedupe_scorer":              "token_set",
	"outlier_threshold":          3.5,
	"max_rows":                   100000,
	"history_db":                 "",
	"serve_addr":                 "127.0.0.1:8080",
	"log_format":                 "console",
	"api_key":                    "",
	"default_model":              "openai/gpt-4o-mini",
	"default_provider":           "openrouter",
	"ollama_host":                "http://127.0.0.1:11434",
	"http_timeout_sec":           60,
	"retry_max_attempts":         3,
	"retry_base_delay_ms":        500,
	"retry_max_delay_ms":         4000,
}

// Dir returns ~/.dqcheck.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes c to cfgFile, or to ~/.dqcheck/config.yaml when cfgFile is empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DQCHECK")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// The default file is optional.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if c.HistoryDB == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.HistoryDB = filepath.Join(dir, "history.db")
	}
	return &c, nil
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{
		"dedupe_threshold", "dedupe_block_size", "dedupe_min_non_null", "dedupe_max_pairs_per_block", "dedupe_scorer",
		"outlier_threshold", "max_rows", "history_db", "serve_addr", "log_format",
		"api_key", "default_model", "default_provider", "ollama_host",
		"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	}
}

// Get returns the display value of key; the API key is masked.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "dedupe_threshold":
		return strconv.Itoa(c.DedupeThreshold), nil
	case "dedupe_block_size":
		return strconv.Itoa(c.DedupeBlockSize), nil
	case "dedupe_min_non_null":
		return strconv.Itoa(c.DedupeMinNonNull), nil
	case "dedupe_max_pairs_per_block":
		return strconv.Itoa(c.DedupeMaxPairsPerBlock), nil
	case "dedupe_scorer":
		return c.DedupeScorer, nil
	case "outlier_threshold":
		return strconv.FormatFloat(c.OutlierThreshold, 'f', -1, 64), nil
	case "max_rows":
		return strconv.Itoa(c.MaxRows), nil
	case "history_db":
		return c.HistoryDB, nil
	case "serve_addr":
		return c.ServeAddr, nil
	case "log_format":
		return c.LogFormat, nil
	case "api_key":
		return Mask(c.APIKey), nil
	case "default_model":
		return c.DefaultModel, nil
	case "default_provider":
		return c.DefaultProvider, nil
	case "ollama_host":
		return c.OllamaHost, nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set parses and validates val for key.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	switch key {
	case "dedupe_threshold":
		return setInt(&c.DedupeThreshold, key, val, 0, 100)
	case "dedupe_block_size":
		return setInt(&c.DedupeBlockSize, key, val, 1, -1)
	case "dedupe_min_non_null":
		return setInt(&c.DedupeMinNonNull, key, val, 0, -1)
	case "dedupe_max_pairs_per_block":
		return setInt(&c.DedupeMaxPairsPerBlock, key, val, 1, -1)
	case "dedupe_scorer":
		c.DedupeScorer = strings.ToLower(val)
	case "outlier_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid positive float for %s: %q", key, val)
		}
		c.OutlierThreshold = f
	case "max_rows":
		return setInt(&c.MaxRows, key, val, 0, -1)
	case "history_db":
		c.HistoryDB = val
	case "serve_addr":
		c.ServeAddr = val
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "api_key":
		c.APIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch strings.ToLower(val) {
		case "openrouter":
			c.DefaultProvider = "openrouter"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter or ollama)", val)
		}
	case "ollama_host":
		c.OllamaHost = val
	case "http_timeout_sec":
		return setInt(&c.HTTPTimeoutSec, key, val, 1, -1)
	case "retry_max_attempts":
		return setInt(&c.RetryMaxAttempts, key, val, 1, -1)
	case "retry_base_delay_ms":
		return setInt(&c.RetryBaseDelayMs, key, val, 0, -1)
	case "retry_max_delay_ms":
		return setInt(&c.RetryMaxDelayMs, key, val, 0, -1)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// setInt parses val into dst; hi < 0 means unbounded.
func setInt(dst *int, key, val string, lo, hi int) error {
	i, err := strconv.Atoi(val)
	if err != nil || i < lo || (hi >= 0 && i > hi) {
		if hi >= 0 {
			return fmt.Errorf("invalid int for %s: %q (want %d..%d)", key, val, lo, hi)
		}
		return fmt.Errorf("invalid int for %s: %q (want >= %d)", key, val, lo)
	}
	*dst = i
	return nil
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
