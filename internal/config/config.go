// Package config loads and validates sdex configuration.
//
// Configuration sources, in priority order:
//  1. Environment variables (SDEX_*)
//  2. Config file (sdex.yaml in the data directory, or an explicit path)
//  3. Built-in defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
)

// Config represents the complete sdex configuration.
type Config struct {
	// DataDir is the directory holding the raw dataset files (*.jsonl).
	DataDir string `yaml:"data_dir"`

	// IndexPath is the path of the active index database.
	IndexPath string `yaml:"index_path"`

	// ChangelogPath is the path of the changelog database.
	ChangelogPath string `yaml:"changelog_path"`

	Search  SearchConfig  `yaml:"search"`
	Index   IndexConfig   `yaml:"index"`
	Logging LoggingConfig `yaml:"logging"`
}

// SearchConfig configures query evaluation.
type SearchConfig struct {
	// MaxResults is the default top-K result limit.
	MaxResults int `yaml:"max_results"`

	// PreferredLanguage selects the primary display name language.
	// English is always the fallback and the secondary name.
	PreferredLanguage string `yaml:"preferred_language"`
}

// IndexConfig configures index building.
type IndexConfig struct {
	// MaxPrefixLength bounds how long the emitted name prefixes get.
	// Longer query terms fall back to range scans on the token table.
	MaxPrefixLength int `yaml:"max_prefix_length"`

	// MinTokenLength is the minimum token length to index.
	MinTokenLength int `yaml:"min_token_length"`

	// BatchSize is the number of rows per insert transaction batch.
	BatchSize int `yaml:"batch_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	base := filepath.Join(home, ".sdex")

	return &Config{
		DataDir:       filepath.Join(base, "sde"),
		IndexPath:     filepath.Join(base, "index.db"),
		ChangelogPath: filepath.Join(base, "changelog.db"),
		Search: SearchConfig{
			MaxResults:        50,
			PreferredLanguage: "zh",
		},
		Index: IndexConfig{
			MaxPrefixLength: 16,
			MinTokenLength:  2,
			BatchSize:       1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults
// when the file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, sdexerrors.New(sdexerrors.ErrCodeConfigNotFound, "cannot read config file: "+path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, sdexerrors.ConfigError("invalid config file: "+path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants and fills zero values with defaults.
func (c *Config) Validate() error {
	def := Default()

	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = def.Search.MaxResults
	}
	if c.Search.PreferredLanguage == "" {
		c.Search.PreferredLanguage = def.Search.PreferredLanguage
	}
	if c.Index.MaxPrefixLength <= 0 {
		c.Index.MaxPrefixLength = def.Index.MaxPrefixLength
	}
	if c.Index.MinTokenLength <= 0 {
		c.Index.MinTokenLength = def.Index.MinTokenLength
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = def.Index.BatchSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}

	if c.Index.MinTokenLength > c.Index.MaxPrefixLength {
		return sdexerrors.Newf(sdexerrors.ErrCodeConfigInvalid,
			"min_token_length (%d) exceeds max_prefix_length (%d)",
			c.Index.MinTokenLength, c.Index.MaxPrefixLength)
	}
	if c.IndexPath == "" {
		return sdexerrors.New(sdexerrors.ErrCodeConfigInvalid, "index_path must not be empty", nil)
	}
	if c.ChangelogPath == "" {
		return sdexerrors.New(sdexerrors.ErrCodeConfigInvalid, "changelog_path must not be empty", nil)
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return sdexerrors.ConfigError("cannot marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sdexerrors.ConfigError("cannot create config directory", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies SDEX_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SDEX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SDEX_INDEX_PATH"); v != "" {
		cfg.IndexPath = v
	}
	if v := os.Getenv("SDEX_CHANGELOG_PATH"); v != "" {
		cfg.ChangelogPath = v
	}
	if v := os.Getenv("SDEX_PREFERRED_LANGUAGE"); v != "" {
		cfg.Search.PreferredLanguage = v
	}
	if v := os.Getenv("SDEX_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Search.MaxResults = n
		}
	}
	if v := os.Getenv("SDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
