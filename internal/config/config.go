// Package config loads and validates mathdex configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/mathdex/internal/errors"
)

// DefaultMaxRecordSize is the corpus record size cap in bytes (1MB).
// A record that fills the whole read buffer is treated as truncated
// and dropped rather than partially indexed.
const DefaultMaxRecordSize = 1 << 20

// Config represents the complete mathdex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Corpus  CorpusConfig  `yaml:"corpus" json:"corpus"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PathsConfig configures where index data lives.
type PathsConfig struct {
	// DataDir is the directory holding all backing stores
	// (term index, math index, offset map, blob stores).
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// CorpusConfig configures corpus record handling.
type CorpusConfig struct {
	// MaxRecordSize is the maximum serialized record size in bytes.
	// Records at or above this bound are rejected as likely truncated.
	MaxRecordSize int `yaml:"max_record_size" json:"max_record_size"`
}

// IndexConfig configures the term index and maintenance behavior.
type IndexConfig struct {
	// BatchSize is the number of documents committed per term-index batch.
	// A full batch flush is what surfaces as a maintenance event.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// MaintenanceThrottle is how long ingestion pauses when the term
	// index reports that maintenance ran after a document commit.
	MaintenanceThrottle time.Duration `yaml:"maintenance_throttle" json:"maintenance_throttle"`

	// ParseCacheSize is the LRU capacity for cached TeX parse results.
	ParseCacheSize int `yaml:"parse_cache_size" json:"parse_cache_size"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".mathdex",
		},
		Corpus: CorpusConfig{
			MaxRecordSize: DefaultMaxRecordSize,
		},
		Index: IndexConfig{
			BatchSize:           64,
			MaintenanceThrottle: 2 * time.Second,
			ParseCacheSize:      1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, applying defaults for missing fields.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigNotFound, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "paths.data_dir must not be empty", nil)
	}
	if c.Corpus.MaxRecordSize <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"corpus.max_record_size must be positive, got %d", c.Corpus.MaxRecordSize)
	}
	if c.Index.BatchSize <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Index.MaintenanceThrottle < 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"index.maintenance_throttle must not be negative, got %s", c.Index.MaintenanceThrottle)
	}
	if c.Index.ParseCacheSize <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"index.parse_cache_size must be positive, got %d", c.Index.ParseCacheSize)
	}
	return nil
}

// StorePath returns the path of a named backing store under DataDir.
func (c *Config) StorePath(name string) string {
	return filepath.Join(c.Paths.DataDir, name)
}

// String returns a short human-readable summary, used in startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("data_dir=%s max_record_size=%d batch_size=%d",
		c.Paths.DataDir, c.Corpus.MaxRecordSize, c.Index.BatchSize)
}
