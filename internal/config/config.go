// Package config provides reading and writing of walback configuration.
// Supports both global (~/.walback/config.yaml) and local (.walback/config.yaml),
// plus an explicit path for scheduler deployments.
// Reading: explicit path if given, else local if it exists, otherwise global.
// Writing: goes back to where the config was read from.
package config

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dlarsson-se/walback/internal/duration"
)

var (
	// ErrNoConfigPath is returned when the config path cannot be determined.
	ErrNoConfigPath = errors.New("cannot determine config path")
	// ErrUnknownKey is returned when getting/setting an unknown config key.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = errors.New("invalid config value")
)

// Scope represents the configuration scope (global or local).
type Scope int

const (
	// ScopeGlobal is user-wide config in ~/.walback/config.yaml (default)
	ScopeGlobal Scope = iota
	// ScopeLocal is deployment-specific config in .walback/config.yaml
	ScopeLocal
	// ScopeExplicit is a config file named on the command line
	ScopeExplicit
)

// Compression holds compression-related configuration options.
type Compression struct {
	Level *int `yaml:"level,omitempty"`
}

// Defaults applied when not configured.
const (
	DefaultPrefix    = "database"
	DefaultRetention = "90d"
)

// Config contains configuration for walback.
type Config struct {
	Database    string      `yaml:"database,omitempty"`
	BackupDir   string      `yaml:"backup_dir,omitempty"`
	Prefix      string      `yaml:"prefix,omitempty"`
	Retention   string      `yaml:"retention,omitempty"`
	Compression Compression `yaml:"compression,omitempty"`

	// path is the file this config was loaded from (for Save)
	path  string
	scope Scope
}

// Validate checks that all configured values are within acceptable bounds.
// Returns nil if all values are valid or not set (defaults will be used).
func (c *Config) Validate() error {
	if c.Retention != "" {
		if _, err := duration.Parse(c.Retention); err != nil {
			return fmt.Errorf("%w: retention: %v", ErrInvalidValue, err)
		}
	}
	if c.Compression.Level != nil {
		v := *c.Compression.Level
		if v < gzip.BestSpeed || v > gzip.BestCompression {
			return fmt.Errorf("%w: compression.level must be between %d and %d, got %d",
				ErrInvalidValue, gzip.BestSpeed, gzip.BestCompression, v)
		}
	}
	return nil
}

// RetentionWindow returns the parsed retention window (defaults to 90 days).
func (c *Config) RetentionWindow() time.Duration {
	s := c.Retention
	if s == "" {
		s = DefaultRetention
	}
	d, err := duration.Parse(s)
	if err != nil {
		// Validate rejects malformed values on load; this covers the
		// zero Config used before any file exists.
		d, _ = duration.Parse(DefaultRetention)
	}
	return d
}

// ArtifactPrefix returns the artifact name prefix (defaults to "database",
// matching the names the original cron job produced).
func (c *Config) ArtifactPrefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

// CompressionLevel returns the gzip level (defaults to 6).
func (c *Config) CompressionLevel() int {
	if c.Compression.Level == nil {
		return 6
	}
	return *c.Compression.Level
}

// LocalPath returns the path to the local (deployment) config file.
func LocalPath() string {
	return filepath.Join(".walback", "config.yaml")
}

// GlobalPath returns the path to the global (user) config file: ~/.walback/config.yaml
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".walback", "config.yaml")
}

// Load reads configuration: explicit path if non-empty, else local if it
// exists, otherwise global.
func Load(explicit string) (*Config, error) {
	if explicit != "" {
		return loadPath(explicit, ScopeExplicit)
	}
	if _, err := os.Stat(LocalPath()); err == nil {
		return LoadScope(ScopeLocal)
	}
	return LoadScope(ScopeGlobal)
}

// LoadScope reads configuration from a specific scope.
func LoadScope(scope Scope) (*Config, error) {
	path := pathForScope(scope)
	if path == "" {
		return &Config{scope: scope}, nil
	}
	return loadPath(path, scope)
}

func loadPath(path string, scope Scope) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if scope == ScopeExplicit {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return &Config{path: path, scope: scope}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w\n\nTo fix: edit the file to correct the YAML syntax, or delete it to use defaults", path, err)
	}
	cfg.path = path
	cfg.scope = scope

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Scope returns which scope this config was loaded from.
func (c *Config) Scope() Scope {
	return c.scope
}

// Save writes the configuration to its original location.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = pathForScope(c.scope)
	}
	if c.path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(c.path)
}

// SaveScope writes the configuration to the specified scope.
func (c *Config) SaveScope(scope Scope) error {
	path := pathForScope(scope)
	if path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(path)
}

// saveToPath writes configuration to a specific filesystem path.
// Creates parent directories as needed with mode 0755.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// pathForScope returns the filesystem path for a given scope.
func pathForScope(scope Scope) string {
	switch scope {
	case ScopeLocal:
		return LocalPath()
	case ScopeGlobal:
		return GlobalPath()
	default:
		return ""
	}
}
