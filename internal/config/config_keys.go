// config_keys.go provides key-value access to configuration settings.
//
// Separated from config.go to isolate the key enumeration and string-based
// get/set logic. config.go focuses on YAML structure and loading; this file
// handles the CLI interface where config is accessed by string keys
// (e.g., "compression.level").

package config

import (
	"compress/gzip"
	"fmt"
	"slices"
	"strconv"

	"github.com/dlarsson-se/walback/internal/duration"
)

// ValidKeys returns all valid configuration keys.
func ValidKeys() []string {
	return []string{
		"database", "backup_dir", "prefix", "retention",
		"compression.level",
	}
}

// IsValidKey returns true if the key is a valid configuration key.
func IsValidKey(key string) bool {
	return slices.Contains(ValidKeys(), key)
}

// Get returns the value of a configuration key as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "database":
		return c.Database, nil
	case "backup_dir":
		return c.BackupDir, nil
	case "prefix":
		return c.ArtifactPrefix(), nil
	case "retention":
		if c.Retention == "" {
			return DefaultRetention, nil
		}
		return c.Retention, nil
	case "compression.level":
		return strconv.Itoa(c.CompressionLevel()), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set sets the value of a configuration key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "database":
		c.Database = value
	case "backup_dir":
		c.BackupDir = value
	case "prefix":
		if value == "" {
			return fmt.Errorf("%w: prefix must not be empty", ErrInvalidValue)
		}
		c.Prefix = value
	case "retention":
		if _, err := duration.Parse(value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		c.Retention = value
	case "compression.level":
		n, err := strconv.Atoi(value)
		if err != nil || n < gzip.BestSpeed || n > gzip.BestCompression {
			return fmt.Errorf("%w: compression.level must be an integer 1-9", ErrInvalidValue)
		}
		c.Compression.Level = &n
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// All returns all configuration values as a map.
func (c *Config) All() map[string]string {
	return map[string]string{
		"database":          c.Database,
		"backup_dir":        c.BackupDir,
		"prefix":            c.ArtifactPrefix(),
		"retention":         mustGet(c, "retention"),
		"compression.level": strconv.Itoa(c.CompressionLevel()),
	}
}

func mustGet(c *Config, key string) string {
	v, _ := c.Get(key)
	return v
}
