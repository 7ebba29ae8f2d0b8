package config

import (
	"fmt"

	"github.com/kilianp07/ers/core/dispatch/logging"
)

// LoggingConfig defines settings for the dispatch journal and its rotation.
type LoggingConfig struct {
	// Backend selects the journal type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the journal.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "dispatch_log.db"
		default:
			c.Path = "dispatch.log"
		}
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("logging: unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("logging: path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging: rotation limits cannot be negative")
	}
	return nil
}

// Open creates the configured journal.
func (c LoggingConfig) Open() (logging.LogStore, error) {
	return logging.Open(c.Backend, c.Path, logging.Rotation{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	})
}
