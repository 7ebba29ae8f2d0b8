package config

import (
	"fmt"

	corestore "github.com/kilianp07/ers/core/store"
	infrastore "github.com/kilianp07/ers/infra/store"
)

// StoreConfig selects where incidents, vehicles and hospitals live.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "ers.db"
	}
}

// Validate checks the backend name.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
		return nil
	default:
		return fmt.Errorf("store: unknown backend %s", c.Backend)
	}
}

// Open creates the configured store.
func (c StoreConfig) Open() (corestore.Store, error) {
	if c.Backend == "sqlite" {
		return infrastore.NewSQLiteStore(c.Path)
	}
	return infrastore.NewMemoryStore(), nil
}
