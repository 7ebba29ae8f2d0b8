// Package config loads the service configuration from a YAML or JSON file,
// an optional .env file and K_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/ers/core/dispatch"
	"github.com/kilianp07/ers/core/metrics"
	"github.com/kilianp07/ers/core/simulation"
	"github.com/kilianp07/ers/infra/mqtt"
	"github.com/kilianp07/ers/infra/redis"
	"github.com/kilianp07/ers/infra/routing"
)

// EnvFileVar names the variable that points at an alternative .env file.
const EnvFileVar = "ERS_ENV_FILE"

type Config struct {
	LogLevel   string            `json:"log_level"`
	HTTP       HTTPConfig        `json:"http"`
	Store      StoreConfig       `json:"store"`
	Dispatch   dispatch.Config   `json:"dispatch"`
	Simulation simulation.Config `json:"simulation"`
	Routing    routing.Config    `json:"routing"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Redis      redis.Config      `json:"redis"`
	Metrics    metrics.Config    `json:"metrics"`
	Logging    LoggingConfig     `json:"logging"`
	Sentry     SentryConfig      `json:"sentry"`
	Seed       SeedConfig        `json:"seed"`
}

// SeedConfig points at the fixtures loaded at startup.
type SeedConfig struct {
	File string `json:"file"`
}

// Load reads path (when set), then .env and environment overrides, applies
// defaults and validates every section.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// loadDotEnv loads .env (or $ERS_ENV_FILE) without overriding variables
// already set. A missing default file is not an error.
func loadDotEnv() error {
	path := os.Getenv(EnvFileVar)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// SetDefaults fills unset fields in every section.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.HTTP.SetDefaults()
	c.Store.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Simulation.SetDefaults()
	c.Logging.SetDefaults()
	if c.Routing.Enabled() {
		c.Routing.SetDefaults()
	}
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
	if c.Redis.Enabled() {
		c.Redis.SetDefaults()
	}
}

type check struct {
	name string
	fn   func() error
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []check{
		{"http", c.HTTP.Validate},
		{"store", c.Store.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"simulation", c.Simulation.Validate},
		{"logging", c.Logging.Validate},
	}
	if c.Routing.Enabled() {
		checks = append(checks, check{"routing", c.Routing.Validate})
	}
	if c.MQTT.Enabled() {
		checks = append(checks, check{"mqtt", c.MQTT.Validate})
	}
	if c.Redis.Enabled() {
		checks = append(checks, check{"redis", c.Redis.Validate})
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("config %s: %w", ch.name, err)
		}
	}
	return nil
}
