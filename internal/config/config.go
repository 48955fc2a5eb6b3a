// Package config loads service settings from the embedded app.yaml, an
// optional override file and the environment.
package config

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/app.yaml
var defaultsFS embed.FS

const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourcePostgres = "postgres"

	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Durable  DurableConfig  `yaml:"durable"`
	Filters  FiltersConfig  `yaml:"filters"`
	Gate     GateConfig     `yaml:"gate"`
	Sessions SessionsConfig `yaml:"sessions"`
	Profile  ProfileConfig  `yaml:"profile"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	Migrate     bool   `yaml:"migrate"`
	SeedIfEmpty bool   `yaml:"seed_if_empty"`
}

type DatasetConfig struct {
	Source string `yaml:"source"` // embedded, file, postgres
	Path   string `yaml:"path,omitempty"`
}

type DurableConfig struct {
	Backend string `yaml:"backend"` // memory, file, postgres
	Dir     string `yaml:"dir,omitempty"`
}

type FiltersConfig struct {
	MaxKeywords int    `yaml:"max_keywords"`
	CurrentKey  string `yaml:"current_key"`
	PresetKey   string `yaml:"preset_key"`
}

type GateConfig struct {
	ActionDelayMS int `yaml:"action_delay_ms"`
	ApplyDelayMS  int `yaml:"apply_delay_ms"`
}

func (g GateConfig) ActionDelay() time.Duration {
	return time.Duration(g.ActionDelayMS) * time.Millisecond
}

func (g GateConfig) ApplyDelay() time.Duration {
	return time.Duration(g.ApplyDelayMS) * time.Millisecond
}

// SessionsConfig bounds the live per-profile sessions kept in memory.
// Evicted sessions resume from durable storage on the next request.
type SessionsConfig struct {
	IdleTTLMinutes       int `yaml:"idle_ttl_minutes"`
	MaxLive              int `yaml:"max_live"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

func (s SessionsConfig) IdleTTL() time.Duration {
	return time.Duration(s.IdleTTLMinutes) * time.Minute
}

func (s SessionsConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

type ProfileConfig struct {
	Secret   string `yaml:"secret"`
	TTLHours int    `yaml:"ttl_hours"`
}

func (p ProfileConfig) TTL() time.Duration {
	return time.Duration(p.TTLHours) * time.Hour
}

// Load reads the embedded defaults, then the file at path when path is not
// empty, then the PORT and CORS_ORIGINS environment overrides. ${VAR}
// references in either file are expanded first.
func Load(path string) (*Config, error) {
	data, err := defaultsFS.ReadFile("config/app.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded config: %w", err)
	}

	var cfg Config
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded config: %w", err)
	}

	if path != "" {
		override, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(override, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

func applyEnv(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Server.Port = port
	}
	if origins := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); origins != "" {
		cfg.Server.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8081"
	}
}

// Validate checks the combinations Load cannot fix up on its own.
func (c *Config) Validate() error {
	switch c.Dataset.Source {
	case SourceEmbedded:
	case SourceFile:
		if c.Dataset.Path == "" {
			return fmt.Errorf("dataset.path is required for the file source")
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres dataset source")
		}
	default:
		return fmt.Errorf("unknown dataset source %q", c.Dataset.Source)
	}

	switch c.Durable.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Durable.Dir == "" {
			return fmt.Errorf("durable.dir is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres durable backend")
		}
	default:
		return fmt.Errorf("unknown durable backend %q", c.Durable.Backend)
	}

	if c.Filters.MaxKeywords < 0 {
		return fmt.Errorf("filters.max_keywords cannot be negative")
	}
	if c.Filters.CurrentKey == "" || c.Filters.PresetKey == "" || c.Filters.CurrentKey == c.Filters.PresetKey {
		return fmt.Errorf("filters.current_key and filters.preset_key must be distinct and non-empty")
	}
	if c.Gate.ActionDelayMS < 0 || c.Gate.ApplyDelayMS < 0 {
		return fmt.Errorf("gate delays cannot be negative")
	}
	if c.Sessions.IdleTTLMinutes < 0 || c.Sessions.MaxLive < 0 {
		return fmt.Errorf("sessions limits cannot be negative")
	}
	if c.Sessions.IdleTTLMinutes > 0 && c.Sessions.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("sessions.sweep_interval_seconds is required when idle_ttl_minutes is set")
	}
	return nil
}

// NeedsDatabase reports whether any configured component uses Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Dataset.Source == SourcePostgres || c.Durable.Backend == BackendPostgres
}
