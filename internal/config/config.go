// Package config loads chatindex configuration.
//
// Values come from hardcoded defaults, then an optional YAML file, then
// CHATINDEX_* environment variables. Command-line flags are applied by the
// caller on top of the returned Config.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/chatindex/internal/language"
	"github.com/fyrsmithlabs/chatindex/internal/store"
)

// Config holds the chatindex configuration.
//
// Sections owned by packages that depend on config (logging, telemetry,
// keywords) are not typed here; read them with Section.
type Config struct {
	Index    IndexConfig     `koanf:"index"`
	Store    store.Options   `koanf:"store"`
	Language language.Config `koanf:"language"`
	Search   SearchConfig    `koanf:"search"`
	Server   ServerConfig    `koanf:"server"`
	MCP      MCPConfig       `koanf:"mcp"`
	Watch    WatchConfig     `koanf:"watch"`
	Secrets  SecretsConfig   `koanf:"secrets"`

	k *koanf.Koanf
}

// IndexConfig controls where the index lives and how it is built.
type IndexConfig struct {
	DBPath     string `koanf:"db_path"`
	ExportPath string `koanf:"export_path"`
	BatchSize  int    `koanf:"batch_size"` // conversations per transaction
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultLimit int `koanf:"default_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// SearchRate is the sustained search requests per second; 0 disables limiting.
	SearchRate  float64 `koanf:"search_rate"`
	SearchBurst int     `koanf:"search_burst"`

	// AuthToken, when set, is required as a bearer token on /api/v1.
	AuthToken Secret `koanf:"auth_token"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	MaxLimit int `koanf:"max_limit"`
}

// WatchConfig holds export watcher configuration.
type WatchConfig struct {
	Debounce Duration `koanf:"debounce"`
}

// SecretsConfig controls secret scrubbing of message text before indexing.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Section unmarshals the raw values under key into out. Fields of out that
// are absent from the loaded sources keep their current values, so callers
// pass a struct pre-filled with their package defaults.
func (c *Config) Section(key string, out any) error {
	if c == nil || c.k == nil {
		return nil
	}
	if err := c.k.UnmarshalWithConf(key, out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("reading %s config: %w", key, err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Index.DBPath == "" {
		return errors.New("index.db_path is required")
	}
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("index.batch_size must be >= 1, got %d", c.Index.BatchSize)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Language.Validate(); err != nil {
		return fmt.Errorf("language: %w", err)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be >= 1, got %d", c.Search.DefaultLimit)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	if c.Server.SearchRate < 0 {
		return errors.New("server.search_rate must be >= 0")
	}
	if c.Server.SearchRate > 0 && c.Server.SearchBurst < 1 {
		return errors.New("server.search_burst must be >= 1 when search_rate is set")
	}
	if c.MCP.MaxLimit < 1 {
		return fmt.Errorf("mcp.max_limit must be >= 1, got %d", c.MCP.MaxLimit)
	}
	if c.Watch.Debounce <= 0 {
		return errors.New("watch.debounce must be positive")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Index.DBPath == "" {
		cfg.Index.DBPath = "~/.chatindex/index.db"
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 100
	}

	def := store.DefaultOptions()
	if cfg.Store.CacheSizeKB == 0 {
		cfg.Store.CacheSizeKB = def.CacheSizeKB
	}
	if cfg.Store.Synchronous == "" {
		cfg.Store.Synchronous = def.Synchronous
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = def.BusyTimeout
	}

	lang := language.NewDefaultConfig()
	if cfg.Language.Detector == "" {
		cfg.Language.Detector = lang.Detector
	}
	if cfg.Language.MinLength == 0 {
		cfg.Language.MinLength = lang.MinLength
	}
	if cfg.Language.MinConfidence == 0 {
		cfg.Language.MinConfidence = lang.MinConfidence
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.SearchRate == 0 && cfg.Server.SearchBurst == 0 {
		cfg.Server.SearchRate = 10
		cfg.Server.SearchBurst = 20
	}

	if cfg.MCP.MaxLimit == 0 {
		cfg.MCP.MaxLimit = 100
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(2 * time.Second)
	}
}
