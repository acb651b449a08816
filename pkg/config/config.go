// Package config provides configuration file support for managedfiles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/logging"
)

// Supported storage backends.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// DefaultTTL is how long a freshly managed file is protected from sweeping.
const DefaultTTL = 2 * time.Hour

// Config represents the managedfiles configuration.
type Config struct {
	Backend    string        `yaml:"backend"`
	DefaultTTL string        `yaml:"default_ttl"`
	FilesDir   string        `yaml:"files_dir,omitempty"`
	CacheSize  int           `yaml:"cache_size"`
	Sweep      SweepConfig   `yaml:"sweep"`
	Logging    LoggingConfig `yaml:"logging"`
	Metrics    MetricsConfig `yaml:"metrics"`
}

// SweepConfig configures the reaper.
type SweepConfig struct {
	PageSize int `yaml:"page_size"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend:    BackendBadger,
		DefaultTTL: DefaultTTL.String(),
		CacheSize:  1024,
		Sweep: SweepConfig{
			PageSize: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// Path returns the config file location under a managedfiles home.
func Path(root string) string {
	return filepath.Join(root, ".mfiles", "config.yaml")
}

// Load loads configuration from .mfiles/config.yaml.
// Returns default config if file doesn't exist.
func Load(root string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(root))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to .mfiles/config.yaml.
func Save(root string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfgPath := Path(root)

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// TTL returns the parsed default TTL.
func (c *Config) TTL() time.Duration {
	d, err := time.ParseDuration(c.DefaultTTL)
	if err != nil {
		return DefaultTTL
	}
	return d
}

// Validate checks every field for a usable value.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBadger, BackendBolt, BackendMemory:
	default:
		return errclass.ErrConfigInvalid.WithMessagef("unknown backend %q", c.Backend)
	}
	d, err := time.ParseDuration(c.DefaultTTL)
	if err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("default_ttl: %v", err)
	}
	if d <= 0 {
		return errclass.ErrConfigInvalid.WithMessage("default_ttl must be positive")
	}
	if c.Sweep.PageSize <= 0 {
		return errclass.ErrConfigInvalid.WithMessage("sweep.page_size must be positive")
	}
	if c.CacheSize < 0 {
		return errclass.ErrConfigInvalid.WithMessage("cache_size must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("logging.level: %v", err)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatText:
	default:
		return errclass.ErrConfigInvalid.WithMessagef("logging.format must be json or text: %q", c.Logging.Format)
	}
	return nil
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errclass.ErrConfigInvalid.WithMessagef("not an integer: %q", v)
			}
			*p(c) = n
			return nil
		},
	}
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

var fields = map[string]field{
	"backend":         stringField(func(c *Config) *string { return &c.Backend }),
	"default_ttl":     stringField(func(c *Config) *string { return &c.DefaultTTL }),
	"files_dir":       stringField(func(c *Config) *string { return &c.FilesDir }),
	"cache_size":      intField(func(c *Config) *int { return &c.CacheSize }),
	"sweep.page_size": intField(func(c *Config) *int { return &c.Sweep.PageSize }),
	"logging.level":   stringField(func(c *Config) *string { return &c.Logging.Level }),
	"logging.format":  stringField(func(c *Config) *string { return &c.Logging.Format }),
	"metrics.addr":    stringField(func(c *Config) *string { return &c.Metrics.Addr }),
}

// Keys lists every settable key in sorted order.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the string form of a config key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", errclass.ErrConfigInvalid.WithMessagef("unknown key %q", key)
	}
	return f.get(c), nil
}

// Set assigns a config key and validates the result. On failure the
// config is left unchanged.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return errclass.ErrConfigInvalid.WithMessagef("unknown key %q", key)
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
