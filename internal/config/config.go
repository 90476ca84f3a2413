package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/guestjs/internal/cache"
)

// Config holds all guest configuration.
type Config struct {
	Project ProjectConfig
	Cache   CacheConfig
	Runtime RuntimeConfig
	Logging LogConfig
}

// ProjectConfig locates the project tree.
type ProjectConfig struct {
	Root          string `envconfig:"GUESTJS_ROOT" default:"."`
	DependencyDir string `envconfig:"GUESTJS_DEP_DIR" default:"node_modules"`
	Manifest      string `envconfig:"GUESTJS_MANIFEST"`
}

// CacheConfig selects the artifact cache.
type CacheConfig struct {
	Mode string `envconfig:"GUESTJS_CACHE" default:"memory"`
	Dir  string `envconfig:"GUESTJS_CACHE_DIR" default:".guestjs/cache"`
}

// RuntimeConfig tunes every runtime created by the guest.
type RuntimeConfig struct {
	CallTimeout  time.Duration `envconfig:"GUESTJS_CALL_TIMEOUT" default:"0s"`
	MaxCallStack int           `envconfig:"GUESTJS_MAX_CALL_STACK" default:"0"`
	Console      bool          `envconfig:"GUESTJS_CONSOLE" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Root:          ".",
			DependencyDir: "node_modules",
		},
		Cache: CacheConfig{
			Mode: cache.ModeMemory,
			Dir:  ".guestjs/cache",
		},
		Runtime: RuntimeConfig{
			Console: true,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Project.Root == "" {
		errs = append(errs, errors.New("project root is empty"))
	}
	switch c.Cache.Mode {
	case cache.ModeNone, cache.ModeMemory:
	case cache.ModeDisk:
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("disk cache requires GUESTJS_CACHE_DIR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache mode %q", c.Cache.Mode))
	}
	if c.Runtime.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative call timeout %s", c.Runtime.CallTimeout))
	}
	if c.Runtime.MaxCallStack < 0 {
		errs = append(errs, fmt.Errorf("negative call stack limit %d", c.Runtime.MaxCallStack))
	}

	return errors.Join(errs...)
}
