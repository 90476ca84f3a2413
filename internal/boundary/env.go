package boundary

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/bridge"
	"github.com/GriffinCanCode/guestjs/internal/cache"
	"github.com/GriffinCanCode/guestjs/internal/config"
	"github.com/GriffinCanCode/guestjs/internal/loader"
	"github.com/GriffinCanCode/guestjs/internal/logging"
	"github.com/GriffinCanCode/guestjs/internal/monitoring"
	"github.com/GriffinCanCode/guestjs/internal/resolver"
	"github.com/GriffinCanCode/guestjs/internal/transform"
)

// Environment holds what every runtime of a guest shares: settings, the
// project tree, the manifest, the logger and the metrics.
type Environment struct {
	Config   *config.Config
	FS       fs.FS
	Manifest *config.Manifest
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
}

// LoadEnvironment builds an environment from process settings and the
// manifest at the project root.
func LoadEnvironment() (*Environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return EnvironmentFromConfig(cfg)
}

// EnvironmentFromConfig builds an environment from cfg, reading the
// manifest at cfg.Project.Root.
func EnvironmentFromConfig(cfg *config.Config) (*Environment, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	fsys := os.DirFS(cfg.Project.Root)
	manifest, err := config.LoadManifest(fsys, cfg.Project.Manifest)
	if err != nil {
		return nil, err
	}

	return &Environment{
		Config:   cfg,
		FS:       fsys,
		Manifest: manifest,
		Logger:   logger,
		Metrics:  monitoring.NewMetrics(),
	}, nil
}

// NewEnvironment builds an environment over fsys with default settings.
func NewEnvironment(fsys fs.FS) *Environment {
	return &Environment{
		Config:   config.Default(),
		FS:       fsys,
		Manifest: &config.Manifest{},
		Logger:   logging.Nop(),
		Metrics:  monitoring.NewMetrics(),
	}
}

// NewLoader builds a loader with its own transform instances and cache.
func (e *Environment) NewLoader() (*loader.Loader, error) {
	reg := transform.NewRegistry()
	if err := transform.RegisterBuiltins(reg, e.Manifest.Transforms); err != nil {
		return nil, fmt.Errorf("failed to register transforms: %w", err)
	}

	c, err := e.newCache()
	if err != nil {
		return nil, err
	}

	res := resolver.New(e.FS,
		resolver.WithDependencyDir(e.Manifest.DependencyDirOr(e.Config.Project.DependencyDir)),
		resolver.WithAliases(e.Manifest.Aliases),
	)

	return loader.New(e.FS, reg, c,
		loader.WithResolver(res),
		loader.WithLogger(e.Logger.Component("loader")),
		loader.WithMetrics(e.Metrics),
	), nil
}

// NewBridge builds a runtime with a fresh engine and loader.
func (e *Environment) NewBridge() (*bridge.Bridge, error) {
	l, err := e.NewLoader()
	if err != nil {
		return nil, err
	}
	return bridge.New(l,
		bridge.WithConfig(bridge.Config{
			CallTimeout:  e.Config.Runtime.CallTimeout,
			MaxCallStack: e.Config.Runtime.MaxCallStack,
			Console:      e.Config.Runtime.Console,
		}),
		bridge.WithLogger(e.Logger.Component("script")),
		bridge.WithMetrics(e.Metrics),
	), nil
}

func (e *Environment) newCache() (cache.Cache, error) {
	if e.Config.Cache.Mode != cache.ModeDisk {
		return cache.New(e.Config.Cache.Mode, "")
	}

	dir := e.Config.Cache.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.Config.Project.Root, dir)
	}
	d, err := cache.NewDisk(dir, cache.WithLogger(e.Logger.Component("cache")))
	if err != nil {
		return nil, err
	}
	e.Logger.Debug("Using disk cache", zap.String("dir", d.Dir()))
	return d, nil
}
