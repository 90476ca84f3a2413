package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/GriffinCanCode/guestjs/internal/boundary"
	"github.com/GriffinCanCode/guestjs/internal/config"
)

// loadConfig reads process settings and applies the global flags.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if root := cmd.Root().String("root"); root != "" {
		cfg.Project.Root = root
	}
	if cmd.Root().Bool("dev") {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func environment(cfg *config.Config) (*boundary.Environment, error) {
	env, err := boundary.EnvironmentFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return env, nil
}
