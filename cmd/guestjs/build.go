package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"

	"github.com/GriffinCanCode/guestjs/internal/build"
	"github.com/GriffinCanCode/guestjs/internal/cache"
	"github.com/GriffinCanCode/guestjs/internal/config"
)

func treeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "Source directory relative to the root (default from manifest, then \"src\")",
		},
		&cli.StringSliceFlag{
			Name:  "include",
			Usage: "Doublestar pattern of files to build, relative to the source directory",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Doublestar pattern of files to leave out",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the build report as JSON",
		},
	}
}

func newBuildCmd() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Transform a source tree into CommonJS files mirroring its layout",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory relative to the root (default from manifest, then \"dist\")",
			},
		}, treeFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runBuild(ctx, cmd, build.ModeEmit)
		},
	}
}

func newWarmCmd() *cli.Command {
	return &cli.Command{
		Name:  "warm",
		Usage: "Compile a source tree into the disk cache",
		Flags: treeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runBuild(ctx, cmd, build.ModeWarm)
		},
	}
}

func runBuild(ctx context.Context, cmd *cli.Command, mode build.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if mode == build.ModeWarm {
		cfg.Cache.Mode = cache.ModeDisk
	}

	env, err := environment(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = env.Logger.Sync() }()

	l, err := env.NewLoader()
	if err != nil {
		return err
	}

	opts := buildOptions(cmd, mode, env.Manifest.Build)
	report, err := build.New(cfg.Project.Root, l, env.Logger.Component("build")).Build(ctx, opts)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if err := writeJSON(cmd.Root().Writer, report); err != nil {
			return err
		}
	} else {
		printReport(cmd.Root().Writer, report)
	}
	return report.Err()
}

// buildOptions merges flags over the manifest's build section.
func buildOptions(cmd *cli.Command, mode build.Mode, m config.BuildManifest) build.Options {
	opts := build.Options{
		Mode:    mode,
		Source:  m.Source,
		Out:     m.Out,
		Include: m.Include,
		Exclude: m.Exclude,
	}
	if v := cmd.String("source"); v != "" {
		opts.Source = v
	}
	if mode == build.ModeEmit {
		if v := cmd.String("out"); v != "" {
			opts.Out = v
		}
	}
	if v := cmd.StringSlice("include"); len(v) > 0 {
		opts.Include = v
	}
	if v := cmd.StringSlice("exclude"); len(v) > 0 {
		opts.Exclude = v
	}
	return opts
}

func printReport(w io.Writer, r *build.Report) {
	for _, f := range r.Files {
		switch {
		case f.Skipped:
			fmt.Fprintf(w, "  skip  %s\n", f.Path)
		case f.Error != "":
			fmt.Fprintf(w, "  FAIL  %s: %s\n", f.Path, f.Error)
		case f.Output != "":
			fmt.Fprintf(w, "  ok    %s -> %s\n", f.Path, f.Output)
		default:
			fmt.Fprintf(w, "  ok    %s\n", f.Path)
		}
	}
	fmt.Fprintf(w, "%s %s: %d compiled, %d skipped, %d failed in %s\n",
		r.Mode, r.ID, r.Compiled, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond))
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
