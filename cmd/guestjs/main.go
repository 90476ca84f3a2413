// Command guestjs is the developer tool for guestjs projects: it builds
// source trees ahead of time, warms the artifact cache and calls exported
// functions in-process or through a compiled guest module.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags
var Version = "dev"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "guestjs",
		Version: Version,
		Usage:   "Build, warm and call JavaScript modules for the guestjs runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root (overrides GUESTJS_ROOT)",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "Development logging",
			},
		},
		Commands: []*cli.Command{
			newBuildCmd(),
			newWarmCmd(),
			newCallCmd(),
			{
				Name:  "version",
				Usage: "Print the version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "guestjs version %s\n", cmd.Root().Version)
					return nil
				},
			},
		},
	}
}
