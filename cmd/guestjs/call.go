package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/config"
	"github.com/GriffinCanCode/guestjs/internal/host"
	"github.com/GriffinCanCode/guestjs/internal/protocol"
	"github.com/GriffinCanCode/guestjs/internal/reactor"
)

func newCallCmd() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Call an exported function of a project module (path relative to the root)",
		ArgsUsage: "<module> <export> [json-argument]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "wasm",
				Usage: "Run through this compiled guest module instead of in-process",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print a JSON report instead of the bare result",
			},
		},
		Action: callAction,
	}
}

// callResult is the JSON report of the call command.
type callResult struct {
	Module   string        `json:"module"`
	Export   string        `json:"export"`
	Via      string        `json:"via"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
}

func callAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("module path and export name required")
	}
	module := path.Clean(filepath.ToSlash(cmd.Args().Get(0)))
	export := cmd.Args().Get(1)
	arg := cmd.Args().Get(2)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The entry re-exports the project module so it loads through the
	// resolver and cache like any other import.
	entry := protocol.Text("module.exports = require(" + strconv.Quote("./"+module) + ");")

	res := callResult{Module: module, Export: export}
	start := time.Now()
	if wasmPath := cmd.String("wasm"); wasmPath != "" {
		res.Via = "wasm"
		res.Result, err = callWasm(ctx, cfg, wasmPath, entry, export, arg)
	} else {
		res.Via = "local"
		res.Result, err = callLocal(ctx, cfg, entry, export, arg)
	}
	if err != nil {
		return err
	}
	res.Duration = time.Since(start)

	if cmd.Bool("json") {
		return writeJSON(cmd.Root().Writer, res)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, res.Result)
	return err
}

func callLocal(ctx context.Context, cfg *config.Config, code protocol.Code, export, arg string) (string, error) {
	env, err := environment(cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = env.Logger.Sync() }()

	b, err := env.NewBridge()
	if err != nil {
		return "", err
	}
	return b.CallExportedFunction(ctx, reactor.New(reactor.WithMetrics(env.Metrics)), code, export, arg)
}

func callWasm(ctx context.Context, cfg *config.Config, wasmPath string, code protocol.Code, export, arg string) (string, error) {
	wasm, err := os.ReadFile(wasmPath)
	if err != nil {
		return "", fmt.Errorf("failed to read guest module: %w", err)
	}
	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return "", err
	}

	env, err := environment(cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = env.Logger.Sync() }()

	h, err := host.New(ctx, wasm, host.Config{
		Root:        root,
		Env:         guestEnv(cfg),
		CallTimeout: cfg.Runtime.CallTimeout,
		Stderr:      os.Stderr,
		Logger:      env.Logger.Component("host"),
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = h.Close(ctx) }()

	async, err := h.NewAsyncRuntime(ctx)
	if err != nil {
		return "", err
	}
	rt, err := h.NewRuntime(ctx)
	if err != nil {
		return "", err
	}

	out, err := h.Call(ctx, async, protocol.CallParams{Runtime: rt, Name: export, JSON: arg, Code: code})
	if err != nil {
		return "", err
	}
	env.Logger.Debug("Guest call finished", zap.String("export", export), zap.Int("bytes", len(out)))
	return out, nil
}

// guestEnv forwards the settings the guest reads from its environment.
// The root is always the mounted directory.
func guestEnv(cfg *config.Config) map[string]string {
	return map[string]string{
		"GUESTJS_DEP_DIR":        cfg.Project.DependencyDir,
		"GUESTJS_MANIFEST":       cfg.Project.Manifest,
		"GUESTJS_CACHE":          cfg.Cache.Mode,
		"GUESTJS_CACHE_DIR":      cfg.Cache.Dir,
		"GUESTJS_CALL_TIMEOUT":   cfg.Runtime.CallTimeout.String(),
		"GUESTJS_MAX_CALL_STACK": strconv.Itoa(cfg.Runtime.MaxCallStack),
		"GUESTJS_CONSOLE":        strconv.FormatBool(cfg.Runtime.Console),
		"LOG_LEVEL":              cfg.Logging.Level,
		"LOG_DEV":                strconv.FormatBool(cfg.Logging.Development),
	}
}
