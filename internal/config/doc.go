// Package config provides 12-factor configuration for the guest and its
// tools.
//
// Process settings are loaded from environment variables with defaults.
// Project settings (dependency folder, aliases, extra transform bindings,
// build globs) live in a manifest at the project root, either
// guestjs.toml or guestjs.yaml.
//
// Configuration Sections:
//   - Project: root directory, dependency folder, manifest override
//   - Cache: artifact cache mode and directory
//   - Runtime: call timeout, call stack limit, console forwarding
//
// The call timeout interrupts the engine from a watcher goroutine. Under
// wasip1 the guest has a single thread and no preemption, so that watcher
// cannot run while a script spins; a host embedding the guest enforces the
// same GUESTJS_CALL_TIMEOUT by cancelling the export call instead (see
// host.Config.CallTimeout).
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg, err := config.Load()
//	manifest, err := config.LoadManifest(os.DirFS(cfg.Project.Root), cfg.Project.Manifest)
//
// Environment Variables:
//   - GUESTJS_ROOT, GUESTJS_DEP_DIR, GUESTJS_MANIFEST
//   - GUESTJS_CACHE, GUESTJS_CACHE_DIR
//   - GUESTJS_CALL_TIMEOUT, GUESTJS_MAX_CALL_STACK, GUESTJS_CONSOLE
//   - LOG_LEVEL, LOG_DEV
package config
