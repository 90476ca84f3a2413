// Package host embeds the guest module with wazero and drives its exports
// from Go.
//
// A Host owns one module instance. Like the guest itself it serves one call
// at a time; calls are serialized with a mutex.
package host

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/protocol"
)

var errCallTimeout = errors.New("call timeout exceeded")

var exports = []string{
	"parameter_buffer_ptr",
	"new_runtime",
	"free_runtime",
	"new_async_runtime",
	"free_async_runtime",
	"run",
	"compile_module",
	"eval_module",
	"run_module_function",
	"last_status",
	"last_error",
	"metrics",
}

// Config configures the guest instance.
type Config struct {
	// Root is the host directory mounted as the guest's project root.
	Root string
	// Env is passed to the guest as its process environment.
	Env map[string]string
	// CallTimeout bounds every guest export call. The guest has no
	// preemption under wasip1, so a spinning script is only stopped here.
	// An expired call closes the instance. Zero disables it.
	CallTimeout time.Duration
	Stdout      io.Writer
	Stderr      io.Writer
	Logger      *zap.Logger
}

// Host is a running guest instance.
type Host struct {
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory
	fns     map[string]api.Function
	buffer  uint32
	timeout time.Duration
	logger  *zap.Logger

	mu sync.Mutex
}

// New compiles and instantiates the guest binary.
func New(ctx context.Context, wasm []byte, cfg Config) (*Host, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to compile guest: %w", err)
	}

	module, err := rt.InstantiateModule(ctx, compiled, moduleConfig(cfg))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate guest: %w", err)
	}

	h := &Host{
		runtime: rt,
		module:  module,
		memory:  module.Memory(),
		fns:     make(map[string]api.Function, len(exports)),
		timeout: cfg.CallTimeout,
		logger:  cfg.Logger,
	}
	if h.memory == nil {
		_ = rt.Close(ctx)
		return nil, errors.New("guest exports no memory")
	}
	for _, name := range exports {
		fn := module.ExportedFunction(name)
		if fn == nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("guest does not export %s", name)
		}
		h.fns[name] = fn
	}

	ptr, err := h.invoke(ctx, "parameter_buffer_ptr")
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	h.buffer = ptr

	h.logger.Debug("Guest instantiated", zap.Uint32("buffer", ptr), zap.Uint32("memory_bytes", h.memory.Size()))
	return h, nil
}

func moduleConfig(cfg Config) wazero.ModuleConfig {
	mc := wazero.NewModuleConfig().
		WithName("guestjs").
		WithStartFunctions("_initialize").
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)

	if cfg.Root != "" {
		mc = mc.WithFSConfig(wazero.NewFSConfig().WithDirMount(cfg.Root, "/")).
			WithEnv("GUESTJS_ROOT", "/")
	}
	for k, v := range cfg.Env {
		mc = mc.WithEnv(k, v)
	}
	if cfg.Stdout != nil {
		mc = mc.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		mc = mc.WithStderr(cfg.Stderr)
	}
	return mc
}

// Close tears down the guest instance.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// NewRuntime creates a runtime in the guest.
func (h *Host) NewRuntime(ctx context.Context) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checked(ctx, "new_runtime")
}

// FreeRuntime destroys a runtime.
func (h *Host) FreeRuntime(ctx context.Context, rt uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.checked(ctx, "free_runtime", rt)
	return err
}

// NewAsyncRuntime creates an async substrate in the guest.
func (h *Host) NewAsyncRuntime(ctx context.Context) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checked(ctx, "new_async_runtime")
}

// FreeAsyncRuntime destroys an async substrate.
func (h *Host) FreeAsyncRuntime(ctx context.Context, async uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.checked(ctx, "free_async_runtime", async)
	return err
}

// Run evaluates a global script.
func (h *Host) Run(ctx context.Context, async, rt uint32, source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.write([]byte(source))
	if err != nil {
		return err
	}
	_, err = h.checked(ctx, "run", async, rt, n)
	return err
}

// Compile compiles source into artifact bytes.
func (h *Host) Compile(ctx context.Context, async, rt uint32, source string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.write([]byte(source))
	if err != nil {
		return nil, err
	}
	size, err := h.checked(ctx, "compile_module", async, rt, n)
	if err != nil {
		return nil, err
	}
	return h.read(size)
}

// EvalModule registers a named module.
func (h *Host) EvalModule(ctx context.Context, async, rt uint32, name, source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.write([]byte(name + source)); err != nil {
		return err
	}
	_, err := h.checked(ctx, "eval_module", async, rt, uint32(len(name)), uint32(len(source)))
	return err
}

// Call invokes an exported function and returns its JSON result.
func (h *Host) Call(ctx context.Context, async uint32, params protocol.CallParams) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.write(params.Marshal())
	if err != nil {
		return "", err
	}
	size, err := h.checked(ctx, "run_module_function", async, n)
	if err != nil {
		return "", err
	}
	out, err := h.read(size)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Metrics returns the guest's Prometheus text exposition.
func (h *Host) Metrics(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size, err := h.checked(ctx, "metrics")
	if err != nil {
		return nil, err
	}
	return h.read(size)
}

// checked calls an export and turns a non-zero status into an error of the
// reported kind.
func (h *Host) checked(ctx context.Context, name string, params ...uint32) (uint32, error) {
	callCtx, cancel := h.callContext(ctx)
	result, err := h.invoke(callCtx, name, params...)
	cancel()
	if err != nil {
		if timedOut(err) {
			h.logger.Warn("Guest call timed out, instance closed", zap.String("export", name), zap.Duration("timeout", h.timeout))
			return 0, errs.Wrap(errs.KindEngineEval, name, errCallTimeout)
		}
		return 0, err
	}

	status, err := h.invoke(ctx, "last_status")
	if err != nil {
		return 0, err
	}
	if status == 0 {
		return result, nil
	}

	msg := "unknown failure"
	if size, err := h.invoke(ctx, "last_error"); err == nil && size > 0 {
		if raw, err := h.read(size); err == nil {
			msg = string(raw)
		}
	}
	return 0, errs.New(errs.Kind(status), name, msg)
}

// callContext applies the call timeout, if any, to ctx.
func (h *Host) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.timeout)
}

func timedOut(err error) bool {
	var exit *sys.ExitError
	return errors.As(err, &exit) && exit.ExitCode() == sys.ExitCodeDeadlineExceeded
}

func (h *Host) invoke(ctx context.Context, name string, params ...uint32) (uint32, error) {
	args := make([]uint64, len(params))
	for i, p := range params {
		args[i] = api.EncodeU32(p)
	}

	results, err := h.fns[name].Call(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("guest %s: %w", name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return api.DecodeU32(results[0]), nil
}

func (h *Host) write(data []byte) (uint32, error) {
	if len(data) > protocol.BufferSize {
		return 0, errs.New(errs.KindBufferOverflow, "write buffer",
			fmt.Sprintf("%d bytes exceed capacity %d", len(data), protocol.BufferSize))
	}
	if !h.memory.Write(h.buffer, data) {
		return 0, errs.New(errs.KindInternal, "write buffer", "guest memory out of range")
	}
	return uint32(len(data)), nil
}

func (h *Host) read(size uint32) ([]byte, error) {
	view, ok := h.memory.Read(h.buffer, size)
	if !ok {
		return nil, errs.New(errs.KindInternal, "read buffer", "guest memory out of range")
	}
	return append([]byte(nil), view...), nil
}
