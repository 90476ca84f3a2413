package boundary

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/bridge"
	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/logging"
	"github.com/GriffinCanCode/guestjs/internal/monitoring"
	"github.com/GriffinCanCode/guestjs/internal/protocol"
	"github.com/GriffinCanCode/guestjs/internal/reactor"
	"github.com/GriffinCanCode/guestjs/internal/shared/id"
)

// CompiledName is the module name given to sources passed to
// CompileModule.
const CompiledName = "module.js"

// Guest implements every host-facing operation. Results never unwind past
// a Guest method: failures become a zero result plus the status channel.
// The host must serialize calls; the parameter buffer is shared.
type Guest struct {
	env      *Environment
	buf      *Buffer
	runtimes *Table[*bridge.Bridge]
	reactors *Table[*reactor.Reactor]
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	status  errs.Kind
	lastErr string
}

// GuestOption configures a Guest.
type GuestOption func(*Guest)

// WithBuffer replaces the process-wide parameter buffer.
func WithBuffer(b *Buffer) GuestOption {
	return func(g *Guest) {
		g.buf = b
	}
}

// NewGuest creates a guest over env.
func NewGuest(env *Environment, opts ...GuestOption) *Guest {
	g := &Guest{
		env:      env,
		runtimes: NewTable[*bridge.Bridge]("runtime"),
		reactors: NewTable[*reactor.Reactor]("async runtime"),
		logger:   env.Logger,
		metrics:  env.Metrics,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.buf == nil {
		g.buf = parameterBuffer()
	}
	return g
}

var (
	defaultGuest *Guest
	defaultOnce  sync.Once
)

// Default returns the process-wide guest, built from the environment on
// first use. Invalid settings fall back to defaults over the working
// directory.
func Default() *Guest {
	defaultOnce.Do(func() {
		env, err := LoadEnvironment()
		if err != nil {
			env = NewEnvironment(os.DirFS("."))
			env.Logger = logging.NewDefault()
			env.Logger.Warn("Falling back to default environment", zap.Error(err))
		}
		defaultGuest = NewGuest(env)
	})
	return defaultGuest
}

// ParameterBufferPtr returns the address of the parameter buffer.
func (g *Guest) ParameterBufferPtr() uint32 {
	return g.buf.Address()
}

// NewRuntime creates a runtime and returns its handle, or 0 on failure.
func (g *Guest) NewRuntime() uint32 {
	return g.call("new_runtime", func(context.Context, *zap.Logger) (uint32, error) {
		b, err := g.env.NewBridge()
		if err != nil {
			return 0, errs.Wrap(errs.KindInternal, "new runtime", err)
		}
		h, err := g.runtimes.Insert(b)
		g.metrics.SetHandles("runtime", g.runtimes.Len())
		return h, err
	})
}

// FreeRuntime destroys a runtime.
func (g *Guest) FreeRuntime(h uint32) {
	g.call("free_runtime", func(context.Context, *zap.Logger) (uint32, error) {
		_, err := g.runtimes.Remove(h)
		g.metrics.SetHandles("runtime", g.runtimes.Len())
		return 0, err
	})
}

// NewAsyncRuntime creates an async substrate and returns its handle.
func (g *Guest) NewAsyncRuntime() uint32 {
	return g.call("new_async_runtime", func(context.Context, *zap.Logger) (uint32, error) {
		h, err := g.reactors.Insert(reactor.New(reactor.WithMetrics(g.metrics)))
		g.metrics.SetHandles("async", g.reactors.Len())
		return h, err
	})
}

// FreeAsyncRuntime destroys an async substrate.
func (g *Guest) FreeAsyncRuntime(h uint32) {
	g.call("free_async_runtime", func(context.Context, *zap.Logger) (uint32, error) {
		_, err := g.reactors.Remove(h)
		g.metrics.SetHandles("async", g.reactors.Len())
		return 0, err
	})
}

// Run evaluates the script in the first n buffer bytes and returns the
// status code.
func (g *Guest) Run(async, rt, n uint32) uint32 {
	g.call("run", func(ctx context.Context, log *zap.Logger) (uint32, error) {
		source, err := g.buf.ReadString(0, n)
		if err != nil {
			return 0, err
		}
		return 0, g.withHandles(async, rt, func(r *reactor.Reactor, b *bridge.Bridge) error {
			return b.Run(ctx, r, source)
		})
	})
	return g.LastStatus()
}

// CompileModule compiles the source in the first n buffer bytes, writes the
// artifact into the buffer and returns its size.
func (g *Guest) CompileModule(async, rt, n uint32) uint32 {
	return g.call("compile_module", func(ctx context.Context, log *zap.Logger) (uint32, error) {
		source, err := g.buf.ReadString(0, n)
		if err != nil {
			return 0, err
		}
		var data []byte
		err = g.withHandles(async, rt, func(r *reactor.Reactor, b *bridge.Bridge) error {
			data, err = b.Compile(ctx, r, CompiledName, source)
			return err
		})
		if err != nil {
			return 0, err
		}
		log.Debug("Module compiled", zap.Int("bytes", len(data)))
		return g.buf.Write(data)
	})
}

// EvalModule evaluates a named module. The buffer holds the name followed
// by the source.
func (g *Guest) EvalModule(async, rt, nameLen, sourceLen uint32) uint32 {
	g.call("eval_module", func(ctx context.Context, log *zap.Logger) (uint32, error) {
		name, err := g.buf.ReadString(0, nameLen)
		if err != nil {
			return 0, err
		}
		source, err := g.buf.ReadString(nameLen, sourceLen)
		if err != nil {
			return 0, err
		}
		return 0, g.withHandles(async, rt, func(r *reactor.Reactor, b *bridge.Bridge) error {
			return b.EvalModule(ctx, r, name, source)
		})
	})
	return g.LastStatus()
}

// RunModuleFunction decodes the call parameter record in the first n
// buffer bytes, calls the export and writes the JSON result into the
// buffer. It returns the result size.
func (g *Guest) RunModuleFunction(async, n uint32) uint32 {
	return g.call("run_module_function", func(ctx context.Context, log *zap.Logger) (uint32, error) {
		raw, err := g.buf.Read(0, n)
		if err != nil {
			return 0, err
		}
		params, err := protocol.Unmarshal(raw)
		if err != nil {
			return 0, err
		}

		var out string
		err = g.withHandles(async, params.Runtime, func(r *reactor.Reactor, b *bridge.Bridge) error {
			out, err = b.CallExportedFunction(ctx, r, params.Code, params.Name, params.JSON)
			return err
		})
		if err != nil {
			return 0, err
		}
		log.Debug("Function returned",
			zap.String("export", params.Name),
			zap.Stringer("code", params.Code.Kind),
			zap.Int("bytes", len(out)))
		return g.buf.WriteString(out)
	})
}

// LastStatus returns the status code of the last operation; zero is
// success.
func (g *Guest) LastStatus() uint32 {
	return g.status.Status()
}

// LastError writes the last failure message into the buffer and returns
// its size. It is zero after a successful operation.
func (g *Guest) LastError() uint32 {
	n, err := g.buf.WriteString(g.lastErr)
	if err != nil {
		return 0
	}
	return n
}

// Metrics writes the Prometheus text exposition into the buffer and
// returns its size.
func (g *Guest) Metrics() uint32 {
	return g.call("metrics", func(context.Context, *zap.Logger) (uint32, error) {
		text, err := g.metrics.Text()
		if err != nil {
			return 0, errs.Wrap(errs.KindInternal, "gather metrics", err)
		}
		return g.buf.Write(text)
	})
}

// call runs one boundary operation: it recovers panics, records the status
// channel and metrics, and turns failures into a zero result.
func (g *Guest) call(op string, fn func(ctx context.Context, log *zap.Logger) (uint32, error)) (result uint32) {
	timer := monitoring.NewTimer(g.metrics, op)
	log := g.logger.Call(id.NewCallID().String(), op)

	defer func() {
		if p := recover(); p != nil {
			log.Error("Recovered panic at boundary", zap.Any("panic", p), zap.Stack("stack"))
			g.setStatus(errs.New(errs.KindInternal, op, fmt.Sprintf("panic: %v", p)))
			result = 0
		}
		timer.Stop(g.status.String())
	}()

	result, err := fn(context.Background(), log)
	g.setStatus(err)
	if err != nil {
		log.Warn("Boundary call failed", zap.Stringer("status", g.status), zap.Error(err))
		return 0
	}
	return result
}

func (g *Guest) setStatus(err error) {
	g.status = errs.KindOf(err)
	if err != nil {
		g.lastErr = err.Error()
		return
	}
	g.lastErr = ""
}

// withHandles acquires both handles for the duration of fn.
func (g *Guest) withHandles(async, rt uint32, fn func(*reactor.Reactor, *bridge.Bridge) error) error {
	r, err := g.reactors.Acquire(async)
	if err != nil {
		return err
	}
	defer g.reactors.Release(async)

	b, err := g.runtimes.Acquire(rt)
	if err != nil {
		return err
	}
	defer g.runtimes.Release(rt)

	return fn(r, b)
}
