// Package bridge runs module operations on one goja runtime.
//
// A Bridge owns the engine, the table of evaluated module instances and the
// executor flag. Every operation is handed the reactor of its call: the
// bridge starts the executor, performs the work, then drives that reactor
// until idle before returning.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/artifact"
	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/loader"
	"github.com/GriffinCanCode/guestjs/internal/monitoring"
	"github.com/GriffinCanCode/guestjs/internal/protocol"
	"github.com/GriffinCanCode/guestjs/internal/reactor"
)

// InlineName is the module name given to inline text passed to
// CallExportedFunction. It sits at the project root, so relative imports
// resolve from there.
const InlineName = "__inline__.js"

// RunName is the script name used for global scripts.
const RunName = "__run__.js"

// Config tunes a bridge.
type Config struct {
	// CallTimeout interrupts a call that runs longer. Zero disables it.
	// Without preemption (wasip1) the interrupt only lands once the script
	// yields to the reactor.
	CallTimeout time.Duration
	// MaxCallStack limits engine call depth. Zero keeps the engine default.
	MaxCallStack int
	// Console installs a console global forwarding to the logger.
	Console bool
}

// Bridge executes operations against one engine instance. Operations must
// not overlap.
type Bridge struct {
	vm      *goja.Runtime
	loader  *loader.Loader
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	instances map[string]*instance
	named     map[string]*instance
	started   bool

	// per-call state
	ctx     context.Context
	reactor *reactor.Reactor
	thrown  map[*goja.Object]error
}

type instance struct {
	name   string
	module *goja.Object
}

func (i *instance) exports() goja.Value {
	return i.module.Get("exports")
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithConfig sets the bridge configuration.
func WithConfig(cfg Config) Option {
	return func(b *Bridge) {
		b.config = cfg
	}
}

// WithLogger sets the logger used for diagnostics and script console output.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records console output on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New creates a bridge loading imported modules through l.
func New(l *loader.Loader, opts ...Option) *Bridge {
	b := &Bridge{
		vm:        goja.New(),
		loader:    l,
		config:    Config{Console: true},
		logger:    zap.NewNop(),
		instances: make(map[string]*instance),
		named:     make(map[string]*instance),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.config.MaxCallStack > 0 {
		b.vm.SetMaxCallStackSize(b.config.MaxCallStack)
	}
	return b
}

// Run evaluates source as a global script and discards its value.
func (b *Bridge) Run(ctx context.Context, r *reactor.Reactor, source string) (err error) {
	ctx, r, leave := b.enter(ctx, r)
	defer leave(&err)

	prg, err := goja.Compile(RunName, source, false)
	if err != nil {
		return errs.Wrap(errs.KindEngineCompile, "run", err).WithPath(RunName)
	}
	if _, err := b.vm.RunProgram(prg); err != nil {
		return b.fail(errs.KindEngineEval, "run", RunName, err)
	}
	if err := r.RunUntilIdle(ctx); err != nil {
		return b.fail(errs.KindEngineEval, "run", RunName, err)
	}
	return nil
}

// Compile compiles source into artifact bytes without evaluating it.
func (b *Bridge) Compile(ctx context.Context, r *reactor.Reactor, name, source string) (data []byte, err error) {
	ctx, r, leave := b.enter(ctx, r)
	defer leave(&err)

	m, err := b.loader.CompileSource(ctx, name, source)
	if err != nil {
		return nil, b.fail(errs.KindEngineCompile, "compile", name, err)
	}
	data, err = m.MarshalBinary()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "compile", err).WithPath(name)
	}
	if err := r.RunUntilIdle(ctx); err != nil {
		return nil, b.fail(errs.KindEngineEval, "compile", name, err)
	}
	return data, nil
}

// EvalModule evaluates source as a module and retains it under name. Later
// imports of name from any module return the retained exports.
func (b *Bridge) EvalModule(ctx context.Context, r *reactor.Reactor, name, source string) (err error) {
	ctx, r, leave := b.enter(ctx, r)
	defer leave(&err)

	m, err := b.loader.CompileSource(ctx, name, source)
	if err != nil {
		return b.fail(errs.KindEngineCompile, "eval module", name, err)
	}

	inst := b.newInstance(name)
	prev, had := b.named[name]
	b.named[name] = inst
	if err := b.evaluate(m, inst); err != nil {
		b.restoreNamed(name, prev, had)
		return b.fail(errs.KindEngineEval, "eval module", name, err)
	}
	if err := r.RunUntilIdle(ctx); err != nil {
		return b.fail(errs.KindEngineEval, "eval module", name, err)
	}

	b.logger.Debug("Module registered", zap.String("module", name))
	return nil
}

// CallExportedFunction materializes the module in code, evaluates it and
// calls its export with jsonArg parsed as JSON. An empty jsonArg calls the
// export without arguments. A returned promise is awaited. The result is
// returned JSON-encoded.
func (b *Bridge) CallExportedFunction(ctx context.Context, r *reactor.Reactor, code protocol.Code, export, jsonArg string) (out string, err error) {
	ctx, r, leave := b.enter(ctx, r)
	defer leave(&err)

	m, err := b.materialize(ctx, code)
	if err != nil {
		return "", err
	}

	inst := b.newInstance(m.Name)
	if err := b.evaluate(m, inst); err != nil {
		return "", b.fail(errs.KindEngineEval, "call", m.Name, err)
	}

	ev := inst.exports()
	if ev == nil || goja.IsUndefined(ev) || goja.IsNull(ev) {
		return "", errs.New(errs.KindEngineCall, "call", "module has no exports").WithPath(m.Name)
	}
	exports := ev.ToObject(b.vm)
	fn, ok := goja.AssertFunction(exports.Get(export))
	if !ok {
		return "", errs.New(errs.KindEngineCall, "call", "export "+quote(export)+" is not a function").WithPath(m.Name)
	}

	var args []goja.Value
	if jsonArg != "" {
		arg, err := b.parseJSON(jsonArg)
		if err != nil {
			return "", b.fail(errs.KindEngineCall, "call", m.Name, err)
		}
		args = append(args, arg)
	}

	result, err := fn(exports, args...)
	if err != nil {
		return "", b.fail(errs.KindEngineCall, "call", m.Name, err)
	}
	if err := r.RunUntilIdle(ctx); err != nil {
		return "", b.fail(errs.KindEngineCall, "call", m.Name, err)
	}

	result, err = b.settle(result)
	if err != nil {
		return "", b.fail(errs.KindEngineCall, "call", m.Name, err)
	}

	out, err = b.stringifyJSON(result)
	if err != nil {
		return "", b.fail(errs.KindEngineCall, "call", m.Name, err)
	}
	return out, nil
}

// Loaded reports whether the module with the resolved id has been evaluated.
func (b *Bridge) Loaded(id string) bool {
	_, ok := b.instances[id]
	return ok
}

func (b *Bridge) materialize(ctx context.Context, code protocol.Code) (*artifact.Module, error) {
	switch code.Kind {
	case protocol.CodeText:
		m, err := b.loader.CompileSource(ctx, InlineName, code.Text)
		if err != nil {
			return nil, b.fail(errs.KindEngineCompile, "call", InlineName, err)
		}
		return m, nil
	case protocol.CodeBytecode:
		return artifact.Decode(code.Bytecode)
	default:
		return nil, errs.New(errs.KindInvalidInput, "call", "missing code")
	}
}

// enter starts the executor and binds the call's reactor and context. The
// returned function must run with the call's result when it completes; a
// failed call leaves nothing behind on the reactor.
func (b *Bridge) enter(ctx context.Context, r *reactor.Reactor) (context.Context, *reactor.Reactor, func(*error)) {
	b.StartExecutor()

	if r == nil {
		r = reactor.New(reactor.WithMetrics(b.metrics))
	}
	cancel := context.CancelFunc(func() {})
	if b.config.CallTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(ctx, b.config.CallTimeout, errCallTimeout)
	}

	b.ctx = ctx
	b.reactor = r
	b.thrown = make(map[*goja.Object]error)

	stop := b.watch(ctx)
	return ctx, r, func(err *error) {
		stop()
		cancel()
		b.vm.ClearInterrupt()
		if *err != nil {
			r.Reset()
		}
		b.ctx = nil
		b.reactor = nil
		b.thrown = nil
	}
}

// watch interrupts the engine when ctx ends.
func (b *Bridge) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			b.vm.Interrupt(context.Cause(ctx))
		case <-done:
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (b *Bridge) restoreNamed(name string, prev *instance, had bool) {
	if had {
		b.named[name] = prev
		return
	}
	delete(b.named, name)
}
