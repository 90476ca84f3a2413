package bridge

import (
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/reactor"
)

const microtaskShim = `(function (g) {
	g.queueMicrotask = function (cb) {
		if (typeof cb !== "function") {
			throw new TypeError("queueMicrotask: callback is not a function");
		}
		Promise.resolve().then(function () { cb(); });
	};
})(globalThis);`

// StartExecutor installs the scheduler globals, readFile, the global require
// and the console. Only the first call has any effect.
func (b *Bridge) StartExecutor() {
	if b.started {
		return
	}
	b.started = true

	b.set("setTimeout", b.schedule(false))
	b.set("setInterval", b.schedule(true))
	b.set("clearTimeout", b.clear)
	b.set("clearInterval", b.clear)
	b.set("setImmediate", b.immediate)
	b.set("readFile", b.readFile)
	b.set("require", b.requireFrom(""))
	if _, err := b.vm.RunScript("executor.js", microtaskShim); err != nil {
		b.logger.Error("Failed to install queueMicrotask", zap.Error(err))
	}
	if b.config.Console {
		b.installConsole()
	}
}

// Started reports whether the executor has been started.
func (b *Bridge) Started() bool {
	return b.started
}

func (b *Bridge) set(name string, value any) {
	if err := b.vm.Set(name, value); err != nil {
		b.logger.Error("Failed to install global", zap.String("name", name), zap.Error(err))
	}
}

// current returns the reactor of the call in flight.
func (b *Bridge) current(fn string) *reactor.Reactor {
	if b.reactor == nil {
		panic(b.vm.NewTypeError(fn + ": no call in flight"))
	}
	return b.reactor
}

func (b *Bridge) schedule(repeat bool) func(goja.FunctionCall) goja.Value {
	name := "setTimeout"
	if repeat {
		name = "setInterval"
	}
	return func(call goja.FunctionCall) goja.Value {
		r := b.current(name)
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(b.vm.NewTypeError(name + ": callback is not a function"))
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		id := r.SetTimer(delay, repeat, func() error {
			_, err := fn(goja.Undefined(), args...)
			return err
		})
		return b.vm.ToValue(int64(id))
	}
}

func (b *Bridge) clear(call goja.FunctionCall) goja.Value {
	r := b.current("clearTimeout")
	arg := call.Argument(0)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		return goja.Undefined()
	}
	r.ClearTimer(reactor.TimerID(arg.ToInteger()))
	return goja.Undefined()
}

func (b *Bridge) immediate(call goja.FunctionCall) goja.Value {
	r := b.current("setImmediate")
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(b.vm.NewTypeError("setImmediate: callback is not a function"))
	}
	args := append([]goja.Value(nil), call.Arguments[1:]...)
	r.Post(func() error {
		_, err := fn(goja.Undefined(), args...)
		return err
	})
	return goja.Undefined()
}

// readFile reads a project file off the loop. The promise it returns
// settles with the file text on a later reactor turn.
func (b *Bridge) readFile(call goja.FunctionCall) goja.Value {
	r := b.current("readFile")
	arg := call.Argument(0)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		panic(b.vm.NewTypeError("readFile: path is required"))
	}
	name := arg.String()

	promise, resolve, reject := b.vm.NewPromise()
	r.Go(func() reactor.Task {
		data, err := b.loader.ReadFile(name)
		return func() error {
			if err != nil {
				return reject(b.throw(err))
			}
			return resolve(string(data))
		}
	})
	return b.vm.ToValue(promise)
}

func (b *Bridge) installConsole() {
	console := b.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, b.consoleFunc(level))
	}
	b.set("console", console)
	b.set("print", b.consoleFunc("log"))
}

func (b *Bridge) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		switch level {
		case "error":
			b.logger.Error(msg, zap.String("source", "console"))
		case "warn":
			b.logger.Warn(msg, zap.String("source", "console"))
		case "debug":
			b.logger.Debug(msg, zap.String("source", "console"))
		default:
			b.logger.Info(msg, zap.String("source", "console"))
		}
		if b.metrics != nil {
			b.metrics.RecordConsole(level)
		}
		return goja.Undefined()
	}
}
