package bridge

import (
	"path"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/artifact"
)

func (b *Bridge) newInstance(name string) *instance {
	module := b.vm.NewObject()
	_ = module.Set("exports", b.vm.NewObject())
	_ = module.Set("id", name)
	return &instance{name: name, module: module}
}

// evaluate runs the module wrapper with the instance's module object.
func (b *Bridge) evaluate(m *artifact.Module, inst *instance) error {
	wrapper, err := b.vm.RunProgram(m.Program())
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return errNotWrapper
	}

	_, err = fn(goja.Undefined(),
		inst.exports(),
		b.vm.ToValue(b.requireFrom(m.Name)),
		inst.module,
		b.vm.ToValue(m.Name),
		b.vm.ToValue(path.Dir(m.Name)),
	)
	return err
}

// requireFrom returns the require function for modules imported from base.
func (b *Bridge) requireFrom(base string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		if goja.IsUndefined(arg) || goja.IsNull(arg) {
			panic(b.vm.NewTypeError("require: module name is required"))
		}
		exports, err := b.require(base, arg.String())
		if err != nil {
			panic(b.throw(err))
		}
		return exports
	}
}

// require links imp into the calling module. Registered names win; other
// imports resolve once per edge and evaluate once per bridge. An instance is
// registered before it is evaluated so cycles see partial exports.
func (b *Bridge) require(base, imp string) (goja.Value, error) {
	if inst, ok := b.named[imp]; ok {
		return inst.exports(), nil
	}

	spec, err := b.loader.ResolveImport(base, imp)
	if err != nil {
		return nil, err
	}
	id := spec.Path
	if inst, ok := b.instances[id]; ok {
		return inst.exports(), nil
	}

	m, err := b.loader.Load(b.ctx, spec)
	if err != nil {
		return nil, err
	}

	inst := b.newInstance(id)
	b.instances[id] = inst
	if err := b.evaluate(m, inst); err != nil {
		delete(b.instances, id)
		return nil, err
	}

	b.logger.Debug("Module linked", zap.String("module", id), zap.String("from", base))
	return inst.exports(), nil
}

// throw converts a Go error into a script exception and remembers the
// original so a failed operation reports its real kind.
func (b *Bridge) throw(err error) *goja.Object {
	if ex, ok := err.(*goja.Exception); ok {
		if obj, ok := ex.Value().(*goja.Object); ok {
			return obj
		}
	}
	obj := b.vm.NewGoError(err)
	if b.thrown != nil {
		b.thrown[obj] = err
	}
	return obj
}
