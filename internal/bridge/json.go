package bridge

import (
	"fmt"

	"github.com/dop251/goja"
)

func (b *Bridge) jsonMethod(name string) (goja.Callable, error) {
	fn, ok := goja.AssertFunction(b.vm.Get("JSON").ToObject(b.vm).Get(name))
	if !ok {
		return nil, fmt.Errorf("JSON.%s is not a function", name)
	}
	return fn, nil
}

// parseJSON parses s with the engine's JSON.parse.
func (b *Bridge) parseJSON(s string) (goja.Value, error) {
	parse, err := b.jsonMethod("parse")
	if err != nil {
		return nil, err
	}
	return parse(goja.Undefined(), b.vm.ToValue(s))
}

// stringifyJSON encodes v with the engine's JSON.stringify.
func (b *Bridge) stringifyJSON(v goja.Value) (string, error) {
	stringify, err := b.jsonMethod("stringify")
	if err != nil {
		return "", err
	}
	if v == nil {
		v = goja.Undefined()
	}
	out, err := stringify(goja.Undefined(), v)
	if err != nil {
		return "", err
	}
	if out == nil || goja.IsUndefined(out) {
		return "", errNotSerializable
	}
	return out.String(), nil
}

// settle unwraps a settled promise. Other values pass through. A rejection
// with an error raised by a bridge global reports that error.
func (b *Bridge) settle(v goja.Value) (goja.Value, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v, nil
	}
	p, ok := obj.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		reason := "undefined"
		if r := p.Result(); r != nil {
			if obj, ok := r.(*goja.Object); ok {
				if orig, ok := b.thrown[obj]; ok {
					return nil, orig
				}
			}
			reason = r.String()
		}
		return nil, fmt.Errorf("promise rejected: %s", reason)
	default:
		return nil, errPromisePending
	}
}
