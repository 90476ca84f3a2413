package bridge

import (
	"errors"
	"strconv"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

var (
	errCallTimeout     = errors.New("call timeout exceeded")
	errNotWrapper      = errors.New("module program did not produce a function")
	errNotSerializable = errors.New("result is not JSON-serializable")
	errPromisePending  = errors.New("returned promise never settled")
)

// fail types err for op. Errors that already carry a kind keep it, including
// errors raised inside require and rethrown by the script.
func (b *Bridge) fail(kind errs.Kind, op, name string, err error) error {
	if ex, ok := err.(*goja.Exception); ok {
		if obj, ok := ex.Value().(*goja.Object); ok {
			if orig, ok := b.thrown[obj]; ok {
				return orig
			}
		}
	}
	if errs.KindOf(err) != errs.KindInternal {
		return err
	}

	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		kind = errs.KindEngineCompile
	}
	return errs.Wrap(kind, op, err).WithPath(name)
}

func quote(s string) string {
	return strconv.Quote(s)
}
