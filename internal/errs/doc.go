// Package errs defines the failure taxonomy shared by the module pipeline,
// the execution bridge and the host boundary.
//
// Each Kind has a sentinel usable with errors.Is and a stable status code
// reported to the host. Internal layers return *Error values; the boundary
// maps them to status codes with KindOf.
//
//	err := errs.Wrap(errs.KindTransform, "transpile", cause).WithPath("src/a.ts")
//	errors.Is(err, errs.ErrTransform) // true
//	errs.KindOf(err).Status()         // 3
package errs
