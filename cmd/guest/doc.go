//go:build wasip1

// Package main builds the guest module: a WebAssembly reactor exporting
// the JavaScript runtime to a host.
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o guestjs.wasm ./cmd/guest
//
// Exports (all integers are u32):
//
//	parameter_buffer_ptr() -> ptr
//	new_runtime() -> rt            free_runtime(rt)
//	new_async_runtime() -> async   free_async_runtime(async)
//	run(async, rt, len) -> status
//	compile_module(async, rt, len) -> size
//	eval_module(async, rt, name_len, source_len) -> status
//	run_module_function(async, args_len) -> size
//	last_status() -> status
//	last_error() -> size
//	metrics() -> size
//
// Configuration comes from the WASI environment (GUESTJS_*, LOG_LEVEL,
// LOG_DEV); the project root is read through the preopened directories.
package main
