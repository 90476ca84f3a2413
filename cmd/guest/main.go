//go:build wasip1

package main

import "github.com/GriffinCanCode/guestjs/internal/boundary"

func main() {}

//go:wasmexport parameter_buffer_ptr
func parameterBufferPtr() uint32 {
	return boundary.Default().ParameterBufferPtr()
}

//go:wasmexport new_runtime
func newRuntime() uint32 {
	return boundary.Default().NewRuntime()
}

//go:wasmexport free_runtime
func freeRuntime(rt uint32) {
	boundary.Default().FreeRuntime(rt)
}

//go:wasmexport new_async_runtime
func newAsyncRuntime() uint32 {
	return boundary.Default().NewAsyncRuntime()
}

//go:wasmexport free_async_runtime
func freeAsyncRuntime(async uint32) {
	boundary.Default().FreeAsyncRuntime(async)
}

//go:wasmexport run
func run(async, rt, n uint32) uint32 {
	return boundary.Default().Run(async, rt, n)
}

//go:wasmexport compile_module
func compileModule(async, rt, n uint32) uint32 {
	return boundary.Default().CompileModule(async, rt, n)
}

//go:wasmexport eval_module
func evalModule(async, rt, nameLen, sourceLen uint32) uint32 {
	return boundary.Default().EvalModule(async, rt, nameLen, sourceLen)
}

//go:wasmexport run_module_function
func runModuleFunction(async, n uint32) uint32 {
	return boundary.Default().RunModuleFunction(async, n)
}

//go:wasmexport last_status
func lastStatus() uint32 {
	return boundary.Default().LastStatus()
}

//go:wasmexport last_error
func lastError() uint32 {
	return boundary.Default().LastError()
}

//go:wasmexport metrics
func metrics() uint32 {
	return boundary.Default().Metrics()
}
