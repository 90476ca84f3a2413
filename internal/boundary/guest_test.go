package boundary

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/protocol"
)

func newGuest(t *testing.T, size int) *Guest {
	t.Helper()
	files := fstest.MapFS{
		"src/util.ts": {Data: []byte(`export const double = (n: number): number => n * 2;`)},
	}
	return NewGuest(NewEnvironment(files), WithBuffer(NewBuffer(size)))
}

func handles(t *testing.T, g *Guest) (async, rt uint32) {
	t.Helper()
	async = g.NewAsyncRuntime()
	require.NotZero(t, async)
	rt = g.NewRuntime()
	require.NotZero(t, rt)
	return async, rt
}

func put(t *testing.T, g *Guest, s string) uint32 {
	t.Helper()
	n, err := g.buf.WriteString(s)
	require.NoError(t, err)
	return n
}

func result(t *testing.T, g *Guest, n uint32) string {
	t.Helper()
	s, err := g.buf.ReadString(0, n)
	require.NoError(t, err)
	return s
}

func lastError(t *testing.T, g *Guest) string {
	t.Helper()
	return result(t, g, g.LastError())
}

func callFunction(t *testing.T, g *Guest, async uint32, params protocol.CallParams) uint32 {
	t.Helper()
	data := params.Marshal()
	_, err := g.buf.Write(data)
	require.NoError(t, err)
	return g.RunModuleFunction(async, uint32(len(data)))
}

func TestRunModuleFunctionEndToEnd(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, rt := handles(t, g)

	n := callFunction(t, g, async, protocol.CallParams{
		Runtime: rt,
		Name:    "main",
		JSON:    `{"a":20}`,
		Code:    protocol.Text(`import { double } from "./src/util.ts"; export function main(x){ return { v: double(x.a) + 2 } }`),
	})
	require.Equal(t, uint32(0), g.LastStatus(), lastError(t, g))
	assert.Equal(t, `{"v":42}`, result(t, g, n))
	assert.Zero(t, g.LastError())
}

func TestCompileModuleThenCallBytecode(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, rt := handles(t, g)

	size := g.CompileModule(async, rt, put(t, g, `export const main = () => "compiled"`))
	require.Equal(t, uint32(0), g.LastStatus(), lastError(t, g))
	require.NotZero(t, size)

	raw, err := g.buf.Read(0, size)
	require.NoError(t, err)
	code := append([]byte(nil), raw...)

	n := callFunction(t, g, async, protocol.CallParams{
		Runtime: rt,
		Name:    "main",
		Code:    protocol.Bytecode(code),
	})
	require.Equal(t, uint32(0), g.LastStatus(), lastError(t, g))
	assert.Equal(t, `"compiled"`, result(t, g, n))
}

func TestEvalModuleIsImportable(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, rt := handles(t, g)

	name := "greeting"
	total := put(t, g, name+`export const hello = (who) => "hello " + who;`)
	status := g.EvalModule(async, rt, uint32(len(name)), total-uint32(len(name)))
	require.Equal(t, uint32(0), status, lastError(t, g))

	n := callFunction(t, g, async, protocol.CallParams{
		Runtime: rt,
		Name:    "main",
		JSON:    `"host"`,
		Code:    protocol.Text(`import { hello } from "greeting"; export function main(who){ return hello(who) }`),
	})
	require.Equal(t, uint32(0), g.LastStatus(), lastError(t, g))
	assert.Equal(t, `"hello host"`, result(t, g, n))
}

func TestRunReportsStatus(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, rt := handles(t, g)

	assert.Equal(t, uint32(0), g.Run(async, rt, put(t, g, `globalThis.x = 1 + 1;`)))

	status := g.Run(async, rt, put(t, g, `throw new Error("boom")`))
	assert.Equal(t, errs.KindEngineEval.Status(), status)
	assert.Equal(t, status, g.LastStatus())
	assert.Contains(t, lastError(t, g), "boom")

	status = g.Run(async, rt, put(t, g, `let = ;`))
	assert.Equal(t, errs.KindEngineCompile.Status(), status)
}

func TestStaleHandlesAreRejected(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, rt := handles(t, g)

	g.FreeRuntime(rt)
	require.Equal(t, uint32(0), g.LastStatus())

	assert.Equal(t, errs.KindInvalidHandle.Status(), g.Run(async, rt, put(t, g, `1`)))

	g.FreeRuntime(rt)
	assert.Equal(t, errs.KindInvalidHandle.Status(), g.LastStatus())

	g.FreeAsyncRuntime(async)
	require.Equal(t, uint32(0), g.LastStatus())
	fresh := g.NewRuntime()
	assert.Equal(t, errs.KindInvalidHandle.Status(), g.Run(async, fresh, put(t, g, `1`)))

	assert.Equal(t, errs.KindInvalidHandle.Status(), g.Run(0, 0, 0))
}

func TestReentrantUseIsRejected(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, rt := handles(t, g)

	_, err := g.runtimes.Acquire(rt)
	require.NoError(t, err)
	defer g.runtimes.Release(rt)

	assert.Equal(t, errs.KindInvalidHandle.Status(), g.Run(async, rt, put(t, g, `1`)))
	assert.Contains(t, lastError(t, g), "in use")
}

func TestOversizedPayloadsOverflow(t *testing.T) {
	g := newGuest(t, 512)
	async, rt := handles(t, g)

	n := callFunction(t, g, async, protocol.CallParams{
		Runtime: rt,
		Name:    "main",
		Code:    protocol.Text(`export const main = () => "x".repeat(1000)`),
	})
	assert.Zero(t, n)
	assert.Equal(t, errs.KindBufferOverflow.Status(), g.LastStatus())

	assert.Equal(t, errs.KindBufferOverflow.Status(), g.Run(async, rt, 513))
}

func TestMalformedParamsAreInvalidInput(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, _ := handles(t, g)

	n := g.RunModuleFunction(async, put(t, g, "\xff\xff\xff"))
	assert.Zero(t, n)
	assert.Equal(t, errs.KindInvalidInput.Status(), g.LastStatus())
}

func TestCallRecoversPanics(t *testing.T) {
	g := newGuest(t, 1024)

	n := g.call("explode", func(context.Context, *zap.Logger) (uint32, error) { panic("kaboom") })
	assert.Zero(t, n)
	assert.Equal(t, errs.KindInternal.Status(), g.LastStatus())
	assert.Contains(t, lastError(t, g), "kaboom")
}

func TestMetricsExposition(t *testing.T) {
	g := newGuest(t, 1<<20)
	async, rt := handles(t, g)
	g.Run(async, rt, put(t, g, `1`))

	n := g.Metrics()
	require.NotZero(t, n)
	text := result(t, g, n)
	assert.Contains(t, text, "guestjs_boundary_calls_total")
	assert.Contains(t, text, `guestjs_handles_live{kind="runtime"} 1`)
}
