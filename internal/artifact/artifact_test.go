package artifact

import (
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

const source = `exports.answer = function () { return 42 };`

func TestCompileAndRun(t *testing.T) {
	m, err := Compile("src/answer.js", source)
	require.NoError(t, err)

	vm := goja.New()
	fnVal, err := vm.RunProgram(m.Program())
	require.NoError(t, err)
	fn, ok := goja.AssertFunction(fnVal)
	require.True(t, ok)

	exports := vm.NewObject()
	module := vm.NewObject()
	require.NoError(t, module.Set("exports", exports))
	_, err = fn(goja.Undefined(), exports, goja.Undefined(), module, vm.ToValue(m.Name), vm.ToValue("src"))
	require.NoError(t, err)

	answer, ok := goja.AssertFunction(exports.Get("answer"))
	require.True(t, ok)
	v, err := answer(goja.Undefined())
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.ToInteger())
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := Compile("src/bad.js", "exports.x = ;")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrEngineCompile))
	assert.Contains(t, err.Error(), "src/bad.js")
}

func TestRoundTrip(t *testing.T) {
	m, err := Compile("src/answer.js", source)
	require.NoError(t, err)

	data, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, IsArtifact(data))

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, m.Name, decoded.Name)
	assert.Equal(t, m.Source, decoded.Source)
	assert.NotNil(t, decoded.Program())
}

func TestDecodeRejectsCorruption(t *testing.T) {
	m, err := Compile("a.js", source)
	require.NoError(t, err)
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "bad magic", data: append([]byte("XXXX"), data[4:]...)},
		{name: "bad version", data: append(append([]byte{}, data[:4]...), append([]byte{99}, data[5:]...)...)},
		{name: "truncated", data: data[:8]},
		{name: "flipped payload", data: flipLast(data)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrInvalidInput))
		})
	}
}

func flipLast(data []byte) []byte {
	out := append([]byte{}, data...)
	out[len(out)-1] ^= 0xff
	return out
}
