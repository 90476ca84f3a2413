package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		params CallParams
	}{
		{
			name:   "text",
			params: CallParams{Runtime: 65537, Name: "main", JSON: `{"n":1}`, Code: Text(`export function main(){ return "ok" }`)},
		},
		{
			name:   "bytecode without argument",
			params: CallParams{Runtime: 1, Name: "handler", Code: Bytecode([]byte{'G', 'J', 'S', 'B', 0, 1})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal(tt.params.Marshal())
			require.NoError(t, err)
			assert.Equal(t, tt.params, *got)
		})
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	p := CallParams{Runtime: 7, Name: "main", Code: Text("x")}
	data := p.Marshal()
	data = protowire.AppendTag(data, 99, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Runtime)
}

func TestUnmarshalErrors(t *testing.T) {
	both := (&CallParams{Runtime: 1, Name: "main", Code: Text("x")}).Marshal()
	both = protowire.AppendTag(both, fieldBytecode, protowire.BytesType)
	both = protowire.AppendBytes(both, []byte{1})

	var badUTF8 []byte
	badUTF8 = protowire.AppendTag(badUTF8, fieldName, protowire.BytesType)
	badUTF8 = protowire.AppendBytes(badUTF8, []byte{0xff, 0xfe})

	var bigRuntime []byte
	bigRuntime = protowire.AppendTag(bigRuntime, fieldRuntime, protowire.VarintType)
	bigRuntime = protowire.AppendVarint(bigRuntime, 1<<40)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: errs.ErrInvalidInput},
		{name: "missing code", data: (&CallParams{Runtime: 1, Name: "main"}).Marshal(), want: errs.ErrInvalidInput},
		{name: "missing name", data: (&CallParams{Runtime: 1, Code: Text("x")}).Marshal(), want: errs.ErrInvalidInput},
		{name: "both code fields", data: both, want: errs.ErrInvalidInput},
		{name: "truncated", data: []byte{0x12, 0x10, 'm'}, want: errs.ErrInvalidInput},
		{name: "invalid utf-8", data: badUTF8, want: errs.ErrInvalidUTF8},
		{name: "runtime out of range", data: bigRuntime, want: errs.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
