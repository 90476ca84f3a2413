package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := Wrap(KindTransform, "transpile", errors.New("unexpected token")).WithPath("src/a.ts")

	assert.True(t, errors.Is(err, ErrTransform))
	assert.False(t, errors.Is(err, ErrResolution))
	assert.Equal(t, "[transform] transpile src/a.ts: unexpected token", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "structured", err: New(KindEngineCall, "call", "missing export"), want: KindEngineCall},
		{name: "wrapped structured", err: fmt.Errorf("outer: %w", New(KindResolution, "resolve", "x")), want: KindResolution},
		{name: "sentinel", err: fmt.Errorf("write: %w", ErrBufferOverflow), want: KindBufferOverflow},
		{name: "plain", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, uint32(0), KindNone.Status())
	assert.NotEqual(t, KindBufferOverflow.Status(), KindInvalidHandle.Status())
	assert.Equal(t, "invalid_utf8", KindInvalidUTF8.String())
}
