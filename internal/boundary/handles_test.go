package boundary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

func TestTableLifecycle(t *testing.T) {
	tbl := NewTable[string]("runtime")

	h, err := tbl.Insert("a")
	require.NoError(t, err)
	assert.NotZero(t, h)
	assert.Equal(t, 1, tbl.Len())

	v, err := tbl.Acquire(h)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	tbl.Release(h)

	v, err = tbl.Remove(h)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, 0, tbl.Len())
}

func TestTableRejectsStaleHandles(t *testing.T) {
	tbl := NewTable[int]("runtime")

	old, err := tbl.Insert(1)
	require.NoError(t, err)
	_, err = tbl.Remove(old)
	require.NoError(t, err)

	// the slot is reused under a new generation
	fresh, err := tbl.Insert(2)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)
	assert.Equal(t, old&0xffff, fresh&0xffff)

	_, err = tbl.Acquire(old)
	assert.True(t, errors.Is(err, errs.ErrInvalidHandle))
	_, err = tbl.Remove(old)
	assert.True(t, errors.Is(err, errs.ErrInvalidHandle))

	v, err := tbl.Acquire(fresh)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestTableRejectsReentrantUse(t *testing.T) {
	tbl := NewTable[int]("runtime")
	h, err := tbl.Insert(1)
	require.NoError(t, err)

	_, err = tbl.Acquire(h)
	require.NoError(t, err)

	_, err = tbl.Acquire(h)
	assert.True(t, errors.Is(err, errs.ErrInvalidHandle))
	_, err = tbl.Remove(h)
	assert.True(t, errors.Is(err, errs.ErrInvalidHandle))

	tbl.Release(h)
	_, err = tbl.Acquire(h)
	assert.NoError(t, err)
}

func TestTableRejectsUnknownHandles(t *testing.T) {
	tbl := NewTable[int]("async runtime")

	for _, h := range []uint32{0, 1, 0x10001, 0xffffffff} {
		_, err := tbl.Acquire(h)
		assert.True(t, errors.Is(err, errs.ErrInvalidHandle), "handle %#x", h)
	}
}
