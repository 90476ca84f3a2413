package boundary

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

// maxSlots bounds a table so a slot index fits the low 16 bits of a handle.
const maxSlots = 1<<16 - 1

// Table hands out generation-checked handles for values of one kind.
//
// A handle packs the slot generation into the high 16 bits and the slot
// index plus one into the low 16 bits, so zero is never a valid handle.
// Freeing a slot bumps its generation and stale handles stop resolving.
// An acquired handle is busy until released, which rejects reentrant use.
type Table[T any] struct {
	mu    sync.Mutex
	kind  string
	slots []slot[T]
	free  []uint16
	live  int
}

type slot[T any] struct {
	gen   uint16
	used  bool
	busy  bool
	value T
}

// NewTable creates an empty table. kind names the values in errors.
func NewTable[T any](kind string) *Table[T] {
	return &Table[T]{kind: kind}
}

// Insert stores v and returns its handle.
func (t *Table[T]) Insert(v T) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint16
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= maxSlots {
			return 0, errs.New(errs.KindInternal, "insert handle", t.kind+" table is full")
		}
		idx = uint16(len(t.slots))
		t.slots = append(t.slots, slot[T]{gen: 1})
	}

	s := &t.slots[idx]
	s.used = true
	s.busy = false
	s.value = v
	t.live++
	return uint32(s.gen)<<16 | uint32(idx+1), nil
}

// Acquire returns the value behind h and marks it busy.
func (t *Table[T]) Acquire(h uint32) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	if s.busy {
		var zero T
		return zero, t.invalid(h, "already in use")
	}
	s.busy = true
	return s.value, nil
}

// Release clears the busy mark set by Acquire.
func (t *Table[T]) Release(h uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, err := t.lookup(h); err == nil {
		s.busy = false
	}
}

// Remove frees h and returns its value. A busy handle cannot be removed.
func (t *Table[T]) Remove(h uint32) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, err := t.lookup(h)
	if err != nil {
		return zero, err
	}
	if s.busy {
		return zero, t.invalid(h, "in use")
	}

	v := s.value
	s.value = zero
	s.used = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	t.free = append(t.free, uint16(h&0xffff)-1)
	t.live--
	return v, nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Table[T]) lookup(h uint32) (*slot[T], error) {
	low := h & 0xffff
	if low == 0 || int(low) > len(t.slots) {
		return nil, t.invalid(h, "unknown")
	}
	s := &t.slots[low-1]
	if !s.used || uint32(s.gen) != h>>16 {
		return nil, t.invalid(h, "stale")
	}
	return s, nil
}

func (t *Table[T]) invalid(h uint32, why string) error {
	return errs.New(errs.KindInvalidHandle, "resolve handle", fmt.Sprintf("%s handle %#x is %s", t.kind, h, why))
}
