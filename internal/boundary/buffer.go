package boundary

import (
	"fmt"
	"sync"
	"unicode/utf8"
	"unsafe"

	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/protocol"
)

// parameterBuffer allocates the process-wide buffer on first use. It is
// never freed.
var parameterBuffer = sync.OnceValue(func() *Buffer {
	return NewBuffer(protocol.BufferSize)
})

// Buffer is a fixed scratch region shared with the host. Inputs are read
// from offset zero and results are written at offset zero.
type Buffer struct {
	data []byte
}

// NewBuffer allocates a buffer of size bytes.
func NewBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Address returns the linear memory address of the first byte.
func (b *Buffer) Address() uint32 {
	return uint32(uintptr(unsafe.Pointer(&b.data[0])))
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Read returns n bytes starting at off. The slice aliases the buffer.
func (b *Buffer) Read(off, n uint32) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(b.data)) {
		return nil, errs.New(errs.KindBufferOverflow, "read buffer",
			fmt.Sprintf("range [%d, %d) exceeds capacity %d", off, end, len(b.data)))
	}
	return b.data[off:end], nil
}

// ReadString reads n bytes at off as UTF-8 text.
func (b *Buffer) ReadString(off, n uint32) (string, error) {
	raw, err := b.Read(off, n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", errs.New(errs.KindInvalidUTF8, "read buffer", fmt.Sprintf("%d bytes at offset %d are not valid utf-8", n, off))
	}
	return string(raw), nil
}

// Write copies data to the start of the buffer and returns its size.
// Oversized payloads are rejected, never truncated.
func (b *Buffer) Write(data []byte) (uint32, error) {
	if len(data) > len(b.data) {
		return 0, errs.New(errs.KindBufferOverflow, "write buffer",
			fmt.Sprintf("%d bytes exceed capacity %d", len(data), len(b.data)))
	}
	copy(b.data, data)
	return uint32(len(data)), nil
}

// WriteString is Write for text.
func (b *Buffer) WriteString(s string) (uint32, error) {
	if len(s) > len(b.data) {
		return 0, errs.New(errs.KindBufferOverflow, "write buffer",
			fmt.Sprintf("%d bytes exceed capacity %d", len(s), len(b.data)))
	}
	copy(b.data, s)
	return uint32(len(s)), nil
}
