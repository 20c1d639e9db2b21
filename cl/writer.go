// Package cl writes and reads V3D control lists: the byte streams the
// VideoCore IV binner and renderer execute.
package cl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Jon-Bright/v3dctl/vcmem"
)

// ErrOverrun is returned by every write once one didn't fit.
var ErrOverrun = errors.New("cl: write past end of buffer")

// Writer appends to a buffer of VideoCore memory at bus address base. The
// first write that doesn't fit is refused, and so is everything after it:
// a truncated control list hangs or corrupts the GPU.
type Writer struct {
	base vcmem.Addr
	buf  []byte
	n    int
	err  error
}

// NewWriter writes into buf, which the VideoCore sees at base.
func NewWriter(base vcmem.Addr, buf []byte) *Writer {
	return &Writer{base: base, buf: buf}
}

// ForBuffer writes into a locked VideoCore buffer.
func ForBuffer(b *vcmem.Buffer) *Writer {
	return NewWriter(b.Addr, b.Bytes())
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.n+len(p) > len(w.buf) {
		w.err = fmt.Errorf("%w: %d bytes at offset %d, capacity %d", ErrOverrun, len(p), w.n, len(w.buf))
		return 0, w.err
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

func (w *Writer) U8(v uint8) {
	w.Write([]byte{v})
}

func (w *Writer) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}

// Op writes a bare opcode.
func (w *Writer) Op(ops ...Opcode) {
	for _, op := range ops {
		w.U8(uint8(op))
	}
}

// Record writes a fixed-size value, typically one of the packed command
// structs of this package, with no padding between fields.
func (w *Writer) Record(v any) {
	if w.err != nil {
		return
	}
	if err := binary.Write(w, binary.LittleEndian, v); err != nil && w.err == nil {
		w.err = err
	}
}

// Len is the number of bytes written so far.
func (w *Writer) Len() int {
	return w.n
}

// Base is the bus address of the first byte.
func (w *Writer) Base() vcmem.Addr {
	return w.base
}

// End is the bus address one past the last byte written.
func (w *Writer) End() vcmem.Addr {
	return w.base + vcmem.Addr(w.n)
}

// Bytes is what has been written so far.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.n]
}

func (w *Writer) Err() error {
	return w.err
}
