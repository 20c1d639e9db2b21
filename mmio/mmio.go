// Package mmio gives word-level access to memory-mapped register blocks.
//
// On a Pi the blocks come from /dev/mem mappings (see package rpi). Tests and
// dry runs swap in simulated blocks through the Regs interface.
package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Regs is a block of 32-bit registers addressed by byte offset.
type Regs interface {
	Read(off uint32) uint32
	Write(off uint32, val uint32)
}

// Block is a Regs over a word view of mapped memory. All accesses are
// single 32-bit loads and stores; Go has no volatile, atomics keep the
// compiler from caching or merging them.
type Block struct {
	words []uint32
}

// NewBlock wraps words. words must stay mapped for the lifetime of the Block.
func NewBlock(words []uint32) *Block {
	return &Block{words: words}
}

// BlockFromBytes reinterprets a mapping as a register block. b must be word
// aligned, which page-aligned mappings always are.
func BlockFromBytes(b []byte) *Block {
	if len(b) < 4 {
		return &Block{}
	}
	if uintptr(unsafe.Pointer(&b[0]))%4 != 0 {
		panic("mmio: mapping is not word aligned")
	}
	return &Block{words: unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)}
}

func (b *Block) idx(off uint32) int {
	if off%4 != 0 {
		panic(fmt.Sprintf("mmio: misaligned register offset %#x", off))
	}
	i := int(off / 4)
	if i >= len(b.words) {
		panic(fmt.Sprintf("mmio: register offset %#x outside %d byte block", off, len(b.words)*4))
	}
	return i
}

func (b *Block) Read(off uint32) uint32 {
	return atomic.LoadUint32(&b.words[b.idx(off)])
}

func (b *Block) Write(off uint32, val uint32) {
	atomic.StoreUint32(&b.words[b.idx(off)], val)
}

// Len is the size of the block in bytes.
func (b *Block) Len() int {
	return len(b.words) * 4
}
