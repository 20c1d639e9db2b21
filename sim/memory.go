// Package sim is a VideoCore IV in software: firmware that answers the
// mailbox property tags, memory it hands out, and V3D and mailbox register
// blocks that behave enough like the hardware for the drivers to run.
package sim

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/vcmem"
)

// Memory is an arena of physical memory starting at Base.
type Memory struct {
	Base uint32
	// Alias is put on the bus addresses of locked allocations.
	Alias uint32

	mu      sync.Mutex
	arena   []byte
	next    uint32
	handles map[uint32]*block
	nextH   uint32
}

type block struct {
	phys   uint32
	size   uint32
	locked bool
}

// NewMemory makes size bytes of word aligned memory at physical address base.
func NewMemory(base uint32, size int) *Memory {
	words := make([]uint32, (size+3)/4)
	arena := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*4)
	return &Memory{
		Base:    base,
		Alias:   0xC0000000,
		arena:   arena,
		next:    base,
		handles: map[uint32]*block{},
		nextH:   1,
	}
}

// Map implements vcmem.Mapper.
func (m *Memory) Map(phys uint32, size int) ([]byte, error) {
	if phys < m.Base || uint64(phys-m.Base)+uint64(size) > uint64(len(m.arena)) {
		return nil, fmt.Errorf("sim: %08X+%d is outside memory %08X+%d", phys, size, m.Base, len(m.arena))
	}
	o := phys - m.Base
	return m.arena[o : o+uint32(size) : o+uint32(size)], nil
}

// At returns size bytes at a bus address, or nil if they're outside memory.
func (m *Memory) At(a vcmem.Addr, size int) []byte {
	b, err := m.Map(a.ARM(), size)
	if err != nil {
		return nil
	}
	return b
}

// Carve takes size bytes aligned to align straight from the arena, returning
// the physical address, or 0 when memory is exhausted.
func (m *Memory) Carve(size, align uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carve(size, align)
}

func (m *Memory) carve(size, align uint32) uint32 {
	if align == 0 {
		align = 1
	}
	p := (m.next + align - 1) / align * align
	if uint64(p-m.Base)+uint64(size) > uint64(len(m.arena)) {
		return 0
	}
	m.next = p + size
	return p
}

func (m *Memory) alloc(size, align uint32, flags mbox.MemFlag) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.carve(size, align)
	if p == 0 {
		return 0
	}
	fill := byte(0xFF)
	if flags&mbox.Zero != 0 {
		fill = 0
	}
	if flags&mbox.NoInit == 0 {
		b := m.arena[p-m.Base : p-m.Base+size]
		for i := range b {
			b[i] = fill
		}
	}
	h := m.nextH
	m.nextH++
	m.handles[h] = &block{phys: p, size: size}
	return h
}

func (m *Memory) lock(h uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.handles[h]
	if !ok {
		return 0
	}
	b.locked = true
	return uint32(vcmem.BusAddr(b.phys, m.Alias))
}

// unlock and release answer 0 for success, like the firmware.
func (m *Memory) unlock(h uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.handles[h]
	if !ok || !b.locked {
		return 1
	}
	b.locked = false
	return 0
}

func (m *Memory) release(h uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handles[h]; !ok {
		return 1
	}
	delete(m.handles, h)
	return 0
}

// Live is the number of allocations not yet released.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
