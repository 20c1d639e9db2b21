// Package vcmem allocates, locks and maps VideoCore memory through the
// mailbox property interface.
package vcmem

import (
	"errors"
	"fmt"

	"github.com/Jon-Bright/v3dctl/mbox"
	log "github.com/sirupsen/logrus"
)

var (
	ErrAllocMemory = errors.New("vcmem: couldn't allocate VideoCore memory")
	ErrLockMemory  = errors.New("vcmem: couldn't lock VideoCore memory")
)

// aliasMask selects the cache alias bits of a bus address.
const aliasMask = 0xC0000000

// Handle identifies an allocation to the firmware.
type Handle uint32

// Addr is an address as the VideoCore sees it, alias bits included. This is
// the form that goes into control lists and shader records.
type Addr uint32

// ARM strips the alias bits, giving the physical address the ARM uses.
func (a Addr) ARM() uint32 {
	return uint32(a) &^ aliasMask
}

// Alias is the alias bits of a.
func (a Addr) Alias() uint32 {
	return uint32(a) & aliasMask
}

func (a Addr) String() string {
	return fmt.Sprintf("%08X", uint32(a))
}

// BusAddr puts the alias bits of alias onto an ARM physical address.
func BusAddr(arm uint32, alias uint32) Addr {
	return Addr(arm&^aliasMask | alias&aliasMask)
}

// Mapper makes physical memory reachable from the ARM.
type Mapper interface {
	Map(phys uint32, size int) ([]byte, error)
}

// Buffer is a locked allocation and the ARM's view of it.
type Buffer struct {
	Handle Handle
	Addr   Addr
	Size   int
	buf    []byte
}

// Bytes is the mapped memory. Writes land in VideoCore memory.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// End is the bus address one past the buffer.
func (b *Buffer) End() Addr {
	return b.Addr + Addr(b.Size)
}

// Allocator hands out VideoCore memory.
type Allocator struct {
	t mbox.Transport
	m Mapper
}

func NewAllocator(t mbox.Transport, m Mapper) *Allocator {
	return &Allocator{t: t, m: m}
}

// Alloc asks the firmware for size bytes. A zero handle means the firmware
// has run out of memory.
func (a *Allocator) Alloc(size, align uint32, flags mbox.MemFlag) (Handle, error) {
	m := mbox.MemAlloc(size, align, flags)
	if err := a.t.Send(m); err != nil {
		return 0, fmt.Errorf("%w: %d bytes: %w", ErrAllocMemory, size, err)
	}
	h, err := m.Value(0, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAllocMemory, err)
	}
	if h == 0 {
		return 0, fmt.Errorf("%w: %d bytes: out of memory", ErrAllocMemory, size)
	}
	return Handle(h), nil
}

// Lock pins h and returns its bus address. h must have come from Alloc.
func (a *Allocator) Lock(h Handle) (Addr, error) {
	m := mbox.MemLock(uint32(h))
	if err := a.t.Send(m); err != nil {
		return 0, fmt.Errorf("%w: handle %X: %w", ErrLockMemory, h, err)
	}
	addr, err := m.Value(0, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLockMemory, err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("%w: handle %X: no bus address", ErrLockMemory, h)
	}
	return Addr(addr), nil
}

func (a *Allocator) Unlock(h Handle) error {
	m := mbox.MemUnlock(uint32(h))
	return a.status(m, "unlock", h)
}

func (a *Allocator) Release(h Handle) error {
	m := mbox.MemFree(uint32(h))
	return a.status(m, "free", h)
}

func (a *Allocator) status(m mbox.Message, op string, h Handle) error {
	if err := a.t.Send(m); err != nil {
		return fmt.Errorf("couldn't %s handle %X: %w", op, h, err)
	}
	s, err := m.Value(0, 0)
	if err != nil {
		return fmt.Errorf("couldn't %s handle %X: %w", op, h, err)
	}
	if s != 0 {
		return fmt.Errorf("couldn't %s handle %X: status non-zero: %v", op, h, s)
	}
	return nil
}

// AllocAndLock allocates, locks and maps size bytes. On failure, anything
// already done is undone in reverse order.
func (a *Allocator) AllocAndLock(size, align uint32, flags mbox.MemFlag) (*Buffer, error) {
	h, err := a.Alloc(size, align, flags)
	if err != nil {
		return nil, err
	}
	addr, err := a.Lock(h)
	if err != nil {
		a.Release(h) // Ignore error
		return nil, err
	}
	buf, err := a.m.Map(addr.ARM(), int(size))
	if err != nil {
		a.Unlock(h)  // Ignore error
		a.Release(h) // Ignore error
		return nil, fmt.Errorf("couldn't map busAddr(%v) of size %v: %w", addr, size, err)
	}
	log.WithFields(log.Fields{
		"handle":  fmt.Sprintf("%X", uint32(h)),
		"busaddr": addr,
		"size":    size,
	}).Debug("vcmem: locked buffer")
	return &Buffer{Handle: h, Addr: addr, Size: int(size), buf: buf}, nil
}

// Free unlocks then releases b. Buffers that live as long as the process
// are never freed. The mapping itself belongs to the Mapper and stays until
// the Mapper is closed (RPi.Close); only b's view of it is dropped.
func (a *Allocator) Free(b *Buffer) error {
	b.buf = nil
	err := a.Unlock(b.Handle)
	te := a.Release(b.Handle)
	if err == nil {
		err = te
	}
	b.Handle = 0
	return err
}
