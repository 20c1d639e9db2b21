package rpi

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/mmio"
	"github.com/Jon-Bright/v3dctl/v3d"
	"github.com/Jon-Bright/v3dctl/vcmem"
	mmap "github.com/edsrzf/mmap-go"
	log "github.com/sirupsen/logrus"
)

// Many details here are from the BCM2835 reference at
// https://www.raspberrypi.org/app/uploads/2012/02/BCM2835-ARM-Peripherals.pdf

const (
	MEM_FILE    = "/dev/mem"
	PAGE_SIZE   = 4096 // Theoretically, we could get this via whatever getconf does
	MBOX_OFFSET = 0xB880
	MBOX_SIZE   = 0x40
	bounceSize  = 4096
)

// mapMem opens /dev/mem and uses mmap to map a given physical address into our address space.
// Since the mapping has to start at a page boundary, the physical address is rounded down to the
// nearest page boundary. mapMem returns the mapped memory and the offset that should be used to
// access it (=physAddr%PAGE_SIZE).
func mapMem(physAddr uint32, size int) (mmap.MMap, int, error) {
	f, err := os.OpenFile(MEM_FILE, os.O_RDWR|os.O_SYNC, os.ModePerm)
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't open %s: %w", MEM_FILE, err)
	}
	defer f.Close() // Ignore error

	pagemask := ^uint32(PAGE_SIZE - 1)
	mapAddr := physAddr & pagemask
	size += int(physAddr - mapAddr)
	log.WithFields(log.Fields{
		"phys": fmt.Sprintf("%08X", physAddr),
		"page": fmt.Sprintf("%08X", mapAddr),
		"size": size,
	}).Debug("rpi: mapping /dev/mem")
	mm, err := mmap.MapRegion(f, size, mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't map region (%08X, %v): %w", physAddr, size, err)
	}
	return mm, int(physAddr - mapAddr), nil
}

// Map implements vcmem.Mapper. The mapping lasts until Close.
func (rp *RPi) Map(phys uint32, size int) ([]byte, error) {
	mm, offs, err := mapMem(phys, size)
	if err != nil {
		return nil, err
	}
	rp.mu.Lock()
	rp.maps = append(rp.maps, mm)
	rp.mu.Unlock()
	return mm[offs : offs+size : offs+size], nil
}

func (rp *RPi) regs(phys uint32, size int) (*mmio.Block, error) {
	b, err := rp.Map(phys, size)
	if err != nil {
		return nil, err
	}
	return mmio.BlockFromBytes(b), nil
}

// MailboxRegs maps the ARM side of the VideoCore mailbox.
func (rp *RPi) MailboxRegs() (*mmio.Block, error) {
	return rp.regs(rp.hw.periphBase+MBOX_OFFSET, MBOX_SIZE)
}

// V3DRegs maps the V3D register block.
func (rp *RPi) V3DRegs() (*mmio.Block, error) {
	return rp.regs(rp.hw.periphBase+v3d.Offset, v3d.RegsSize)
}

// Close unmaps everything Map mapped.
func (rp *RPi) Close() error {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	var errs []error
	for _, mm := range rp.maps {
		errs = append(errs, mm.Unmap())
	}
	rp.maps = nil
	return errors.Join(errs...)
}

// Bounce carries property messages for a register mailbox through a buffer
// of VideoCore memory, since the firmware can only read messages at a bus
// address and Go memory has none.
type Bounce struct {
	mb    *mbox.Mailbox
	buf   *vcmem.Buffer
	words []uint32
}

// NewBounce allocates the bounce buffer with alloc, which must work without
// mb (normally it's over /dev/vcio).
func NewBounce(mb *mbox.Mailbox, alloc *vcmem.Allocator) (*Bounce, error) {
	buf, err := alloc.AllocAndLock(bounceSize, PAGE_SIZE, mbox.Direct|mbox.Zero)
	if err != nil {
		return nil, fmt.Errorf("couldn't get mailbox bounce buffer: %w", err)
	}
	b := buf.Bytes()
	mb.Addr = func(mbox.Message) uint32 { return uint32(buf.Addr) }
	return &Bounce{
		mb:    mb,
		buf:   buf,
		words: unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4),
	}, nil
}

func (b *Bounce) Send(m mbox.Message) error {
	if len(m) > len(b.words) {
		return fmt.Errorf("rpi: %d byte message doesn't fit the %d byte bounce buffer", len(m)*4, len(b.words)*4)
	}
	bm := mbox.Message(b.words[:len(m)])
	copy(bm, m)
	err := b.mb.Send(bm)
	copy(m, bm)
	return err
}

// Addr is the bus address of the bounce buffer.
func (b *Bounce) Addr() vcmem.Addr {
	return b.buf.Addr
}
