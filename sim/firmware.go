package sim

import (
	"sync"

	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/vcmem"
	log "github.com/sirupsen/logrus"
)

// Firmware answers property messages the way the VideoCore firmware does.
type Firmware struct {
	Mem *Memory
	// Fail makes the whole message fail when it carries one of these tags.
	Fail map[uint32]bool

	mu       sync.Mutex
	rates    map[uint32]uint32
	maxRates map[uint32]uint32
	qpu      bool
	fb       FramebufferInfo
	sent     []uint32
}

// FramebufferInfo is the framebuffer as last configured.
type FramebufferInfo struct {
	Width, Height         uint32
	VirtWidth, VirtHeight uint32
	Depth                 uint32
	PixelOrder            uint32
	Addr                  uint32
	Size                  uint32
}

func NewFirmware(mem *Memory) *Firmware {
	return &Firmware{
		Mem:  mem,
		Fail: map[uint32]bool{},
		rates: map[uint32]uint32{
			mbox.ClockARM:  600000000,
			mbox.ClockCore: 250000000,
			mbox.ClockV3D:  250000000,
		},
		maxRates: map[uint32]uint32{
			mbox.ClockARM:  1200000000,
			mbox.ClockCore: 400000000,
			mbox.ClockV3D:  300000000,
		},
	}
}

// QPU reports whether the QPUs are switched on.
func (f *Firmware) QPU() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.qpu
}

func (f *Firmware) Framebuffer() FramebufferInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fb
}

// Sent lists the tag IDs of every message received, in order.
func (f *Firmware) Sent() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.sent...)
}

func (f *Firmware) Send(m mbox.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m[1] = mbox.ResponseOK
	for n := 0; ; n++ {
		t := m.Tag(n)
		if t == nil {
			break
		}
		f.sent = append(f.sent, t[0])
		if f.Fail[t[0]] {
			m[1] = mbox.ResponseFail
			continue
		}
		if l, ok := f.answer(t[0], t[3:]); ok {
			t[2] = mbox.TagResponse | uint32(l*4)
		}
	}
	return m.Check()
}

// answer fills in the value buffer v of tag id and returns the number of
// response words, or false for a tag it doesn't know.
func (f *Firmware) answer(id uint32, v []uint32) (int, bool) {
	switch id {
	case mbox.TagGetFirmwareRevision:
		v[0] = 0x5F0A0000
		return 1, true
	case mbox.TagGetBoardRevision:
		v[0] = 0xA02082
		return 1, true

	case mbox.TagAllocateMemory:
		v[0] = f.Mem.alloc(v[0], v[1], mbox.MemFlag(v[2]))
		return 1, true
	case mbox.TagLockMemory:
		v[0] = f.Mem.lock(v[0])
		return 1, true
	case mbox.TagUnlockMemory:
		v[0] = f.Mem.unlock(v[0])
		return 1, true
	case mbox.TagReleaseMemory:
		v[0] = f.Mem.release(v[0])
		return 1, true

	case mbox.TagGetClockRate:
		v[1] = f.rates[v[0]]
		return 2, true
	case mbox.TagGetMaxClockRate:
		v[1] = f.maxRates[v[0]]
		return 2, true
	case mbox.TagSetClockRate:
		r := v[1]
		if limit := f.maxRates[v[0]]; r > limit {
			r = limit
		}
		f.rates[v[0]] = r
		v[1] = r
		return 2, true

	case mbox.TagEnableQPU:
		f.qpu = v[0] != 0
		v[0] = 0
		return 1, true
	case mbox.TagExecuteQPU, mbox.TagExecuteCode:
		log.WithField("tag", id).Debug("sim: ignoring code execution")
		v[0] = 0
		return 1, true

	case mbox.TagSetPhysicalWidthHeight:
		f.fb.Width, f.fb.Height = v[0], v[1]
		return 2, true
	case mbox.TagSetVirtualWidthHeight:
		f.fb.VirtWidth, f.fb.VirtHeight = v[0], v[1]
		return 2, true
	case mbox.TagSetVirtualOffset:
		return 2, true
	case mbox.TagSetDepth:
		f.fb.Depth = v[0]
		return 1, true
	case mbox.TagSetPixelOrder:
		f.fb.PixelOrder = v[0]
		return 1, true
	case mbox.TagAllocateFramebuffer:
		size := f.fb.VirtWidth * f.fb.VirtHeight * f.fb.Depth / 8
		p := f.Mem.Carve(size, v[0])
		f.fb.Addr, f.fb.Size = 0, 0
		if p != 0 {
			f.fb.Addr, f.fb.Size = uint32(vcmem.BusAddr(p, f.Mem.Alias)), size
		}
		v[0], v[1] = f.fb.Addr, f.fb.Size
		return 2, true
	case mbox.TagGetPitch:
		v[0] = f.fb.VirtWidth * f.fb.Depth / 8
		return 1, true
	}
	return 0, false
}
