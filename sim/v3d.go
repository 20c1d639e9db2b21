package sim

import (
	"sync"

	"github.com/Jon-Bright/v3dctl/v3d"
	"github.com/Jon-Bright/v3dctl/vcmem"
	log "github.com/sirupsen/logrus"
)

// V3D is a V3D register block. Writing a control list thread's end address
// runs the list at once: the binner records what it was given, the renderer
// draws the binned triangles into the framebuffer named by the render list.
type V3D struct {
	// Mem is where control lists and framebuffers live. Without it lists
	// complete but draw nothing.
	Mem *Memory
	// Stuck stops control lists from ever completing.
	Stuck bool

	mu     sync.Mutex
	regs   [v3d.RegsSize / 4]uint32
	binned binJob
	frames int
	bins   int
	writes []RegWrite
}

// RegWrite is one register write, kept for inspection.
type RegWrite struct {
	Reg v3d.Reg
	Val uint32
}

func NewV3D(mem *Memory) *V3D {
	s := &V3D{Mem: mem}
	s.regs[v3d.Ident0/4] = v3d.Ident0Want
	s.regs[v3d.Ident1/4] = 0x0E412152 // 3 slices of 4 QPUs
	s.regs[v3d.Ident2/4] = 0x00000222
	return s
}

func (s *V3D) Read(off uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[off/4]
}

func (s *V3D) Write(off uint32, val uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := v3d.Reg(off)
	s.writes = append(s.writes, RegWrite{r, val})
	switch r {
	case v3d.CT0CS, v3d.CT1CS:
		// Writing the run bit stops the thread; it's idle at once.
		s.regs[off/4] = val &^ v3d.CSRun
		return
	case v3d.Ident0, v3d.Ident1, v3d.Ident2:
		return
	}
	s.regs[off/4] = val
	if s.Stuck {
		return
	}
	switch r {
	case v3d.CT0EA:
		s.bin(vcmem.Addr(s.regs[v3d.CT0CA/4]), vcmem.Addr(val))
		s.regs[v3d.CT0CA/4] = val
		s.regs[v3d.BinningFlushCnt/4] = 0
		s.bins++
	case v3d.CT1EA:
		s.render(vcmem.Addr(s.regs[v3d.CT1CA/4]), vcmem.Addr(val))
		s.regs[v3d.CT1CA/4] = val
		s.regs[v3d.RenderFrameCnt/4] = 0
		s.frames++
	}
}

// Set forces a register to a value, bypassing the write side effects.
func (s *V3D) Set(r v3d.Reg, val uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[r/4] = val
}

// Runs is the number of binning and rendering lists completed.
func (s *V3D) Runs() (bins, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bins, s.frames
}

// Writes returns every register write so far.
func (s *V3D) Writes() []RegWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RegWrite(nil), s.writes...)
}

func (s *V3D) list(start, end vcmem.Addr) []byte {
	if s.Mem == nil || end < start {
		return nil
	}
	return s.Mem.At(start, int(end-start))
}

func (s *V3D) bin(start, end vcmem.Addr) {
	l := s.list(start, end)
	if l == nil {
		return
	}
	job, err := parseBinning(s.Mem, l)
	if err != nil {
		log.WithError(err).Warn("sim: bad binning list")
		s.regs[v3d.CT0CS/4] |= v3d.CSOutOfMemory
		return
	}
	s.binned = job
}

func (s *V3D) render(start, end vcmem.Addr) {
	l := s.list(start, end)
	if l == nil {
		return
	}
	target, err := parseRendering(s.Mem, l)
	if err != nil {
		log.WithError(err).Warn("sim: bad rendering list")
		s.regs[v3d.CT1CS/4] |= v3d.CSOutOfMemory
		return
	}
	target.clear()
	for _, tri := range s.binned.triangles {
		target.draw(tri)
	}
	s.regs[v3d.PerfCntr(0)/4] += uint32(len(s.binned.triangles))
}
