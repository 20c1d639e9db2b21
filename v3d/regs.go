// Package v3d drives the VideoCore IV 3D block: bring-up over the mailbox,
// register access, a status report, and a Scene that builds and submits the
// binning and rendering control lists.
package v3d

import (
	"github.com/Jon-Bright/v3dctl/mmio"
)

// Offset of the V3D registers from the peripheral base.
const Offset = 0xC00000

// Ident0Want is what Ident0 reads on a VideoCore IV ("V3D" and revision 2).
const Ident0Want uint32 = 0x02443356

// Reg is a V3D register offset.
type Reg uint32

const (
	Ident0  Reg = 0x000 // V3D block identity
	Ident1  Reg = 0x004 // configuration A
	Ident2  Reg = 0x008 // configuration B
	Scratch Reg = 0x010

	L2CacheCtrl    Reg = 0x020
	SliceCacheCtrl Reg = 0x024

	InterruptCtrl    Reg = 0x030
	InterruptEnable  Reg = 0x034
	InterruptDisable Reg = 0x038

	// Control list executor threads: 0 bins, 1 renders.
	CT0CS Reg = 0x100
	CT1CS Reg = 0x104
	CT0EA Reg = 0x108
	CT1EA Reg = 0x10C
	CT0CA Reg = 0x110
	CT1CA Reg = 0x114
	CT0RA Reg = 0x118
	CT1RA Reg = 0x11C
	CT0LC Reg = 0x120
	CT1LC Reg = 0x124
	CT0PC Reg = 0x128
	CT1PC Reg = 0x12C

	PipelineCS      Reg = 0x130
	BinningFlushCnt Reg = 0x134
	RenderFrameCnt  Reg = 0x138

	BinningMemPool       Reg = 0x300
	FreeBinningMemPool   Reg = 0x304
	BinningOverspill     Reg = 0x308
	BinningOverspillSize Reg = 0x30C
	BinnerDebug          Reg = 0x310

	ReserveQPUBank0 Reg = 0x410
	ReserveQPUBank1 Reg = 0x414
	QPUSchedCtrl    Reg = 0x418

	QPUUserProgAddr        Reg = 0x430
	QPUUserProgUniforms    Reg = 0x434
	QPUUserProgUniformsLen Reg = 0x438
	QPUUserProgCS          Reg = 0x43C

	VPMAllocCtrl Reg = 0x500
	VPMBase      Reg = 0x504

	PerfCntrClr    Reg = 0x670
	PerfCntrEnable Reg = 0x674
	// Counter n is at PerfCntr0+8n, its mapping at PerfCntrMap0+8n.
	PerfCntr0    Reg = 0x680
	PerfCntrMap0 Reg = 0x684

	PSEErrors               Reg = 0xF00
	FEPOverrunErrors        Reg = 0xF04
	FEPInterfaceStatus      Reg = 0xF08
	FEPInternalReadySignals Reg = 0xF0C
	FEPInternalStallSignals Reg = 0xF10
	MiscErrors              Reg = 0xF20

	// Size of the register block to map.
	RegsSize = 0x1000
)

// PerfCntr is performance counter n, 0-15.
func PerfCntr(n int) Reg {
	return PerfCntr0 + Reg(8*n)
}

// PerfCntrMap is the event mapping of counter n.
func PerfCntrMap(n int) Reg {
	return PerfCntrMap0 + Reg(8*n)
}

// Control list thread status bits.
const (
	CSRun         uint32 = 0x20
	CSOutOfMemory uint32 = 0x200
	CSQueueFull   uint32 = 0x400
	CSDMAOverflow uint32 = 0x800
	csErrors             = CSOutOfMemory | CSQueueFull | CSDMAOverflow
)

// V3D is the V3D register block.
type V3D struct {
	regs mmio.Regs
	// Poll bounds every wait on the hardware. The zero value waits forever.
	Poll mmio.Poll
}

func New(regs mmio.Regs) *V3D {
	return &V3D{regs: regs}
}

func (v *V3D) Read(r Reg) uint32 {
	return v.regs.Read(uint32(r))
}

func (v *V3D) Write(r Reg, val uint32) {
	v.regs.Write(uint32(r), val)
}
