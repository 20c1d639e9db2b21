package sim

import (
	"github.com/Jon-Bright/v3dctl/mbox"
)

// Default memory layout of a Machine: 16MB of "GPU memory" at 0x10000000.
const (
	MemBase uint32 = 0x10000000
	MemSize        = 16 << 20
)

// Machine is a whole simulated VideoCore: memory, the firmware behind the
// mailbox, and the two register blocks.
type Machine struct {
	Mem      *Memory
	Firmware *Firmware
	V3D      *V3D
	Mailbox  *Mailbox
}

func NewMachine() *Machine {
	mem := NewMemory(MemBase, MemSize)
	fw := NewFirmware(mem)
	return &Machine{
		Mem:      mem,
		Firmware: fw,
		V3D:      NewV3D(mem),
		Mailbox:  NewMailbox(fw),
	}
}

// Transport is the firmware reached through the mailbox registers, as
// mbox.Mailbox drives real hardware.
func (m *Machine) Transport() *mbox.Mailbox {
	mb := mbox.NewMailbox(m.Mailbox)
	mb.Addr = m.Mailbox.Addr
	return mb
}
