package mbox

import (
	"fmt"
	"unsafe"

	"github.com/Jon-Bright/v3dctl/mmio"
	log "github.com/sirupsen/logrus"
)

// Transport exchanges a property message with the firmware. On success the
// firmware's answer has been written into m.
type Transport interface {
	Send(m Message) error
}

// Mailbox channels. Only the property channel is used here.
const (
	ChannelPower       uint32 = 0
	ChannelFramebuffer uint32 = 1
	ChannelVUART       uint32 = 2
	ChannelVCHIQ       uint32 = 3
	ChannelLEDs        uint32 = 4
	ChannelButtons     uint32 = 5
	ChannelTouch       uint32 = 6
	ChannelCount       uint32 = 7
	ChannelProperty    uint32 = 8
)

// Mailbox register offsets from the mailbox base (periphBase + 0xB880), and
// status bits.
const (
	RegRead   uint32 = 0x00
	RegPoll   uint32 = 0x10
	RegSender uint32 = 0x14
	RegStatus uint32 = 0x18
	RegConfig uint32 = 0x1C
	RegWrite  uint32 = 0x20

	StatusFull  uint32 = 0x80000000
	StatusEmpty uint32 = 0x40000000

	channelMask uint32 = 0xF
)

// AddrFunc gives the address the VideoCore sees for a message buffer.
type AddrFunc func(m Message) uint32

// PointerAddr is the AddrFunc for an identity mapped address space: the
// buffer's own address, truncated to 32 bits.
func PointerAddr(m Message) uint32 {
	return uint32(uintptr(unsafe.Pointer(&m[0])))
}

// Mailbox talks to the firmware through the mailbox registers directly.
// It blocks until the firmware answers; Poll bounds the wait.
type Mailbox struct {
	regs    mmio.Regs
	Channel uint32
	Addr    AddrFunc
	Poll    mmio.Poll
}

// NewMailbox returns a property channel Mailbox over regs.
func NewMailbox(regs mmio.Regs) *Mailbox {
	return &Mailbox{
		regs:    regs,
		Channel: ChannelProperty,
		Addr:    PointerAddr,
	}
}

// Send writes the address of m to the mailbox and waits for the same value
// to come back. Replies for other buffers or channels are read and dropped.
func (mb *Mailbox) Send(m Message) error {
	want := mb.Addr(m)&^channelMask | mb.Channel&channelMask
	err := mb.Poll.Clear(mb.regs, RegStatus, StatusFull)
	if err != nil {
		return fmt.Errorf("mbox: waiting for space to write: %w", err)
	}
	mb.regs.Write(RegWrite, want)

	err = mb.Poll.Until(func() bool {
		if mb.regs.Read(RegStatus)&StatusEmpty != 0 {
			return false
		}
		got := mb.regs.Read(RegRead)
		if got != want {
			log.WithField("got", fmt.Sprintf("%08X", got)).Debug("mbox: ignoring reply for another buffer")
			return false
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("mbox: waiting for reply to %08X: %w", want, err)
	}
	return m.Check()
}
