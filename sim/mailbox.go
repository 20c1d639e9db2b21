package sim

import (
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/vcmem"
	log "github.com/sirupsen/logrus"
)

// Mailbox is the ARM side of the mailbox registers, answered by a Firmware.
// A written address is looked up first among the messages handed out by
// Addr, then in the firmware's memory, where a message written through a
// mapping of VideoCore memory would be.
type Mailbox struct {
	fw *Firmware

	mu      sync.Mutex
	next    uint32
	msgs    map[uint32]mbox.Message
	replies []uint32
}

func NewMailbox(fw *Firmware) *Mailbox {
	return &Mailbox{
		fw:   fw,
		next: 0x00100000,
		msgs: map[uint32]mbox.Message{},
	}
}

// Addr is an mbox.AddrFunc. The address stays valid until the reply is read.
func (s *Mailbox) Addr(m mbox.Message) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.next
	s.next += 0x10
	s.msgs[a] = m
	return a
}

func (s *Mailbox) Read(off uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch off {
	case mbox.RegRead:
		if len(s.replies) == 0 {
			return 0
		}
		v := s.replies[0]
		s.replies = s.replies[1:]
		delete(s.msgs, v&^0xF)
		return v
	case mbox.RegStatus:
		if len(s.replies) == 0 {
			return mbox.StatusEmpty
		}
	}
	return 0
}

func (s *Mailbox) Write(off, val uint32) {
	if off != mbox.RegWrite {
		return
	}
	s.mu.Lock()
	m, ok := s.msgs[val&^0xF]
	s.mu.Unlock()
	if !ok {
		m, ok = s.inMemory(vcmem.Addr(val &^ 0xF))
	}
	if !ok || val&0xF != mbox.ChannelProperty {
		log.WithField("val", val).Warn("sim: mailbox write for no known message")
		return
	}
	// A failed message is still answered; the caller sees the response code.
	_ = s.fw.Send(m)
	s.mu.Lock()
	s.replies = append(s.replies, val)
	s.mu.Unlock()
}

// inMemory finds a message at a bus address in the firmware's memory.
func (s *Mailbox) inMemory(a vcmem.Addr) (mbox.Message, bool) {
	if s.fw.Mem == nil {
		return nil, false
	}
	hdr := s.fw.Mem.At(a, 8)
	if hdr == nil {
		return nil, false
	}
	size := int(binary.LittleEndian.Uint32(hdr))
	b := s.fw.Mem.At(a, size)
	if b == nil || size < 12 {
		return nil, false
	}
	return mbox.Message(unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), size/4)), true
}
