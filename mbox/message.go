// Package mbox implements the VideoCore mailbox property interface: building
// property messages and exchanging them with the firmware, either through the
// mailbox registers or through the /dev/vcio driver.
//
// Details are from https://github.com/raspberrypi/firmware/wiki/Mailbox-property-interface
package mbox

import (
	"errors"
	"fmt"
	"unsafe"
)

const (
	RequestCode   uint32 = 0x00000000
	ResponseOK    uint32 = 0x80000000
	ResponseFail  uint32 = 0x80000001
	EndTag        uint32 = 0
	TagResponse   uint32 = 1 << 31 // set in a tag's length word when the firmware answered it
	tagHeaderLen         = 3       // id, value buffer size, request/response length
	msgHeaderLen         = 2       // total size, request/response code
	messageAlign         = 16
)

var (
	ErrStillRequest = errors.New("mbox: message still contains a request")
	ErrResponse     = errors.New("mbox: firmware answered with an error")
)

// Fault is a failed exchange. It matches ErrStillRequest or ErrResponse with
// errors.Is, depending on the code found in the buffer.
type Fault struct {
	Code uint32
}

func (f *Fault) Error() string {
	if Response(f.Code) == Request {
		return fmt.Sprintf("%v (code %08X)", ErrStillRequest, f.Code)
	}
	return fmt.Sprintf("%v (code %08X)", ErrResponse, f.Code)
}

func (f *Fault) Unwrap() error {
	if Response(f.Code) == Request {
		return ErrStillRequest
	}
	return ErrResponse
}

// ResponseCode classifies word 1 of a property buffer.
type ResponseCode int

const (
	Request ResponseCode = iota
	Success
	Error
)

func (r ResponseCode) String() string {
	switch r {
	case Request:
		return "request"
	case Success:
		return "success"
	}
	return "error"
}

// Response classifies a request/response code. Every value is either still
// a request, a success or an error.
func Response(code uint32) ResponseCode {
	switch code {
	case RequestCode:
		return Request
	case ResponseOK:
		return Success
	}
	return Error
}

// Tag is one tag block of a property message. Size is the value buffer
// size in bytes; the buffer is never smaller than Args.
type Tag struct {
	ID   uint32
	Size int
	Args []uint32
}

func (t Tag) words() int {
	n := (t.Size + 3) / 4
	if n < len(t.Args) {
		n = len(t.Args)
	}
	return n
}

// Message is a property channel buffer. Word 0 is the buffer size in bytes,
// word 1 the request/response code, then the tags and a terminating zero tag.
type Message []uint32

// NewMessage lays out tags into a 16-byte aligned property buffer.
func NewMessage(tags ...Tag) Message {
	n := msgHeaderLen + 1
	for _, t := range tags {
		n += tagHeaderLen + t.words()
	}
	m := alignedWords(n)
	i := 0
	m[i] = uint32(n * 4) // total size
	i++
	m[i] = RequestCode
	i++
	for _, t := range tags {
		w := t.words()
		m[i] = t.ID
		m[i+1] = uint32(w * 4) // value buffer size
		m[i+2] = 0             // bit 31 clear: request
		copy(m[i+tagHeaderLen:], t.Args)
		i += tagHeaderLen + w
	}
	m[i] = EndTag
	return m
}

// alignedWords returns n zeroed words starting on a 16 byte boundary; the
// mailbox only carries the top 28 bits of the buffer address.
func alignedWords(n int) []uint32 {
	buf := make([]uint32, n+messageAlign/4)
	skip := 0
	if off := uintptr(unsafe.Pointer(&buf[0])) % messageAlign; off != 0 {
		skip = int(messageAlign-off) / 4
	}
	return buf[skip : skip+n : skip+n]
}

// Size is the byte size recorded in word 0.
func (m Message) Size() uint32 {
	return m[0]
}

// Code is the request/response code in word 1.
func (m Message) Code() uint32 {
	return m[1]
}

func (m Message) Response() ResponseCode {
	return Response(m[1])
}

// Check turns the response code into an error.
func (m Message) Check() error {
	if m.Response() == Success {
		return nil
	}
	return &Fault{Code: m[1]}
}

// Tag returns the n-th tag block, header included, or nil.
func (m Message) Tag(n int) []uint32 {
	i := msgHeaderLen
	for k := 0; i+tagHeaderLen <= len(m) && m[i] != EndTag; k++ {
		end := i + tagHeaderLen + int(m[i+1]/4)
		if end > len(m) {
			return nil
		}
		if k == n {
			return m[i:end]
		}
		i = end
	}
	return nil
}

// Answered reports whether the firmware set the response bit on the n-th tag.
func (m Message) Answered(n int) bool {
	t := m.Tag(n)
	return t != nil && t[2]&TagResponse != 0
}

// Value reads word w of the n-th tag's value buffer. After a successful
// exchange this is where the firmware puts handles, addresses and rates.
func (m Message) Value(n, w int) (uint32, error) {
	t := m.Tag(n)
	if t == nil {
		return 0, fmt.Errorf("mbox: no tag %d in %d word message", n, len(m))
	}
	if tagHeaderLen+w >= len(t) {
		return 0, fmt.Errorf("mbox: tag %08X has no value word %d", t[0], w)
	}
	return t[tagHeaderLen+w], nil
}
