package mmio

import (
	"errors"
	"testing"
	"time"
)

func TestBlockReadWrite(t *testing.T) {
	b := NewBlock(make([]uint32, 4))
	b.Write(0x8, 0xDEADBEEF)
	if got := b.Read(0x8); got != 0xDEADBEEF {
		t.Errorf("read back got: %08X, want: %08X", got, uint32(0xDEADBEEF))
	}
	if got := b.Read(0x4); got != 0 {
		t.Errorf("untouched register got: %08X, want: 0", got)
	}
	if b.Len() != 16 {
		t.Errorf("len got: %d, want: 16", b.Len())
	}
}

func TestBlockFromBytes(t *testing.T) {
	// A mapping arrives as bytes.
	b := make([]byte, 8)
	b[4], b[5], b[6], b[7] = 0x04, 0x03, 0x02, 0x01
	blk := BlockFromBytes(b)
	if got := blk.Read(4); got != 0x01020304 {
		t.Errorf("little-endian read got: %08X, want: %08X", got, 0x01020304)
	}
}

func TestBlockPanics(t *testing.T) {
	tests := []struct {
		name string
		off  uint32
	}{
		{"misaligned", 2},
		{"out of range", 0x10},
	}
	for _, test := range tests {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: no panic for offset %#x", test.name, test.off)
				}
			}()
			NewBlock(make([]uint32, 4)).Read(test.off)
		}()
	}
}

func TestPollUntil(t *testing.T) {
	n := 0
	err := Poll{}.Until(func() bool {
		n++
		return n == 5
	})
	if err != nil {
		t.Fatalf("unbounded poll failed: %v", err)
	}
	if n != 5 {
		t.Errorf("reads got: %d, want: 5", n)
	}
}

func TestPollAttempts(t *testing.T) {
	n := 0
	err := Poll{Attempts: 3}.Until(func() bool {
		n++
		return false
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got: %v, want: ErrTimeout", err)
	}
	if n != 3 {
		t.Errorf("reads got: %d, want: 3", n)
	}
}

func TestPollTimeout(t *testing.T) {
	p := Poll{Timeout: 5 * time.Millisecond, Interval: time.Millisecond}
	err := p.Until(func() bool { return false })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got: %v, want: ErrTimeout", err)
	}
	if !p.Bounded() || (Poll{}).Bounded() {
		t.Errorf("Bounded() wrong for %+v or zero value", p)
	}
}

func TestPollRegisterHelpers(t *testing.T) {
	b := NewBlock(make([]uint32, 1))
	b.Write(0, 0x21)
	p := Poll{Attempts: 1}
	if err := p.Set(b, 0, 0x20); err != nil {
		t.Errorf("Set: %v", err)
	}
	if err := p.Clear(b, 0, 0x20); !errors.Is(err, ErrTimeout) {
		t.Errorf("Clear on set bit got: %v, want: ErrTimeout", err)
	}
	if err := p.Equal(b, 0, 0x21); err != nil {
		t.Errorf("Equal: %v", err)
	}
}
