package rpi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/sim"
	"github.com/Jon-Bright/v3dctl/vcmem"
)

func TestParseRevision(t *testing.T) {
	tests := []struct {
		rev    []byte
		periph uint32
		vc     uint32
		name   string
		err    error
	}{
		{[]byte{0x00, 0xA0, 0x20, 0x82}, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 3", nil},
		{[]byte{0x00, 0xA0, 0x10, 0x41}, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 2", nil},
		{[]byte{0x00, 0x00, 0x00, 0x10}, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B+", nil},
		{[]byte{0x00, 0x90, 0x00, 0xC1}, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Pi Zero W v1.1", nil},
		{[]byte{0x00, 0xC0, 0x31, 0x11}, 0, 0, "", ErrUnsupported},
		{[]byte{0x00, 0xD0, 0x31, 0x14}, 0, 0, "", ErrUnsupported},
		{[]byte{0x12, 0x34, 0x56, 0x78}, 0, 0, "", ErrUnknownBoard},
	}
	for _, tc := range tests {
		hw, err := parseRevision(tc.rev)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("% X got: %v, want: %v", tc.rev, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("% X: %v", tc.rev, err)
		}
		if hw.periphBase != tc.periph || hw.vcBase != tc.vc || hw.name != tc.name {
			t.Errorf("% X got: %08X %08X %q, want: %08X %08X %q", tc.rev, hw.periphBase, hw.vcBase, hw.name, tc.periph, tc.vc, tc.name)
		}
	}
	if _, err := parseRevision([]byte{0xA0, 0x20}); err == nil {
		t.Errorf("short revision got: no error")
	}
}

func TestDetectHardware(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linux,revision")
	if err := os.WriteFile(path, []byte{0x00, 0xA2, 0x20, 0x82}, 0644); err != nil {
		t.Fatal(err)
	}
	hw, err := detectHardware(path)
	if err != nil {
		t.Fatalf("detectHardware: %v", err)
	}
	if hw.periphBase != PERIPH_BASE_RPI2 {
		t.Errorf("periph got: %08X, want: %08X", hw.periphBase, PERIPH_BASE_RPI2)
	}
	if _, err := detectHardware(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file got: %v, want: %v", err, os.ErrNotExist)
	}
}

func TestBounce(t *testing.T) {
	mc := sim.NewMachine()
	alloc := vcmem.NewAllocator(mc.Firmware, mc.Mem)
	b, err := NewBounce(mbox.NewMailbox(mc.Mailbox), alloc)
	if err != nil {
		t.Fatalf("NewBounce: %v", err)
	}
	if b.Addr().ARM() < sim.MemBase {
		t.Errorf("bounce addr got: %v", b.Addr())
	}
	m := mbox.GetMaxClockRate(mbox.ClockV3D)
	if err := b.Send(m); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if v, _ := m.Value(0, 1); v != 300000000 {
		t.Errorf("max rate got: %d, want: 300000000", v)
	}

	mc.Firmware.Fail[mbox.TagGetClockRate] = true
	m = mbox.GetClockRate(mbox.ClockV3D)
	if err := b.Send(m); !errors.Is(err, mbox.ErrResponse) {
		t.Errorf("failing send got: %v, want: %v", err, mbox.ErrResponse)
	}
	if m.Code() != mbox.ResponseFail {
		t.Errorf("code copied back got: %08X, want: %08X", m.Code(), mbox.ResponseFail)
	}

	if err := b.Send(make(mbox.Message, 2000)); err == nil {
		t.Errorf("oversized message got: no error")
	}
}
