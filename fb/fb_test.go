package fb_test

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Jon-Bright/v3dctl/fb"
	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/sim"
)

// tweaked passes messages to the firmware, then overwrites one answer.
type tweaked struct {
	fw        *sim.Firmware
	tag, word int
	val       uint32
}

func (t *tweaked) Send(m mbox.Message) error {
	if err := t.fw.Send(m); err != nil {
		return err
	}
	m.Tag(t.tag)[3+t.word] = t.val
	return nil
}

func TestAllocate(t *testing.T) {
	mc := sim.NewMachine()
	f, err := fb.Allocate(mc.Firmware, mc.Mem, 64, 48)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if f.Bounds() != image.Rect(0, 0, 64, 48) {
		t.Errorf("bounds got: %v", f.Bounds())
	}
	if f.Pitch != 256 || f.Depth != 32 || !f.RGB {
		t.Errorf("got: pitch %d depth %d rgb %v, want: pitch 256 depth 32 rgb true", f.Pitch, f.Depth, f.RGB)
	}
	if f.Addr.ARM() < sim.MemBase || len(f.Bytes()) != 64*48*4 {
		t.Errorf("got: addr %v, %d bytes", f.Addr, len(f.Bytes()))
	}
	if info := mc.Firmware.Framebuffer(); info.Width != 64 || info.VirtHeight != 48 {
		t.Errorf("firmware framebuffer got: %+v", info)
	}
}

func TestAllocateErrors(t *testing.T) {
	tests := []struct {
		name      string
		tag, word int
		val       uint32
	}{
		{"null pointer", mbox.FBTagAllocate, 0, 0},
		{"16 bit", mbox.FBTagDepth, 0, 16},
		{"short pitch", mbox.FBTagPitch, 0, 100},
		{"short buffer", mbox.FBTagAllocate, 1, 1000},
	}
	for _, tc := range tests {
		mc := sim.NewMachine()
		tr := &tweaked{fw: mc.Firmware, tag: tc.tag, word: tc.word, val: tc.val}
		_, err := fb.Allocate(tr, mc.Mem, 64, 48)
		if !errors.Is(err, fb.ErrFramebuffer) {
			t.Errorf("%s got: %v, want: %v", tc.name, err, fb.ErrFramebuffer)
		}
	}

	mc := sim.NewMachine()
	mc.Firmware.Fail[mbox.TagAllocateFramebuffer] = true
	if _, err := fb.Allocate(mc.Firmware, mc.Mem, 64, 48); !errors.Is(err, mbox.ErrResponse) {
		t.Errorf("failed message got: %v, want: %v", err, mbox.ErrResponse)
	}
}

func TestSetAt(t *testing.T) {
	tests := []struct {
		rgb  bool
		want [4]byte
	}{
		{true, [4]byte{10, 25, 45, 255}},
		{false, [4]byte{45, 25, 10, 255}},
	}
	for _, tc := range tests {
		mc := sim.NewMachine()
		order := uint32(0)
		if tc.rgb {
			order = 1
		}
		tr := &tweaked{fw: mc.Firmware, tag: mbox.FBTagPixelOrder, val: order}
		f, err := fb.Allocate(tr, mc.Mem, 16, 16)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		c := color.RGBA{10, 25, 45, 255}
		f.Set(3, 2, c)
		i := 2*f.Pitch + 3*4
		var got [4]byte
		copy(got[:], f.Bytes()[i:i+4])
		if got != tc.want {
			t.Errorf("rgb %v memory got: %v, want: %v", tc.rgb, got, tc.want)
		}
		if p := f.RGBAAt(3, 2); p != c {
			t.Errorf("rgb %v pixel got: %v, want: %v", tc.rgb, p, c)
		}
		if p := f.RGBAAt(2, 3); p != (color.RGBA{}) {
			t.Errorf("unset pixel got: %v, want: %v", p, color.RGBA{})
		}
		f.Set(16, 0, c)
		f.Set(-1, 0, c)
		if p := f.RGBAAt(16, 0); p != (color.RGBA{}) {
			t.Errorf("outside pixel got: %v", p)
		}
	}
}

func TestFill(t *testing.T) {
	mc := sim.NewMachine()
	f, err := fb.Allocate(mc.Firmware, mc.Mem, 8, 4)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	white := color.RGBA{255, 255, 255, 255}
	f.Fill(white)
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			if p := f.RGBAAt(x, y); p != white {
				t.Fatalf("pixel %d,%d got: %v, want: %v", x, y, p, white)
			}
		}
	}
}
