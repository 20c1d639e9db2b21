// Package fb gets a framebuffer from the firmware and gives the ARM a view
// of it as an image.
package fb

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/vcmem"
	log "github.com/sirupsen/logrus"
)

// Depth is the only pixel depth supported: the V3D renders RGBA8888.
const Depth = 32

var ErrFramebuffer = errors.New("fb: firmware didn't provide a usable framebuffer")

// Framebuffer is the memory the display scans out and the V3D renders into.
type Framebuffer struct {
	Addr   vcmem.Addr
	Width  int
	Height int
	Pitch  int
	Depth  int
	// RGB is false when the firmware insisted on BGR pixels.
	RGB bool

	pix []byte
}

// Allocate asks the firmware for a width x height, 32 bit framebuffer and
// maps it.
func Allocate(t mbox.Transport, m vcmem.Mapper, width, height int) (*Framebuffer, error) {
	msg := mbox.Framebuffer(uint32(width), uint32(height), uint32(width), uint32(height), Depth)
	if err := t.Send(msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFramebuffer, err)
	}
	var vals [5]uint32
	for i, tw := range [][2]int{
		{mbox.FBTagAllocate, 0},
		{mbox.FBTagAllocate, 1},
		{mbox.FBTagPitch, 0},
		{mbox.FBTagDepth, 0},
		{mbox.FBTagPixelOrder, 0},
	} {
		v, err := msg.Value(tw[0], tw[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFramebuffer, err)
		}
		vals[i] = v
	}
	ptr, size, pitch, depth, order := vals[0], vals[1], vals[2], vals[3], vals[4]
	switch {
	case ptr == 0:
		return nil, fmt.Errorf("%w: null pointer", ErrFramebuffer)
	case depth != Depth:
		return nil, fmt.Errorf("%w: depth %d, want %d", ErrFramebuffer, depth, Depth)
	case pitch < uint32(width)*4:
		return nil, fmt.Errorf("%w: pitch %d too small for width %d", ErrFramebuffer, pitch, width)
	case size < pitch*uint32(height):
		return nil, fmt.Errorf("%w: %d bytes too small for %d rows of %d", ErrFramebuffer, size, height, pitch)
	}
	addr := vcmem.Addr(ptr)
	pix, err := m.Map(addr.ARM(), int(size))
	if err != nil {
		return nil, fmt.Errorf("couldn't map framebuffer at %v: %w", addr, err)
	}
	log.WithFields(log.Fields{
		"addr":  addr,
		"size":  size,
		"pitch": pitch,
		"rgb":   order == 1,
	}).Infof("Got %dx%d framebuffer", width, height)
	return &Framebuffer{
		Addr:   addr,
		Width:  width,
		Height: height,
		Pitch:  int(pitch),
		Depth:  int(depth),
		RGB:    order == 1,
		pix:    pix,
	}, nil
}

// Bytes is the framebuffer memory, Pitch bytes per row.
func (f *Framebuffer) Bytes() []byte {
	return f.pix
}

func (f *Framebuffer) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *Framebuffer) offset(x, y int) (int, bool) {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return 0, false
	}
	return y*f.Pitch + x*4, true
}

// RGBAAt is the pixel at x, y, or transparent black outside the buffer.
func (f *Framebuffer) RGBAAt(x, y int) color.RGBA {
	i, ok := f.offset(x, y)
	if !ok {
		return color.RGBA{}
	}
	p := f.pix[i : i+4 : i+4]
	if f.RGB {
		return color.RGBA{p[0], p[1], p[2], p[3]}
	}
	return color.RGBA{p[2], p[1], p[0], p[3]}
}

func (f *Framebuffer) At(x, y int) color.Color {
	return f.RGBAAt(x, y)
}

func (f *Framebuffer) Set(x, y int, c color.Color) {
	i, ok := f.offset(x, y)
	if !ok {
		return
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	p := f.pix[i : i+4 : i+4]
	if f.RGB {
		p[0], p[2] = rgba.R, rgba.B
	} else {
		p[0], p[2] = rgba.B, rgba.R
	}
	p[1], p[3] = rgba.G, rgba.A
}

// Fill sets every pixel to c.
func (f *Framebuffer) Fill(c color.Color) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.Set(x, y, c)
		}
	}
}
