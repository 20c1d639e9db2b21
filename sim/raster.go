package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Jon-Bright/v3dctl/cl"
	"github.com/Jon-Bright/v3dctl/vcmem"
	"github.com/go-gl/mathgl/mgl32"
)

type vertex struct {
	pos   mgl32.Vec2
	color mgl32.Vec3
}

type binJob struct {
	triangles [][3]vertex
}

var le = binary.LittleEndian

// parseBinning finds the NV shader state and indexed primitives of a
// binning list and fetches the triangles they describe.
func parseBinning(mem *Memory, list []byte) (binJob, error) {
	var job binJob
	cmds, err := cl.Decode(list)
	if err != nil {
		return job, err
	}
	var stride, verts uint32
	for _, c := range cmds {
		switch c.Op {
		case cl.NVShaderState:
			rec := mem.At(vcmem.Addr(le.Uint32(c.Args)), 16)
			if rec == nil {
				return job, errors.New("shader record outside memory")
			}
			stride, verts = uint32(rec[1]), le.Uint32(rec[12:])
		case cl.IndexedPrimitiveList:
			mode := c.Args[0]
			count := le.Uint32(c.Args[1:])
			idx := mem.At(vcmem.Addr(le.Uint32(c.Args[5:])), int(count))
			if idx == nil {
				return job, errors.New("index buffer outside memory")
			}
			if verts == 0 {
				return job, errors.New("primitives before shader state")
			}
			if mode&0xF != cl.PrimTriangle {
				continue
			}
			for i := 0; i+2 < len(idx); i += 3 {
				var tri [3]vertex
				for k := range tri {
					b := mem.At(vcmem.Addr(verts+uint32(idx[i+k])*stride), 24)
					if b == nil {
						return job, fmt.Errorf("vertex %d outside memory", idx[i+k])
					}
					tri[k] = vertex{
						pos: mgl32.Vec2{float32(le.Uint16(b[0:])) / 16, float32(le.Uint16(b[2:])) / 16},
						color: mgl32.Vec3{
							math.Float32frombits(le.Uint32(b[12:])),
							math.Float32frombits(le.Uint32(b[16:])),
							math.Float32frombits(le.Uint32(b[20:])),
						},
					}
				}
				job.triangles = append(job.triangles, tri)
			}
		}
	}
	return job, nil
}

type target struct {
	pix   []byte
	w, h  int
	color uint32
}

// parseRendering finds the framebuffer and clear colour of a rendering list.
func parseRendering(mem *Memory, list []byte) (*target, error) {
	cmds, err := cl.Decode(list)
	if err != nil {
		return nil, err
	}
	t := &target{}
	for _, c := range cmds {
		switch c.Op {
		case cl.ClearColors:
			t.color = le.Uint32(c.Args)
		case cl.TileRenderingModeConfig:
			t.w, t.h = int(le.Uint16(c.Args[0:])), int(le.Uint16(c.Args[2:]))
			fb := vcmem.Addr(le.Uint32(c.Args[9:]))
			t.pix = mem.At(fb, t.w*t.h*4)
			if t.pix == nil {
				return nil, fmt.Errorf("framebuffer %v outside memory", fb)
			}
		}
	}
	if t.pix == nil {
		return nil, errors.New("no tile rendering mode config")
	}
	return t, nil
}

func (t *target) clear() {
	for i := 0; i+4 <= len(t.pix); i += 4 {
		le.PutUint32(t.pix[i:], t.color)
	}
}

func edge(a, b, p mgl32.Vec2) float32 {
	return (b.X()-a.X())*(p.Y()-a.Y()) - (b.Y()-a.Y())*(p.X()-a.X())
}

// draw fills tri with its vertex colours interpolated, sampling at pixel
// centres.
func (t *target) draw(tri [3]vertex) {
	a, b, c := tri[0].pos, tri[1].pos, tri[2].pos
	area := edge(a, b, c)
	if area == 0 {
		return
	}
	minX := int(math.Max(0, math.Floor(float64(min(a.X(), b.X(), c.X())))))
	maxX := int(math.Min(float64(t.w-1), math.Ceil(float64(max(a.X(), b.X(), c.X())))))
	minY := int(math.Max(0, math.Floor(float64(min(a.Y(), b.Y(), c.Y())))))
	maxY := int(math.Min(float64(t.h-1), math.Ceil(float64(max(a.Y(), b.Y(), c.Y())))))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := mgl32.Vec2{float32(x) + 0.5, float32(y) + 0.5}
			w0, w1, w2 := edge(b, c, p)/area, edge(c, a, p)/area, edge(a, b, p)/area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			col := tri[0].color.Mul(w0).Add(tri[1].color.Mul(w1)).Add(tri[2].color.Mul(w2))
			i := (y*t.w + x) * 4
			t.pix[i] = channel(col.X())
			t.pix[i+1] = channel(col.Y())
			t.pix[i+2] = channel(col.Z())
			t.pix[i+3] = 0xFF
		}
	}
}

func channel(v float32) uint8 {
	return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
}
