package v3d

import (
	"github.com/Jon-Bright/v3dctl/cl"
	"github.com/go-gl/mathgl/mgl32"
)

// VertexStride is the size of one vertex as the shader record describes it.
const VertexStride = 24

// Vertex is a pre-transformed vertex for the no-vertex-shader pipeline.
// Pos is in screen pixels.
type Vertex struct {
	Pos   mgl32.Vec2
	Z     float32
	InvW  float32
	Color mgl32.Vec3
}

// encode writes v in the NV shader vertex format: x and y as 12.4 fixed
// point, then z, 1/w and the three varyings.
func (v Vertex) encode(w *cl.Writer) {
	w.U16(uint16(v.Pos.X()) << 4)
	w.U16(uint16(v.Pos.Y()) << 4)
	w.F32(v.Z)
	w.F32(v.InvW)
	w.F32(v.Color.X())
	w.F32(v.Color.Y())
	w.F32(v.Color.Z())
}

var (
	red   = mgl32.Vec3{1, 0, 0}
	green = mgl32.Vec3{0, 1, 0}
	blue  = mgl32.Vec3{0, 0, 1}
	cyan  = mgl32.Vec3{0, 1, 1}
)

// TestVertices is the fixed test scene: a triangle in the upper half of the
// screen and a quad of two triangles below it. The seventh vertex is the
// quad's bottom right corner; the scene this was first drawn from put it on
// top of the sixth, leaving the quad's second triangle degenerate.
func TestVertices(width, height uint16) []Vertex {
	cx := float32(uint32(width) / 2)
	halfW := float32(uint32(cx * 0.4))
	halfH := float32(uint32(float32(height/2) * 0.3))
	up := mgl32.Vec2{0, -halfH}
	down := mgl32.Vec2{0, halfH}
	left := mgl32.Vec2{-halfW, 0}
	right := mgl32.Vec2{halfW, 0}

	tri := mgl32.Vec2{cx, float32(uint32(float32(height/2) * 0.4))}
	quad := mgl32.Vec2{cx, float32(uint32(float32(height/2) * 1.35))}
	vert := func(p mgl32.Vec2, c mgl32.Vec3) Vertex {
		return Vertex{Pos: p, Z: 1, InvW: 1, Color: c}
	}
	return []Vertex{
		vert(tri.Add(up), red),
		vert(tri.Add(down).Add(left), blue),
		vert(tri.Add(down).Add(right), green),
		vert(quad.Add(up).Add(left), blue),
		vert(quad.Add(down).Add(left), green),
		vert(quad.Add(up).Add(right), red),
		vert(quad.Add(down).Add(right), cyan),
	}
}

// TestIndices draws TestVertices as three triangles.
var TestIndices = []uint8{0, 1, 2, 3, 4, 5, 4, 6, 5}

// VaryingShader is a fragment shader that writes the interpolated vertex
// colour to the tile buffer.
var VaryingShader = []uint32{
	0x958e0dbf, 0xd1724823, // mov r0, vary; mov r3.8d, 1.0
	0x818e7176, 0x40024821, // fadd r0, r0, r5; mov r1, vary
	0x818e7376, 0x10024862, // fadd r1, r1, r5; mov r2, vary
	0x819e7540, 0x114248a3, // fadd r2, r2, r5; mov r3.8a, r0
	0x809e7009, 0x115049e3, // nop; mov r3.8b, r1
	0x809e7012, 0x116049e3, // nop; mov r3.8c, r2
	0x159e76c0, 0x30020ba7, // mov tlbc, r3; nop; thrend
	0x009e7000, 0x100009e7, // nop; nop; nop
	0x009e7000, 0x500009e7, // nop; nop; sbdone
}

// FillShader writes solid white.
var FillShader = []uint32{
	0x009E7000, 0x100009E7, // nop; nop; nop
	0xFFFFFFFF, 0xE0020BA7, // ldi tlbc, RGBA White
	0x009E7000, 0x500009E7, // nop; nop; sbdone
	0x009E7000, 0x300009E7, // nop; nop; thrend
	0x009E7000, 0x100009E7, // nop; nop; nop
	0x009E7000, 0x100009E7, // nop; nop; nop
}
