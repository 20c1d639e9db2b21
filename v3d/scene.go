package v3d

import (
	"errors"
	"fmt"

	"github.com/Jon-Bright/v3dctl/cl"
	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/vcmem"
	log "github.com/sirupsen/logrus"
)

// ErrState is returned when a Scene step is called out of order.
var ErrState = errors.New("v3d: scene step out of order")

// ErrSize is returned for a scene the V3D can't address.
var ErrSize = errors.New("v3d: bad scene size")

// MaxDim is the largest width or height of a scene. Vertex coordinates are
// signed 12.4 fixed point.
const MaxDim = 2048

// State is how far a Scene has been built.
type State int

const (
	Uninitialized State = iota
	VerticesAdded
	ShadersAdded
	RenderControlReady
	BinningConfigReady
	Rendered
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case VerticesAdded:
		return "vertices added"
	case ShadersAdded:
		return "shaders added"
	case RenderControlReady:
		return "render control ready"
	case BinningConfigReady:
		return "binning config ready"
	case Rendered:
		return "rendered"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	TileSize       = 32
	tileDataStride = 32 // bytes of tile data per tile slot
	tileMemPerBin  = 64
	tileStatePer   = 48
	binningSize    = 4096 // same as the Android driver
	bufAlign       = 0x1000
	bufFlags       = mbox.Coherent | mbox.Zero
	minBufSize     = 0x1000
)

// Bins is the number of 32 pixel tiles needed to cover dim pixels.
func Bins(dim uint16) uint32 {
	return (uint32(dim) + TileSize - 1) / TileSize
}

// Scene owns the buffers and control lists of one fixed scene.
//
// Build it in order (AddVertices, AddTestShaders or AddShader,
// SetupRenderControl, SetupBinningConfig), then Render as often as needed.
// Every buffer lives as long as the process; none are freed.
type Scene struct {
	alloc *vcmem.Allocator
	v3d   *V3D
	state State

	width, height uint16
	binW, binH    uint32

	vertices   *vcmem.Buffer
	numVerts   uint32
	indices    *vcmem.Buffer
	indexCount uint32
	maxIndex   uint32

	shader       *vcmem.Buffer
	shaderRecord *vcmem.Buffer

	renderControl *vcmem.Buffer
	renderEnd     vcmem.Addr

	tileData   *vcmem.Buffer
	tileState  *vcmem.Buffer
	binning    *vcmem.Buffer
	binningEnd vcmem.Addr
}

// NewScene starts a scene rendering at width x height pixels.
func NewScene(alloc *vcmem.Allocator, v *V3D, width, height uint16) (*Scene, error) {
	if width == 0 || height == 0 || width > MaxDim || height > MaxDim {
		return nil, fmt.Errorf("%w: %dx%d, want between 1x1 and %dx%d", ErrSize, width, height, MaxDim, MaxDim)
	}
	return &Scene{
		alloc:  alloc,
		v3d:    v,
		width:  width,
		height: height,
		binW:   Bins(width),
		binH:   Bins(height),
	}, nil
}

func (s *Scene) State() State {
	return s.state
}

// BinSize is the size of the scene in tiles.
func (s *Scene) BinSize() (uint32, uint32) {
	return s.binW, s.binH
}

func (s *Scene) Size() (uint16, uint16) {
	return s.width, s.height
}

func (s *Scene) need(want State, name string) error {
	if s.state != want {
		return fmt.Errorf("%w: %s needs state %v, scene is %v", ErrState, name, want, s.state)
	}
	return nil
}

func (s *Scene) buffer(size int) (*vcmem.Buffer, error) {
	if size < minBufSize {
		size = minBufSize
	}
	return s.alloc.AllocAndLock(uint32(size), bufAlign, bufFlags)
}

// AddVertices writes the test geometry.
func (s *Scene) AddVertices() error {
	if err := s.need(Uninitialized, "AddVertices"); err != nil {
		return err
	}
	return s.setVertices(TestVertices(s.width, s.height), TestIndices)
}

func (s *Scene) setVertices(verts []Vertex, idx []uint8) error {
	var err error
	s.vertices, err = s.buffer(len(verts) * VertexStride)
	if err != nil {
		return fmt.Errorf("couldn't get vertex buffer: %w", err)
	}
	w := cl.ForBuffer(s.vertices)
	for _, v := range verts {
		v.encode(w)
	}
	if w.Err() != nil {
		return w.Err()
	}
	s.numVerts = uint32(len(verts))

	s.indices, err = s.buffer(len(idx))
	if err != nil {
		return fmt.Errorf("couldn't get index buffer: %w", err)
	}
	w = cl.ForBuffer(s.indices)
	w.Write(idx)
	if w.Err() != nil {
		return w.Err()
	}
	s.indexCount = uint32(len(idx))
	s.maxIndex = 0
	for _, i := range idx {
		if uint32(i) > s.maxIndex {
			s.maxIndex = uint32(i)
		}
	}
	s.state = VerticesAdded
	return nil
}

// AddTestShaders loads VaryingShader.
func (s *Scene) AddTestShaders() error {
	return s.AddShader(VaryingShader)
}

// AddShader loads fragment shader code and the shader record that points
// the NV pipeline at it and at the vertices.
func (s *Scene) AddShader(code []uint32) error {
	if err := s.need(VerticesAdded, "AddShader"); err != nil {
		return err
	}
	var err error
	s.shader, err = s.buffer(len(code) * 4)
	if err != nil {
		return fmt.Errorf("couldn't get shader buffer: %w", err)
	}
	w := cl.ForBuffer(s.shader)
	for _, c := range code {
		w.U32(c)
	}
	if w.Err() != nil {
		return w.Err()
	}

	s.shaderRecord, err = s.buffer(16)
	if err != nil {
		return fmt.Errorf("couldn't get shader record buffer: %w", err)
	}
	w = cl.ForBuffer(s.shaderRecord)
	w.U8(0x01)         // flags: fragment shader is single threaded
	w.U8(VertexStride) // stride
	w.U8(0xcc)         // uniforms, unused
	w.U8(3)            // varyings: r, g, b
	w.U32(uint32(s.shader.Addr))
	w.U32(0) // uniforms address
	w.U32(uint32(s.vertices.Addr))
	if w.Err() != nil {
		return w.Err()
	}
	s.state = ShadersAdded
	return nil
}

// tileMemory allocates the tile data buffer the first time either list
// needs it. The render list branches into it and the binner fills it.
func (s *Scene) tileMemory() error {
	if s.tileData != nil {
		return nil
	}
	var err error
	s.tileData, err = s.buffer(int(s.binW * s.binH * tileMemPerBin))
	if err != nil {
		return fmt.Errorf("couldn't get tile memory: %w", err)
	}
	return nil
}

// RenderControlSize is the render control buffer size for a scene of
// binW x binH tiles.
func RenderControlSize(binW, binH uint32) int {
	return int(binW*binH*20 + 37)
}

// SetupRenderControl writes the rendering control list: configuration for
// rendering into the framebuffer at fb, then for each tile a branch into its
// binned primitives and a store.
func (s *Scene) SetupRenderControl(fb vcmem.Addr) error {
	if err := s.need(ShadersAdded, "SetupRenderControl"); err != nil {
		return err
	}
	if err := s.tileMemory(); err != nil {
		return err
	}
	var err error
	s.renderControl, err = s.alloc.AllocAndLock(uint32(RenderControlSize(s.binW, s.binH)), bufAlign, bufFlags)
	if err != nil {
		return fmt.Errorf("couldn't get render control buffer: %w", err)
	}
	w := cl.ForBuffer(s.renderControl)
	w.Record(cl.NewClearColors([2]uint32{0, 0}, 0, 0))
	w.Record(cl.NewTileRenderingConfig(s.width, s.height, cl.FormatRGBA8888, 0, uint32(fb)))
	w.Record(cl.NewTileCoordinates(0, 0))
	w.Record(cl.NewStoreTileBufferGeneral(0, 0))

	tileData := uint32(s.tileData.Addr)
	for y := uint32(0); y < s.binH; y++ {
		for x := uint32(0); x < s.binW; x++ {
			w.Record(cl.NewTileCoordinates(uint8(x), uint8(y)))
			w.Record(cl.NewBranchToSublist(tileData + (y+x*s.binW)*tileDataStride))
			if x == s.binW-1 && y == s.binH-1 {
				w.Op(cl.StoreMultisampleEnd)
			} else {
				w.Op(cl.StoreMultisample)
			}
		}
	}
	if w.Err() != nil {
		return w.Err()
	}
	s.renderEnd = w.End()
	log.WithFields(log.Fields{
		"start": s.renderControl.Addr,
		"end":   s.renderEnd,
		"tiles": s.binW * s.binH,
	}).Debug("render control list ready")
	s.state = RenderControlReady
	return nil
}

// SetupBinningConfig writes the binning control list, which sorts the
// scene's triangles into per-tile lists in tile memory.
func (s *Scene) SetupBinningConfig() error {
	if err := s.need(RenderControlReady, "SetupBinningConfig"); err != nil {
		return err
	}
	if err := s.tileMemory(); err != nil {
		return err
	}
	var err error
	s.tileState, err = s.buffer(int(s.binW * s.binH * tileStatePer))
	if err != nil {
		return fmt.Errorf("couldn't get tile state memory: %w", err)
	}
	s.binning, err = s.alloc.AllocAndLock(binningSize, bufAlign, bufFlags)
	if err != nil {
		return fmt.Errorf("couldn't get binning buffer: %w", err)
	}
	w := cl.ForBuffer(s.binning)
	w.Record(cl.NewTileBinningConfig(
		s.binW,
		s.binH,
		uint32(s.tileData.Addr),
		s.binW*s.binH*tileMemPerBin,
		uint32(s.tileState.Addr),
		cl.BinAutoInitTileState,
	))
	w.Op(cl.StartTileBinning)
	w.Record(cl.NewPrimitiveListFormat(0x12)) // 16 bit indices, triangles
	w.Record(cl.NewClipWindow(0, 0, s.width, s.height))
	w.Record(cl.NewConfigState(0x03, 0x00, 0x02))
	w.Record(cl.NewViewportOffset(0, 0))
	w.Record(cl.NewNVShaderState(uint32(s.shaderRecord.Addr)))
	w.Record(cl.NewIndexedPrimitiveList(cl.PrimTriangle, s.indexCount, uint32(s.indices.Addr), s.maxIndex))
	w.Op(cl.FlushAllState, cl.Nop, cl.Halt)
	if w.Err() != nil {
		return w.Err()
	}
	s.binningEnd = w.End()
	log.WithFields(log.Fields{
		"start": s.binning.Addr,
		"end":   s.binningEnd,
	}).Debug("binning control list ready")
	s.state = BinningConfigReady
	return nil
}

// Render clears the caches, then runs the binning list and the rendering
// list, each to completion. It can be called again to draw the same lists.
func (s *Scene) Render() error {
	if s.state != BinningConfigReady && s.state != Rendered {
		return fmt.Errorf("%w: Render needs state %v, scene is %v", ErrState, BinningConfigReady, s.state)
	}
	v := s.v3d
	v.Write(L2CacheCtrl, 4)
	v.Write(SliceCacheCtrl, 0x0f0f0f0f)

	v.Write(CT0CS, CSRun)
	if err := v.Poll.Clear(v.regs, uint32(CT0CS), CSRun); err != nil {
		return fmt.Errorf("waiting for binning thread to stop: %w", err)
	}

	v.Write(BinningFlushCnt, 1)
	v.Write(CT0CA, uint32(s.binning.Addr))
	v.Write(CT0EA, uint32(s.binningEnd))
	if err := v.Poll.Equal(v.regs, uint32(BinningFlushCnt), 0); err != nil {
		return fmt.Errorf("waiting for binning: %w", err)
	}
	log.Debug("binning done")

	v.Write(CT1CS, CSRun)

	v.Write(RenderFrameCnt, 1)
	v.Write(CT1CA, uint32(s.renderControl.Addr))
	v.Write(CT1EA, uint32(s.renderEnd))
	if err := v.Poll.Equal(v.regs, uint32(RenderFrameCnt), 0); err != nil {
		return fmt.Errorf("waiting for render: %w", err)
	}
	log.Debug("render done")
	s.state = Rendered
	return nil
}

// BinningList is the binning control list as written.
func (s *Scene) BinningList() []byte {
	if s.binning == nil {
		return nil
	}
	return s.binning.Bytes()[:s.binningEnd-s.binning.Addr]
}

// RenderList is the rendering control list as written.
func (s *Scene) RenderList() []byte {
	if s.renderControl == nil {
		return nil
	}
	return s.renderControl.Bytes()[:s.renderEnd-s.renderControl.Addr]
}

// Counts is the number of vertices and indices drawn.
func (s *Scene) Counts() (uint32, uint32) {
	return s.numVerts, s.indexCount
}

// TileData is the bus address of tile memory, or 0 before either list is set up.
func (s *Scene) TileData() vcmem.Addr {
	if s.tileData == nil {
		return 0
	}
	return s.tileData.Addr
}

// ShaderRecord is the bus address of the shader record.
func (s *Scene) ShaderRecord() vcmem.Addr {
	if s.shaderRecord == nil {
		return 0
	}
	return s.shaderRecord.Addr
}

// Vertices is the bus address of the vertex buffer.
func (s *Scene) Vertices() vcmem.Addr {
	if s.vertices == nil {
		return 0
	}
	return s.vertices.Addr
}

// Indices is the bus address of the index buffer.
func (s *Scene) Indices() vcmem.Addr {
	if s.indices == nil {
		return 0
	}
	return s.indices.Addr
}
