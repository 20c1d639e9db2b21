package cl

import (
	"errors"
	"fmt"
)

// Opcode is the first byte of every control list command.
type Opcode uint8

const (
	Halt                    Opcode = 0
	Nop                     Opcode = 1
	Flush                   Opcode = 4
	FlushAllState           Opcode = 5
	StartTileBinning        Opcode = 6
	IncrementSemaphore      Opcode = 7
	WaitOnSemaphore         Opcode = 8
	Branch                  Opcode = 16
	BranchToSublist         Opcode = 17
	ReturnFromSublist       Opcode = 18
	StoreMultisample        Opcode = 24
	StoreMultisampleEnd     Opcode = 25
	StoreFullTileBuffer     Opcode = 26
	ReloadFullTileBuffer    Opcode = 27
	StoreTileBufferGeneral  Opcode = 28
	LoadTileBufferGeneral   Opcode = 29
	IndexedPrimitiveList    Opcode = 32
	VertexArrayPrimitives   Opcode = 33
	PrimitiveListFormat     Opcode = 56
	GLShaderState           Opcode = 64
	NVShaderState           Opcode = 65
	VGShaderState           Opcode = 66
	ConfigState             Opcode = 96
	FlatShadeFlags          Opcode = 97
	PointsSize              Opcode = 98
	LineWidth               Opcode = 99
	RHTXBoundary            Opcode = 100
	DepthOffset             Opcode = 101
	ClipWindow              Opcode = 102
	ViewportOffset          Opcode = 103
	ZClippingPlanes         Opcode = 104
	ClipperXYScaling        Opcode = 105
	ClipperZScaleOffset     Opcode = 106
	TileBinningModeConfig   Opcode = 112
	TileRenderingModeConfig Opcode = 113
	ClearColors             Opcode = 114
	TileCoordinates         Opcode = 115
)

// Primitive modes for IndexedPrimitiveList.
const (
	PrimPoint         uint8 = 0
	PrimLine          uint8 = 1
	PrimLineLoop      uint8 = 2
	PrimLineStrip     uint8 = 3
	PrimTriangle      uint8 = 4
	PrimTriangleStrip uint8 = 5
	PrimTriangleFan   uint8 = 6
)

type opInfo struct {
	name string
	len  int // total bytes, opcode included, as written by this package
}

var ops = map[Opcode]opInfo{
	Halt:                    {"HALT", 1},
	Nop:                     {"NOP", 1},
	Flush:                   {"FLUSH", 1},
	FlushAllState:           {"FLUSH_ALL_STATE", 1},
	StartTileBinning:        {"START_TILE_BINNING", 1},
	IncrementSemaphore:      {"INCREMENT_SEMAPHORE", 1},
	WaitOnSemaphore:         {"WAIT_ON_SEMAPHORE", 1},
	Branch:                  {"BRANCH", 5},
	BranchToSublist:         {"BRANCH_TO_SUBLIST", 5},
	ReturnFromSublist:       {"RETURN_FROM_SUBLIST", 1},
	StoreMultisample:        {"STORE_MULTISAMPLE", 1},
	StoreMultisampleEnd:     {"STORE_MULTISAMPLE_END", 1},
	StoreFullTileBuffer:     {"STORE_FULL_TILE_BUFFER", 5},
	ReloadFullTileBuffer:    {"RELOAD_FULL_TILE_BUFFER", 5},
	StoreTileBufferGeneral:  {"STORE_TILE_BUFFER_GENERAL", 7},
	LoadTileBufferGeneral:   {"LOAD_TILE_BUFFER_GENERAL", 7},
	IndexedPrimitiveList:    {"INDEXED_PRIMITIVE_LIST", 14},
	VertexArrayPrimitives:   {"VERTEX_ARRAY_PRIMITIVES", 10},
	PrimitiveListFormat:     {"PRIMITIVE_LIST_FORMAT", 2},
	GLShaderState:           {"GL_SHADER_STATE", 5},
	NVShaderState:           {"NV_SHADER_STATE", 5},
	VGShaderState:           {"VG_SHADER_STATE", 5},
	ConfigState:             {"CONFIG_STATE", 4},
	FlatShadeFlags:          {"FLAT_SHADE_FLAGS", 5},
	PointsSize:              {"POINTS_SIZE", 5},
	LineWidth:               {"LINE_WIDTH", 5},
	RHTXBoundary:            {"RHT_X_BOUNDARY", 3},
	DepthOffset:             {"DEPTH_OFFSET", 5},
	ClipWindow:              {"CLIP_WINDOW", 9},
	ViewportOffset:          {"VIEWPORT_OFFSET", 5},
	ZClippingPlanes:         {"Z_CLIPPING_PLANES", 9},
	ClipperXYScaling:        {"CLIPPER_XY_SCALING", 9},
	ClipperZScaleOffset:     {"CLIPPER_Z_SCALE_OFFSET", 9},
	TileBinningModeConfig:   {"TILE_BINNING_MODE_CONFIG", 22},
	TileRenderingModeConfig: {"TILE_RENDERING_MODE_CONFIG", 14},
	ClearColors:             {"CLEAR_COLORS", 14},
	TileCoordinates:         {"TILE_COORDINATES", 3},
}

func (o Opcode) String() string {
	if i, ok := ops[o]; ok {
		return i.name
	}
	return fmt.Sprintf("OPCODE_%d", uint8(o))
}

// Len is the encoded length of the command, opcode included, or 0 for an
// unknown opcode.
func (o Opcode) Len() int {
	return ops[o].len
}

var (
	ErrUnknownOpcode = errors.New("cl: unknown opcode")
	ErrTruncated     = errors.New("cl: truncated command")
)

// Command is one decoded control list entry.
type Command struct {
	Offset int
	Op     Opcode
	Args   []byte
}

func (c Command) String() string {
	return fmt.Sprintf("%04X %s % X", c.Offset, c.Op, c.Args)
}

// Decode splits a control list into commands. It stops at the end of list
// or at the first HALT.
func Decode(list []byte) ([]Command, error) {
	var cmds []Command
	for i := 0; i < len(list); {
		op := Opcode(list[i])
		n := op.Len()
		if n == 0 {
			return cmds, fmt.Errorf("%w %d at offset %d", ErrUnknownOpcode, uint8(op), i)
		}
		if i+n > len(list) {
			return cmds, fmt.Errorf("%w: %s at offset %d needs %d bytes, %d left", ErrTruncated, op, i, n, len(list)-i)
		}
		cmds = append(cmds, Command{Offset: i, Op: op, Args: list[i+1 : i+n]})
		if op == Halt {
			break
		}
		i += n
	}
	return cmds, nil
}

// Count is the number of commands in cmds with opcode op.
func Count(cmds []Command, op Opcode) int {
	n := 0
	for _, c := range cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}
