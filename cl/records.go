package cl

// Packed command records. Field order and width are the wire format; write
// them with Writer.Record.

type TileBinningConfig struct {
	Op          Opcode
	BinWidth    uint32
	BinHeight   uint32
	TileData    uint32
	TileMemSize uint32
	TileState   uint32
	Flags       uint8
}

// Tile binning flags.
const (
	BinAutoInitTileState uint8 = 1 << 2
	BinDoubleBuffer      uint8 = 1 << 5
)

func NewTileBinningConfig(binW, binH, tileData, tileMemSize, tileState uint32, flags uint8) TileBinningConfig {
	return TileBinningConfig{TileBinningModeConfig, binW, binH, tileData, tileMemSize, tileState, flags}
}

type TileRenderingConfig struct {
	Op          Opcode
	Width       uint16
	Height      uint16
	Format      uint32
	Other       uint8
	Framebuffer uint32
}

// FormatRGBA8888 is the framebuffer format for TileRenderingConfig.
const FormatRGBA8888 uint32 = 0x04

func NewTileRenderingConfig(w, h uint16, format uint32, other uint8, fb uint32) TileRenderingConfig {
	return TileRenderingConfig{TileRenderingModeConfig, w, h, format, other, fb}
}

type ClearColorsRecord struct {
	Op      Opcode
	Color   [2]uint32
	ZMask   uint32
	Stencil uint8
}

func NewClearColors(color [2]uint32, zmask uint32, stencil uint8) ClearColorsRecord {
	return ClearColorsRecord{ClearColors, color, zmask, stencil}
}

type TileCoordinatesRecord struct {
	Op   Opcode
	X, Y uint8
}

func NewTileCoordinates(x, y uint8) TileCoordinatesRecord {
	return TileCoordinatesRecord{TileCoordinates, x, y}
}

type StoreTileBufferGeneralRecord struct {
	Op    Opcode
	Flags uint16
	Addr  uint32
}

func NewStoreTileBufferGeneral(flags uint16, addr uint32) StoreTileBufferGeneralRecord {
	return StoreTileBufferGeneralRecord{StoreTileBufferGeneral, flags, addr}
}

type BranchToSublistRecord struct {
	Op   Opcode
	Addr uint32
}

func NewBranchToSublist(addr uint32) BranchToSublistRecord {
	return BranchToSublistRecord{BranchToSublist, addr}
}

type ClipWindowRecord struct {
	Op            Opcode
	Left, Bottom  uint16
	Width, Height uint16
}

func NewClipWindow(left, bottom, w, h uint16) ClipWindowRecord {
	return ClipWindowRecord{ClipWindow, left, bottom, w, h}
}

type ViewportOffsetRecord struct {
	Op   Opcode
	X, Y uint16
}

func NewViewportOffset(x, y uint16) ViewportOffsetRecord {
	return ViewportOffsetRecord{ViewportOffset, x, y}
}

type ConfigStateRecord struct {
	Op   Opcode
	Bits [3]uint8
}

func NewConfigState(b0, b1, b2 uint8) ConfigStateRecord {
	return ConfigStateRecord{ConfigState, [3]uint8{b0, b1, b2}}
}

type PrimitiveListFormatRecord struct {
	Op     Opcode
	Format uint8
}

func NewPrimitiveListFormat(format uint8) PrimitiveListFormatRecord {
	return PrimitiveListFormatRecord{PrimitiveListFormat, format}
}

type NVShaderStateRecord struct {
	Op     Opcode
	Record uint32
}

func NewNVShaderState(record uint32) NVShaderStateRecord {
	return NVShaderStateRecord{NVShaderState, record}
}

type IndexedPrimitiveListRecord struct {
	Op       Opcode
	Mode     uint8
	Count    uint32
	Indices  uint32
	MaxIndex uint32
}

func NewIndexedPrimitiveList(mode uint8, count, indices, maxIndex uint32) IndexedPrimitiveListRecord {
	return IndexedPrimitiveListRecord{IndexedPrimitiveList, mode, count, indices, maxIndex}
}
