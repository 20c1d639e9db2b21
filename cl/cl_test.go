package cl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Jon-Bright/v3dctl/vcmem"
)

func TestWriterOffsets(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(0xC0001000, buf)
	chunks := [][]byte{{1}, {2, 3}, {4, 5, 6, 7, 8}, {}, {9, 10, 11}}
	off := 0
	for _, c := range chunks {
		n, err := w.Write(c)
		if err != nil || n != len(c) {
			t.Fatalf("Write(%v) got: %d, %v", c, n, err)
		}
		if !bytes.Equal(buf[off:off+len(c)], c) {
			t.Errorf("chunk %v landed as %v at offset %d", c, buf[off:off+len(c)], off)
		}
		off += len(c)
		if w.Len() != off {
			t.Errorf("Len got: %d, want: %d", w.Len(), off)
		}
	}
	if w.End() != 0xC0001000+vcmem.Addr(off) {
		t.Errorf("End got: %v, want: %08X", w.End(), 0xC0001000+uint32(off))
	}
}

func TestWriterNumbers(t *testing.T) {
	w := NewWriter(0, make([]byte, 16))
	w.U8(0xAB)
	w.U16(0x1234)
	w.U32(0xDEADBEEF)
	w.F32(1.0)
	want := []byte{0xAB, 0x34, 0x12, 0xEF, 0xBE, 0xAD, 0xDE, 0x00, 0x00, 0x80, 0x3F}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got: % X, want: % X", w.Bytes(), want)
	}
}

func TestWriterOverrun(t *testing.T) {
	buf := make([]byte, 6)
	w := NewWriter(0, buf)
	w.U32(0x01020304)
	w.U32(0x05060708)
	if !errors.Is(w.Err(), ErrOverrun) {
		t.Fatalf("Err got: %v, want: ErrOverrun", w.Err())
	}
	w.U8(0xFF) // fits, but the writer is already broken
	if w.Len() != 4 {
		t.Errorf("Len got: %d, want: 4", w.Len())
	}
	if buf[4] != 0 || buf[5] != 0 {
		t.Errorf("bytes past the failed write changed: % X", buf)
	}
	w.Record(NewTileCoordinates(1, 2))
	if !errors.Is(w.Err(), ErrOverrun) {
		t.Errorf("Record after overrun got: %v", w.Err())
	}
}

func TestRecordSizes(t *testing.T) {
	tests := []struct {
		name string
		v    any
		op   Opcode
	}{
		{"TileBinningConfig", NewTileBinningConfig(15, 15, 0, 0, 0, BinAutoInitTileState), TileBinningModeConfig},
		{"TileRenderingConfig", NewTileRenderingConfig(480, 480, FormatRGBA8888, 0, 0), TileRenderingModeConfig},
		{"ClearColors", NewClearColors([2]uint32{}, 0, 0), ClearColors},
		{"TileCoordinates", NewTileCoordinates(0, 0), TileCoordinates},
		{"StoreTileBufferGeneral", NewStoreTileBufferGeneral(0, 0), StoreTileBufferGeneral},
		{"BranchToSublist", NewBranchToSublist(0), BranchToSublist},
		{"ClipWindow", NewClipWindow(0, 0, 480, 480), ClipWindow},
		{"ViewportOffset", NewViewportOffset(0, 0), ViewportOffset},
		{"ConfigState", NewConfigState(3, 0, 2), ConfigState},
		{"PrimitiveListFormat", NewPrimitiveListFormat(0x12), PrimitiveListFormat},
		{"NVShaderState", NewNVShaderState(0), NVShaderState},
		{"IndexedPrimitiveList", NewIndexedPrimitiveList(PrimTriangle, 9, 0, 6), IndexedPrimitiveList},
	}
	for _, test := range tests {
		if got, want := binary.Size(test.v), test.op.Len(); got != want {
			t.Errorf("%s size got: %d, want: %d", test.name, got, want)
		}
		w := NewWriter(0, make([]byte, 32))
		w.Record(test.v)
		if w.Err() != nil || Opcode(w.Bytes()[0]) != test.op {
			t.Errorf("%s wrote % X, %v", test.name, w.Bytes(), w.Err())
		}
	}
}

func TestTileRenderingConfigLayout(t *testing.T) {
	w := NewWriter(0, make([]byte, 14))
	w.Record(NewTileRenderingConfig(480, 320, FormatRGBA8888, 0, 0xC1000000))
	want := []byte{113, 0xE0, 0x01, 0x40, 0x01, 0x04, 0, 0, 0, 0, 0x00, 0x00, 0x00, 0xC1}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got: % X, want: % X", w.Bytes(), want)
	}
}

func TestDecode(t *testing.T) {
	w := NewWriter(0, make([]byte, 64))
	w.Record(NewTileCoordinates(3, 4))
	w.Record(NewBranchToSublist(0xC0002000))
	w.Op(StoreMultisample, FlushAllState, Nop, Halt, Nop)
	cmds, err := Decode(w.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wantOps := []Opcode{TileCoordinates, BranchToSublist, StoreMultisample, FlushAllState, Nop, Halt}
	if len(cmds) != len(wantOps) {
		t.Fatalf("got %d commands: %v", len(cmds), cmds)
	}
	for i, op := range wantOps {
		if cmds[i].Op != op {
			t.Errorf("command %d got: %v, want: %v", i, cmds[i].Op, op)
		}
	}
	if cmds[1].Offset != 3 || binary.LittleEndian.Uint32(cmds[1].Args) != 0xC0002000 {
		t.Errorf("branch got: %v", cmds[1])
	}
	if Count(cmds, Nop) != 1 {
		t.Errorf("NOP after HALT was decoded")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		list []byte
		want error
	}{
		{"unknown", []byte{1, 200}, ErrUnknownOpcode},
		{"truncated", []byte{17, 0, 0}, ErrTruncated},
	}
	for _, test := range tests {
		if _, err := Decode(test.list); !errors.Is(err, test.want) {
			t.Errorf("%s got: %v, want: %v", test.name, err, test.want)
		}
	}
}
