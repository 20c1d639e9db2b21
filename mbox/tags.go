package mbox

// Property tags used by this package. The full list is on the firmware wiki.
const (
	TagGetFirmwareRevision uint32 = 0x00000001
	TagGetBoardRevision    uint32 = 0x00010002

	TagGetClockRate    uint32 = 0x00030002
	TagGetMaxClockRate uint32 = 0x00030004
	TagSetClockRate    uint32 = 0x00038002

	TagAllocateMemory uint32 = 0x0003000C
	TagLockMemory     uint32 = 0x0003000D
	TagUnlockMemory   uint32 = 0x0003000E
	TagReleaseMemory  uint32 = 0x0003000F
	TagExecuteCode    uint32 = 0x00030010
	TagExecuteQPU     uint32 = 0x00030011
	TagEnableQPU      uint32 = 0x00030012

	TagAllocateFramebuffer    uint32 = 0x00040001
	TagGetPitch               uint32 = 0x00040008
	TagReleaseFramebuffer     uint32 = 0x00048001
	TagSetPhysicalWidthHeight uint32 = 0x00048003
	TagSetVirtualWidthHeight  uint32 = 0x00048004
	TagSetDepth               uint32 = 0x00048005
	TagSetPixelOrder          uint32 = 0x00048006
	TagSetVirtualOffset       uint32 = 0x00048009
)

// Clock IDs for the clock rate tags.
const (
	ClockEMMC uint32 = 0x1
	ClockUART uint32 = 0x2
	ClockARM  uint32 = 0x3
	ClockCore uint32 = 0x4
	ClockV3D  uint32 = 0x5
	ClockH264 uint32 = 0x6
	ClockISP  uint32 = 0x7
)

// MemFlag selects the alias and initialisation of memory from MemAlloc.
type MemFlag uint32

const (
	Discardable     MemFlag = 1 << 0 // can be resized to 0 at any time. Use for cached data
	Normal          MemFlag = 0 << 2 // normal allocating alias. Don't use from ARM
	Direct          MemFlag = 1 << 2 // 0xC alias uncached
	Coherent        MemFlag = 2 << 2 // 0x8 alias. Non-allocating in L2 but coherent
	L1NonAllocating MemFlag = 3 << 2 // Direct|Coherent: 0x0 alias, allocating in L2
	Zero            MemFlag = 1 << 4 // initialise buffer to all zeros
	NoInit          MemFlag = 1 << 5 // don't initialise (default is initialise to all ones)
	HintPermalock   MemFlag = 1 << 6 // likely to be locked for long periods of time
)

// MemAlloc asks for size bytes aligned to align. The handle comes back in
// value word 0.
func MemAlloc(size, align uint32, flags MemFlag) Message {
	return NewMessage(Tag{ID: TagAllocateMemory, Size: 12, Args: []uint32{size, align, uint32(flags)}})
}

// MemLock locks a handle in place. The bus address comes back in value word 0.
func MemLock(handle uint32) Message {
	return NewMessage(Tag{ID: TagLockMemory, Size: 4, Args: []uint32{handle}})
}

// MemUnlock answers with a status word, 0 on success.
func MemUnlock(handle uint32) Message {
	return NewMessage(Tag{ID: TagUnlockMemory, Size: 4, Args: []uint32{handle}})
}

// MemFree answers with a status word, 0 on success.
func MemFree(handle uint32) Message {
	return NewMessage(Tag{ID: TagReleaseMemory, Size: 4, Args: []uint32{handle}})
}

// GetClockRate answers with [clock id, rate in Hz].
func GetClockRate(clock uint32) Message {
	return NewMessage(Tag{ID: TagGetClockRate, Size: 8, Args: []uint32{clock}})
}

// GetMaxClockRate answers with [clock id, rate in Hz].
func GetMaxClockRate(clock uint32) Message {
	return NewMessage(Tag{ID: TagGetMaxClockRate, Size: 8, Args: []uint32{clock}})
}

// SetClockRate answers with [clock id, rate actually set].
func SetClockRate(clock, hz uint32, skipTurbo bool) Message {
	skip := uint32(0)
	if skipTurbo {
		skip = 1
	}
	return NewMessage(Tag{ID: TagSetClockRate, Size: 12, Args: []uint32{clock, hz, skip}})
}

// EnableQPU powers the QPUs (and with them the V3D block) up or down.
func EnableQPU(enable bool) Message {
	on := uint32(0)
	if enable {
		on = 1
	}
	return NewMessage(Tag{ID: TagEnableQPU, Size: 4, Args: []uint32{on}})
}

// ExecuteQPU runs num QPU programs described by the control block at the
// bus address control.
func ExecuteQPU(num, control, noflush, timeout uint32) Message {
	return NewMessage(Tag{ID: TagExecuteQPU, Size: 16, Args: []uint32{num, control, noflush, timeout}})
}

// ExecuteCode runs VideoCore code at a bus address with r0-r5 set.
func ExecuteCode(code uint32, r [6]uint32) Message {
	return NewMessage(Tag{ID: TagExecuteCode, Size: 28, Args: append([]uint32{code}, r[:]...)})
}

// Tag indices of the Framebuffer message, for Value.
const (
	FBTagPhysical = iota
	FBTagVirtual
	FBTagOffset
	FBTagDepth
	FBTagPixelOrder
	FBTagAllocate
	FBTagPitch
)

// Framebuffer configures and allocates a framebuffer in one exchange. The
// pointer and size come back in the allocate tag, the pitch in the last tag.
func Framebuffer(width, height, virtWidth, virtHeight, depth uint32) Message {
	return NewMessage(
		Tag{ID: TagSetPhysicalWidthHeight, Size: 8, Args: []uint32{width, height}},
		Tag{ID: TagSetVirtualWidthHeight, Size: 8, Args: []uint32{virtWidth, virtHeight}},
		Tag{ID: TagSetVirtualOffset, Size: 8, Args: []uint32{0, 0}},
		Tag{ID: TagSetDepth, Size: 4, Args: []uint32{depth}},
		Tag{ID: TagSetPixelOrder, Size: 4, Args: []uint32{1}}, // RGB, not BGR preferably
		Tag{ID: TagAllocateFramebuffer, Size: 8, Args: []uint32{4096, 0}},
		Tag{ID: TagGetPitch, Size: 4},
	)
}
