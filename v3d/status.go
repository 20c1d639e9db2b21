package v3d

import (
	"fmt"
	"strings"
)

// Report is a snapshot of the V3D state registers.
type Report struct {
	CT0CS, CT1CS     uint32
	Perf             [4]uint32
	Ident            [3]uint32
	L2Cache, Slice   uint32
	BinningFlushes   uint32
	RenderFrames     uint32
	PSEErrors        uint32
	FEPOverrunErrors uint32
	MiscErrors       uint32
}

// Status reads the registers behind Report. It only reads.
func (v *V3D) Status() Report {
	r := Report{
		CT0CS:            v.Read(CT0CS),
		CT1CS:            v.Read(CT1CS),
		L2Cache:          v.Read(L2CacheCtrl),
		Slice:            v.Read(SliceCacheCtrl),
		BinningFlushes:   v.Read(BinningFlushCnt),
		RenderFrames:     v.Read(RenderFrameCnt),
		PSEErrors:        v.Read(PSEErrors),
		FEPOverrunErrors: v.Read(FEPOverrunErrors),
		MiscErrors:       v.Read(MiscErrors),
	}
	for i := range r.Perf {
		r.Perf[i] = v.Read(PerfCntr(i))
	}
	for i, reg := range []Reg{Ident0, Ident1, Ident2} {
		r.Ident[i] = v.Read(reg)
	}
	return r
}

// ListErrors names the error bits set in a control list status word.
func ListErrors(cs uint32) []string {
	var e []string
	if cs&CSOutOfMemory != 0 {
		e = append(e, "Out of Memory")
	}
	if cs&CSQueueFull != 0 {
		e = append(e, "Queue Full")
	}
	if cs&CSDMAOverflow != 0 {
		e = append(e, "DMA Overflow")
	}
	return e
}

// OK reports whether neither control list thread has flagged an error.
func (r Report) OK() bool {
	return (r.CT0CS|r.CT1CS)&csErrors == 0
}

func (r Report) String() string {
	var b strings.Builder
	b.WriteString("V3D Core Status Report:\n")
	for i, cs := range []uint32{r.CT0CS, r.CT1CS} {
		fmt.Fprintf(&b, "Control List %d Status: 0x%X\n", i, cs)
		errs := ListErrors(cs)
		if len(errs) == 0 {
			fmt.Fprintf(&b, "  No errors in Control List %d.\n", i)
			continue
		}
		fmt.Fprintf(&b, "Errors in Control List %d:\n", i)
		for _, e := range errs {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	fmt.Fprintf(&b, "Performance Counters:\n")
	for i, p := range r.Perf {
		fmt.Fprintf(&b, "  - Counter %d: %d\n", i, p)
	}
	fmt.Fprintf(&b, "V3D Identifiers:\n")
	for i, id := range r.Ident {
		fmt.Fprintf(&b, "  - Ident%d: 0x%X\n", i, id)
	}
	fmt.Fprintf(&b, "Cache Controls:\n  - L2 Cache Control: 0x%X\n  - Slice Cache Control: 0x%X\n", r.L2Cache, r.Slice)
	fmt.Fprintf(&b, "Error Registers:\n  - PSE: 0x%X\n  - FEP Overrun: 0x%X\n  - Misc: 0x%X\n", r.PSEErrors, r.FEPOverrunErrors, r.MiscErrors)
	b.WriteString("Pipeline Status:\n")
	if r.BinningFlushes == 0 {
		b.WriteString("  - Binning complete.\n")
	} else {
		fmt.Fprintf(&b, "  - Binning in progress (%d flushes remaining).\n", r.BinningFlushes)
	}
	if r.RenderFrames == 0 {
		b.WriteString("  - Rendering complete.\n")
	} else {
		fmt.Fprintf(&b, "  - Rendering in progress (%d frames remaining).\n", r.RenderFrames)
	}
	return b.String()
}
