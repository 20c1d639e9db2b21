package v3d_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/sim"
	"github.com/Jon-Bright/v3dctl/v3d"
)

func TestInit(t *testing.T) {
	mc := sim.NewMachine()
	v := v3d.New(mc.V3D)
	c, err := v3d.Init(mc.Transport(), v)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if c.Max != 300000000 || c.Current != 300000000 {
		t.Errorf("clocks got: %+v, want: 300MHz max and current", c)
	}
	if !mc.Firmware.QPU() {
		t.Errorf("QPUs not enabled")
	}
	want := []uint32{mbox.TagGetMaxClockRate, mbox.TagSetClockRate, mbox.TagEnableQPU, mbox.TagGetClockRate}
	got := mc.Firmware.Sent()
	if len(got) != len(want) {
		t.Fatalf("tags got: %X, want: %X", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tag %d got: %08X, want: %08X", i, got[i], want[i])
		}
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name  string
		fail  uint32
		ident uint32
		want  error
	}{
		{"max clock", mbox.TagGetMaxClockRate, v3d.Ident0Want, v3d.ErrMaxClock},
		{"set clock", mbox.TagSetClockRate, v3d.Ident0Want, v3d.ErrInit},
		{"enable QPU", mbox.TagEnableQPU, v3d.Ident0Want, v3d.ErrInit},
		{"ident", 0, 0x01443356, v3d.ErrIdent},
		{"current clock", mbox.TagGetClockRate, v3d.Ident0Want, v3d.ErrCurrentClock},
	}
	for _, tc := range tests {
		mc := sim.NewMachine()
		if tc.fail != 0 {
			mc.Firmware.Fail[tc.fail] = true
		}
		mc.V3D.Set(v3d.Ident0, tc.ident)
		_, err := v3d.Init(mc.Firmware, v3d.New(mc.V3D))
		if !errors.Is(err, tc.want) {
			t.Errorf("%s got: %v, want: %v", tc.name, err, tc.want)
		}
		if tc.fail != 0 && !errors.Is(err, mbox.ErrResponse) {
			t.Errorf("%s got: %v, want the firmware fault wrapped", tc.name, err)
		}
	}
}

func TestPower(t *testing.T) {
	mc := sim.NewMachine()
	for _, on := range []bool{true, false, true} {
		if err := v3d.Power(mc.Firmware, on); err != nil {
			t.Fatalf("Power(%v): %v", on, err)
		}
		if mc.Firmware.QPU() != on {
			t.Errorf("QPU got: %v, want: %v", mc.Firmware.QPU(), on)
		}
	}
	rate, err := v3d.ClockRate(mc.Firmware)
	if err != nil || rate != 250000000 {
		t.Errorf("ClockRate got: %d, %v, want: 250000000", rate, err)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		ct0, ct1 uint32
		errs0    []string
		ok       bool
	}{
		{0, 0, nil, true},
		{v3d.CSRun, 0, nil, true},
		{v3d.CSOutOfMemory | v3d.CSDMAOverflow, 0, []string{"Out of Memory", "DMA Overflow"}, false},
		{0, v3d.CSQueueFull, nil, false},
	}
	for _, tc := range tests {
		mc := sim.NewMachine()
		mc.V3D.Set(v3d.CT0CS, tc.ct0)
		mc.V3D.Set(v3d.CT1CS, tc.ct1)
		mc.V3D.Set(v3d.PerfCntr(2), 42)
		mc.V3D.Set(v3d.RenderFrameCnt, 1)
		r := v3d.New(mc.V3D).Status()
		if r.OK() != tc.ok {
			t.Errorf("%08X/%08X OK got: %v, want: %v", tc.ct0, tc.ct1, r.OK(), tc.ok)
		}
		errs := v3d.ListErrors(r.CT0CS)
		if strings.Join(errs, ",") != strings.Join(tc.errs0, ",") {
			t.Errorf("%08X errors got: %q, want: %q", tc.ct0, errs, tc.errs0)
		}
		if r.Ident[0] != v3d.Ident0Want || r.Perf[2] != 42 {
			t.Errorf("report got: %+v", r)
		}
		s := r.String()
		for _, e := range tc.errs0 {
			if !strings.Contains(s, "  - "+e+"\n") {
				t.Errorf("report missing %q:\n%s", e, s)
			}
		}
		for _, line := range []string{"Counter 2: 42", "Binning complete.", "Rendering in progress (1 frames remaining)."} {
			if !strings.Contains(s, line) {
				t.Errorf("report missing %q:\n%s", line, s)
			}
		}
	}
}
