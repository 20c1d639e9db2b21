package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/Jon-Bright/v3dctl/fb"
	"github.com/Jon-Bright/v3dctl/mbox"
	"github.com/Jon-Bright/v3dctl/mmio"
	"github.com/Jon-Bright/v3dctl/rpi"
	"github.com/Jon-Bright/v3dctl/sim"
	"github.com/Jon-Bright/v3dctl/v3d"
	"github.com/Jon-Bright/v3dctl/vcmem"
	log "github.com/sirupsen/logrus"
)

var transport = flag.String("transport", "vcio", "How to reach the firmware: vcio (the kernel's /dev/vcio) or regs (the mailbox registers directly)")
var simulate = flag.Bool("sim", false, "Run against a simulated VideoCore instead of the real hardware")
var pollAttempts = flag.Int("poll-attempts", 0, "Give up waiting for the GPU after this many register reads. 0 means never.")
var pollTimeout = flag.Duration("poll-timeout", 0, "Give up waiting for the GPU after this long. 0 means never.")

const maxDim = v3d.MaxDim

// hardware is the firmware, memory and V3D registers of one VideoCore,
// real or simulated.
type hardware struct {
	name   string
	t      mbox.Transport
	mapper vcmem.Mapper
	regs   mmio.Regs
	close  func() error
}

func openHardware(simulated bool, transport string, poll mmio.Poll) (*hardware, error) {
	if transport != "vcio" && transport != "regs" {
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
	if simulated {
		mc := sim.NewMachine()
		hw := &hardware{
			name:   "simulated VideoCore IV",
			t:      mc.Firmware,
			mapper: mc.Mem,
			regs:   mc.V3D,
			close:  func() error { return nil },
		}
		if transport == "regs" {
			mb := mc.Transport()
			mb.Poll = poll
			hw.t = mb
		}
		return hw, nil
	}

	rp, err := rpi.NewRPi()
	if err != nil {
		return nil, err
	}
	vcio, err := mbox.OpenVCIO()
	if err != nil {
		return nil, err
	}
	hw := &hardware{
		name:   rp.Name(),
		t:      vcio,
		mapper: rp,
		close: func() error {
			return errors.Join(vcio.Close(), rp.Close())
		},
	}
	if hw.regs, err = rp.V3DRegs(); err != nil {
		hw.close() // Ignore error
		return nil, fmt.Errorf("couldn't map V3D registers: %w", err)
	}
	if transport == "regs" {
		regs, err := rp.MailboxRegs()
		if err != nil {
			hw.close() // Ignore error
			return nil, fmt.Errorf("couldn't map mailbox registers: %w", err)
		}
		mb := mbox.NewMailbox(regs)
		mb.Poll = poll
		b, err := rpi.NewBounce(mb, vcmem.NewAllocator(vcio, rp))
		if err != nil {
			hw.close() // Ignore error
			return nil, err
		}
		hw.t = b
	}
	return hw, nil
}

// system is a booted VideoCore with its scene built.
type system struct {
	hw     *hardware
	v      *v3d.V3D
	clocks v3d.Clocks
	fb     *fb.Framebuffer
	scene  *v3d.Scene
}

// boot powers the V3D up, gets a framebuffer and builds the test scene
// into it. It doesn't render.
func boot(hw *hardware, width, height int, poll mmio.Poll) (*system, error) {
	if width <= 0 || height <= 0 || width > maxDim || height > maxDim {
		return nil, fmt.Errorf("%dx%d is not a size between 1x1 and %dx%d", width, height, maxDim, maxDim)
	}
	s := &system{hw: hw, v: v3d.New(hw.regs)}
	s.v.Poll = poll
	log.Printf("Booting %s", hw.name)

	err := powerOn(hw)
	if err != nil {
		return nil, err
	}
	s.clocks, err = v3d.Init(hw.t, s.v)
	if err != nil {
		return nil, err
	}
	s.fb, err = fb.Allocate(hw.t, hw.mapper, width, height)
	if err != nil {
		return nil, err
	}

	s.scene, err = v3d.NewScene(vcmem.NewAllocator(hw.t, hw.mapper), s.v, uint16(width), uint16(height))
	if err != nil {
		return nil, err
	}
	steps := []struct {
		name string
		f    func() error
	}{
		{"add vertices", s.scene.AddVertices},
		{"add shaders", s.scene.AddTestShaders},
		{"set up render control", func() error { return s.scene.SetupRenderControl(s.fb.Addr) }},
		{"set up binning config", s.scene.SetupBinningConfig},
	}
	for _, st := range steps {
		if err := st.f(); err != nil {
			return nil, fmt.Errorf("couldn't %s: %w", st.name, err)
		}
	}
	return s, nil
}

func powerOn(hw *hardware) error {
	log.Printf("Power on")
	start := time.Now()
	err := v3d.Power(hw.t, true)
	if err != nil {
		return err
	}
	log.Debugf("QPUs on after %v", time.Since(start))
	return nil
}

func powerOff(hw *hardware) error {
	log.Printf("Power off")
	err := v3d.Power(hw.t, false)
	if err != nil {
		return fmt.Errorf("couldn't power off: %w", err)
	}
	return hw.close()
}
