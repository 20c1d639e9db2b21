package v3d

import (
	"errors"
	"fmt"

	"github.com/Jon-Bright/v3dctl/mbox"
	log "github.com/sirupsen/logrus"
)

var (
	ErrMaxClock     = errors.New("v3d: failed to request max clock speed")
	ErrInit         = errors.New("v3d: core initialization failed")
	ErrIdent        = errors.New("v3d: ident check failed")
	ErrCurrentClock = errors.New("v3d: failed to get current clock speed")
)

// Clocks is what Init found.
type Clocks struct {
	Max     uint32
	Current uint32
}

// Init brings the V3D block up: the core clock goes to its maximum, the QPUs
// are powered, and the block must identify itself as a VideoCore IV.
func Init(t mbox.Transport, v *V3D) (Clocks, error) {
	var c Clocks
	m := mbox.GetMaxClockRate(mbox.ClockV3D)
	err := t.Send(m)
	if err == nil {
		c.Max, err = m.Value(0, 1)
	}
	if err != nil {
		return c, fmt.Errorf("%w: %w", ErrMaxClock, err)
	}
	log.Infof("Max clock speed for GPU core is %.1fMHz", float64(c.Max)/1e6)

	m = mbox.NewMessage(
		mbox.Tag{ID: mbox.TagSetClockRate, Size: 12, Args: []uint32{mbox.ClockV3D, c.Max, 0}},
		mbox.Tag{ID: mbox.TagEnableQPU, Size: 4, Args: []uint32{1}},
	)
	if err := t.Send(m); err != nil {
		return c, fmt.Errorf("%w: %w", ErrInit, err)
	}

	if id := v.Read(Ident0); id != Ident0Want {
		return c, fmt.Errorf("%w: ident0 %08X, want %08X", ErrIdent, id, Ident0Want)
	}
	log.Debug("V3D ident check passed")

	m = mbox.GetClockRate(mbox.ClockV3D)
	err = t.Send(m)
	if err == nil {
		c.Current, err = m.Value(0, 1)
	}
	if err != nil {
		return c, fmt.Errorf("%w: %w", ErrCurrentClock, err)
	}
	log.Infof("GPU core clock reads back as %.1fMHz", float64(c.Current)/1e6)
	return c, nil
}

// Power switches the QPUs, and with them the whole V3D block, on or off.
func Power(t mbox.Transport, on bool) error {
	m := mbox.EnableQPU(on)
	if err := t.Send(m); err != nil {
		return fmt.Errorf("couldn't switch QPUs to %v: %w", on, err)
	}
	s, err := m.Value(0, 0)
	if err != nil {
		return err
	}
	if s != 0 {
		return fmt.Errorf("couldn't switch QPUs to %v: status non-zero: %v", on, s)
	}
	return nil
}

// ClockRate reads the current V3D clock.
func ClockRate(t mbox.Transport) (uint32, error) {
	m := mbox.GetClockRate(mbox.ClockV3D)
	if err := t.Send(m); err != nil {
		return 0, err
	}
	return m.Value(0, 1)
}
