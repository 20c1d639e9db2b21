package mmio

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a bounded Poll gives up.
var ErrTimeout = errors.New("mmio: timed out waiting for hardware")

// Poll is the policy for busy-waiting on a hardware condition.
//
// The zero value spins until the condition holds, however long that takes:
// an unresponsive GPU hangs the caller. Attempts and Timeout bound the wait,
// Interval sleeps between reads instead of spinning.
type Poll struct {
	Attempts int
	Timeout  time.Duration
	Interval time.Duration
}

// Bounded reports whether the policy can give up.
func (p Poll) Bounded() bool {
	return p.Attempts > 0 || p.Timeout > 0
}

// Until calls cond until it returns true or the policy runs out.
func (p Poll) Until(cond func() bool) error {
	var deadline time.Time
	if p.Timeout > 0 {
		deadline = time.Now().Add(p.Timeout)
	}
	for i := 1; ; i++ {
		if cond() {
			return nil
		}
		if p.Attempts > 0 && i >= p.Attempts {
			return fmt.Errorf("%w after %d reads", ErrTimeout, i)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrTimeout, p.Timeout)
		}
		if p.Interval > 0 {
			time.Sleep(p.Interval)
		}
	}
}

// Set waits for reg&mask to become non-zero.
func (p Poll) Set(r Regs, off, mask uint32) error {
	return p.Until(func() bool { return r.Read(off)&mask != 0 })
}

// Clear waits for reg&mask to become zero.
func (p Poll) Clear(r Regs, off, mask uint32) error {
	return p.Until(func() bool { return r.Read(off)&mask == 0 })
}

// Equal waits for reg to read back want.
func (p Poll) Equal(r Regs, off, want uint32) error {
	return p.Until(func() bool { return r.Read(off) == want })
}
