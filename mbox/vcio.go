package mbox

import (
	"errors"
	"fmt"
	"os"
	"path"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	VCIOFile       = "/dev/vcio"
	videocoreMajor = 100
	vcioTempMode   = 0600
)

// VCIO sends property messages through the kernel's vcio driver. This is
// what userspace uses on a stock Raspberry Pi OS.
type VCIO struct {
	f   *os.File
	req uint32
}

// OpenVCIO opens /dev/vcio. If that doesn't exist, it creates a temporary
// device node instead, opens it and immediately removes it again.
func OpenVCIO() (*VCIO, error) {
	f, err := os.OpenFile(VCIOFile, os.O_RDONLY, os.ModePerm)
	if errors.Is(err, os.ErrNotExist) {
		f, err = openTempNode()
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't open mbox: %w", err)
	}
	return &VCIO{f: f, req: iowr(videocoreMajor, 0, uintptr(0))}, nil
}

func openTempNode() (*os.File, error) {
	tf := path.Join(os.TempDir(), fmt.Sprintf("mailbox-%d", os.Getpid()))
	err := os.Remove(tf)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("couldn't remove temp mbox: %w", err)
	}
	err = unix.Mknod(tf, unix.S_IFCHR|vcioTempMode, int(unix.Mkdev(videocoreMajor, 0)))
	if err != nil {
		return nil, fmt.Errorf("couldn't make device node: %w", err)
	}
	f, err := os.OpenFile(tf, os.O_RDONLY, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("couldn't open temp mbox: %w", err)
	}
	err = os.Remove(tf)
	if err != nil {
		f.Close() // Ignore error
		return nil, fmt.Errorf("couldn't remove temp mbox: %w", err)
	}
	return f, nil
}

func (v *VCIO) Close() error {
	if v == nil || v.f == nil {
		return nil
	}
	err := v.f.Close()
	v.f = nil
	return err
}

func (v *VCIO) Send(m Message) error {
	if v.f == nil {
		return errors.New("mbox: vcio not open")
	}
	dump("TX", m)
	err := ioctlMessage(v.f.Fd(), v.req, m)
	if err != nil {
		return fmt.Errorf("failed ioctl mbox property: %w", err)
	}
	dump("RX", m)
	return m.Check()
}

func dump(dir string, m Message) {
	if !log.IsLevelEnabled(log.TraceLevel) {
		return
	}
	log.Tracef("%s:", dir)
	for i, w := range m {
		log.Tracef("  %02d: 0x%08X", i, w)
	}
}
