// Package rpi finds out which Raspberry Pi it's running on and maps the
// parts of its physical memory the V3D driver needs.
package rpi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
)

// RevisionFile holds the board revision as a big-endian uint32.
const RevisionFile = "/proc/device-tree/system/linux,revision"

var (
	ErrUnknownBoard = errors.New("rpi: unknown board revision")
	ErrUnsupported  = errors.New("rpi: board has no VideoCore IV")
)

// RPi is a detected board and everything mapped from its /dev/mem.
type RPi struct {
	hw *hw

	mu   sync.Mutex
	maps []mmap.MMap
}

// NewRPi detects the board. Nothing is mapped yet.
func NewRPi() (*RPi, error) {
	hw, err := detectHardware(RevisionFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't detect RPi hardware: %w", err)
	}
	return &RPi{hw: hw}, nil
}

func (rp *RPi) Name() string {
	return rp.hw.name
}

// PeriphBase is the ARM physical address of the peripherals.
func (rp *RPi) PeriphBase() uint32 {
	return rp.hw.periphBase
}

// VCBase is the alias the VideoCore puts on SDRAM bus addresses.
func (rp *RPi) VCBase() uint32 {
	return rp.hw.vcBase
}

type hw struct {
	hwType     int
	periphBase uint32
	vcBase     uint32
	name       string
}

const (
	RPI_HWVER_TYPE_UNKNOWN = iota
	RPI_HWVER_TYPE_PI1
	RPI_HWVER_TYPE_PI2
	RPI_HWVER_TYPE_PI4

	PERIPH_BASE_RPI  = 0x20000000
	PERIPH_BASE_RPI2 = 0x3f000000
	PERIPH_BASE_RPI4 = 0xfe000000

	VIDEOCORE_BASE_RPI  = 0x40000000
	VIDEOCORE_BASE_RPI2 = 0xc0000000
)

// detectHardware reads the revision from the device tree file at path.
func detectHardware(path string) (*hw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open linux revision file: %w", err)
	}
	b := make([]byte, 4)
	n, err := f.Read(b)
	f.Close() // Ignore error
	if err != nil {
		return nil, fmt.Errorf("couldn't read revision: %w", err)
	}
	return parseRevision(b[:n])
}

func parseRevision(b []byte) (*hw, error) {
	if len(b) != 4 {
		return nil, fmt.Errorf("revision file got %d instead of 4 bytes", len(b))
	}
	var ver uint32
	err := binary.Read(bytes.NewReader(b), binary.BigEndian, &ver)
	if err != nil {
		return nil, fmt.Errorf("somehow couldn't convert 4 bytes to a uint32: %w", err)
	}
	rp, ok := rasPiVariants[ver]
	if !ok {
		return nil, fmt.Errorf("%w %X", ErrUnknownBoard, ver)
	}
	if rp.hwType == RPI_HWVER_TYPE_PI4 {
		return nil, fmt.Errorf("%w: %s (revision %X)", ErrUnsupported, rp.name, ver)
	}
	return &rp, nil
}

var rasPiVariants = map[uint32]hw{
	//
	// Pi 4 class, VideoCore VI: recognised so they can be refused
	//
	0xC03130: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 400 - 4GB v1.0"},
	0xA03111: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 1GB v1.1"},
	0xB03111: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 2GB v.1.1"},
	0xC03111: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 4GB v1.1"},
	0xA03112: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 1GB v1.2"},
	0xB03112: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 2GB v.1.2"},
	0xC03112: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 4GB v1.2"},
	0xD03114: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 8GB v1.2"},
	0xB03114: {RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "Pi 4 Model B - 2GB v1.4"},

	//
	// BCM2835
	//
	0x02:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x03:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x04:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x05:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x06:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x07:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model A"},
	0x08:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model A"},
	0x09:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model A"},
	0x0d:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x0e:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x0f:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B"},
	0x10:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B+"},
	0x13:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B+"},
	0x900032: {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model B+"},
	0x11:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Compute Module 1"},
	0x14:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Compute Module 1"},
	0x900092: {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Pi Zero v1.2"},
	0x900093: {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Pi Zero v1.3"},
	0x920093: {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Pi Zero v1.3"},
	0x9200c1: {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Pi Zero W v1.1"},
	0x9000c1: {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Pi Zero W v1.1"},
	0x12:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model A+"},
	0x15:     {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model A+"},
	0x900021: {RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "Model A+"},

	//
	// BCM2836 and BCM2837
	//
	0xA01041: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 2"},
	0xA01040: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 2"},
	0xA21041: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 2"},
	0xA22042: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 2"},
	0xA020D3: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 3 B+"},
	0xA02082: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 3"},
	0xA02083: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 3"},
	0xA22082: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 3"},
	0xA22083: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Pi 3"},
	0x9020e0: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Model 3 A+"},
	0xA020A0: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Compute Module 3/L3"},
	0xA02100: {RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "Compute Module 3+"},
}
