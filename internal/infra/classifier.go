package infra

import (
	"debug/pe"
	"encoding/binary"
	"io"
	"os"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

const (
	dosHeaderSize   = 64
	peOffsetField   = 0x3c
	maxPEHeaderSeek = 1 << 20
)

// PEClassifier implements domain.BinaryClassifier by reading the PE header.
// Only the DOS header and the COFF machine field are read.
type PEClassifier struct{}

// NewPEClassifier creates a new classifier.
func NewPEClassifier() domain.BinaryClassifier {
	return &PEClassifier{}
}

// Classify returns the architecture class of the executable at path.
// A file that cannot be opened is an error; anything unreadable past that
// (truncated, still being written, not a PE image) is ArchUnknown.
func (c *PEClassifier) Classify(path string) (domain.ArchitectureClass, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ArchUnknown, err
	}
	defer f.Close()

	var dos [dosHeaderSize]byte
	if _, err := io.ReadFull(f, dos[:]); err != nil {
		return domain.ArchUnknown, nil
	}
	if dos[0] != 'M' || dos[1] != 'Z' {
		return domain.ArchUnknown, nil
	}

	offset := binary.LittleEndian.Uint32(dos[peOffsetField:])
	if offset < dosHeaderSize || offset > maxPEHeaderSeek {
		return domain.ArchUnknown, nil
	}

	// "PE\0\0" followed by the COFF Machine field
	var hdr [6]byte
	if _, err := f.ReadAt(hdr[:], int64(offset)); err != nil {
		return domain.ArchUnknown, nil
	}
	if hdr[0] != 'P' || hdr[1] != 'E' || hdr[2] != 0 || hdr[3] != 0 {
		return domain.ArchUnknown, nil
	}

	return machineClass(binary.LittleEndian.Uint16(hdr[4:])), nil
}

func machineClass(machine uint16) domain.ArchitectureClass {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		return domain.Arch32
	case pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64, pe.IMAGE_FILE_MACHINE_IA64:
		return domain.Arch64
	default:
		return domain.ArchUnknown
	}
}

// Ensure PEClassifier implements domain.BinaryClassifier.
var _ domain.BinaryClassifier = (*PEClassifier)(nil)
