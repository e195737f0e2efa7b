// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

const peHeaderOffset = 0x80

// PEStub returns a minimal PE image header for the given COFF machine type.
// Enough for header classification; not loadable.
func PEStub(machine uint16) []byte {
	buf := make([]byte, peHeaderOffset+24)
	buf[0], buf[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(buf[0x3c:], peHeaderOffset)
	copy(buf[peHeaderOffset:], []byte{'P', 'E', 0, 0})
	binary.LittleEndian.PutUint16(buf[peHeaderOffset+4:], machine)
	return buf
}

// WriteExecutable writes a PE stub of the given architecture to path.
func WriteExecutable(path string, arch domain.ArchitectureClass) error {
	machine := uint16(pe.IMAGE_FILE_MACHINE_UNKNOWN)
	switch arch {
	case domain.Arch32:
		machine = pe.IMAGE_FILE_MACHINE_I386
	case domain.Arch64:
		machine = pe.IMAGE_FILE_MACHINE_AMD64
	}
	return os.WriteFile(path, PEStub(machine), 0755)
}

// FakeGameInstall creates a directory mimicking an installed game.
type FakeGameInstall struct {
	Dir         string
	Executables map[string]domain.ArchitectureClass
}

// NewFakeGameInstall creates a game with a 64-bit game.exe and a 32-bit game32.exe.
func NewFakeGameInstall(dir string) *FakeGameInstall {
	return &FakeGameInstall{
		Dir: dir,
		Executables: map[string]domain.ArchitectureClass{
			"game.exe":   domain.Arch64,
			"game32.exe": domain.Arch32,
		},
	}
}

// Create writes the executables plus a data file that must survive every operation.
func (f *FakeGameInstall) Create() error {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return err
	}
	for name, arch := range f.Executables {
		if err := WriteExecutable(filepath.Join(f.Dir, name), arch); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(f.Dir, "data.pak"), []byte("game data"), 0644)
}

// ExecutablePaths returns the absolute executable paths, sorted.
func (f *FakeGameInstall) ExecutablePaths() []string {
	paths := make([]string, 0, len(f.Executables))
	for name := range f.Executables {
		paths = append(paths, filepath.Join(f.Dir, name))
	}
	sort.Strings(paths)
	return paths
}

// Files returns the names of all files currently in the directory, sorted.
func (f *FakeGameInstall) Files() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// OriginalFiles returns the names Create writes, sorted.
func (f *FakeGameInstall) OriginalFiles() []string {
	names := []string{"data.pak"}
	for name := range f.Executables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exists checks if a file exists inside the game directory.
func (f *FakeGameInstall) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.Dir, name))
	return err == nil
}
