package infra

import (
	"debug/pe"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/test/fixtures"
)

func TestPEClassifier_Classify(t *testing.T) {
	dir := t.TempDir()
	c := NewPEClassifier()

	tests := []struct {
		name string
		data []byte
		want domain.ArchitectureClass
	}{
		{"i386", fixtures.PEStub(pe.IMAGE_FILE_MACHINE_I386), domain.Arch32},
		{"amd64", fixtures.PEStub(pe.IMAGE_FILE_MACHINE_AMD64), domain.Arch64},
		{"arm64", fixtures.PEStub(pe.IMAGE_FILE_MACHINE_ARM64), domain.Arch64},
		{"unknown machine", fixtures.PEStub(pe.IMAGE_FILE_MACHINE_ARMNT), domain.ArchUnknown},
		{"empty", nil, domain.ArchUnknown},
		{"text file", []byte("#!/bin/sh\necho hello\n"), domain.ArchUnknown},
		{"truncated after dos header", fixtures.PEStub(pe.IMAGE_FILE_MACHINE_AMD64)[:70], domain.ArchUnknown},
		{"mz without pe signature", append([]byte("MZ"), make([]byte, 200)...), domain.ArchUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".exe")
			require.NoError(t, os.WriteFile(path, tt.data, 0644))

			got, err := c.Classify(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPEClassifier_MissingFileIsError(t *testing.T) {
	c := NewPEClassifier()
	_, err := c.Classify(filepath.Join(t.TempDir(), "nope.exe"))
	assert.Error(t, err)
}

func TestPEClassifier_BogusOffset(t *testing.T) {
	data := fixtures.PEStub(pe.IMAGE_FILE_MACHINE_AMD64)
	// e_lfanew pointing far past the end of the file
	data[0x3c], data[0x3d], data[0x3e], data[0x3f] = 0xff, 0xff, 0x0f, 0x00

	path := filepath.Join(t.TempDir(), "bogus.exe")
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := NewPEClassifier().Classify(path)
	require.NoError(t, err)
	assert.Equal(t, domain.ArchUnknown, got)
}
