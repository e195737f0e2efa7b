package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

func TestFileSystemManager_WriteFileReplacesAtomically(t *testing.T) {
	fs := NewFileSystemManager()
	dir := t.TempDir()
	path := filepath.Join(dir, "SmokeAPI.json")

	require.NoError(t, fs.WriteFile(path, []byte("first")))
	require.NoError(t, fs.WriteFile(path, []byte("second")))

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSystemManager_WriteFileMissingDirectory(t *testing.T) {
	fs := NewFileSystemManager()
	err := fs.WriteFile(filepath.Join(t.TempDir(), "nope", "a.dll"), []byte("x"))
	assert.Error(t, err)
}

func TestFileSystemManager_DeleteMissingIsNotError(t *testing.T) {
	fs := NewFileSystemManager()
	path := filepath.Join(t.TempDir(), "a.dll")

	assert.NoError(t, fs.Delete(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, fs.Exists(path))
	assert.NoError(t, fs.Delete(path))
	assert.False(t, fs.Exists(path))
}

func TestFileSystemManager_ListFiles(t *testing.T) {
	fs := NewFileSystemManager()
	dir := t.TempDir()
	for _, name := range []string{"b.exe", "A.EXE", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.exe"), 0755))

	files, err := fs.ListFiles(dir, ".exe")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "A.EXE"), filepath.Join(dir, "b.exe")}, files)

	_, err = fs.ListFiles(filepath.Join(dir, "missing"), ".exe")
	assert.Error(t, err)
}

func TestFileSystemManager_ExpandHome(t *testing.T) {
	fs := NewFileSystemManager()
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Games"), fs.ExpandHome("~/Games"))
	assert.Equal(t, "/abs/path", fs.ExpandHome("/abs/path"))
}

func TestReconcileFile(t *testing.T) {
	fs := NewFileSystemManager()
	path := filepath.Join(t.TempDir(), "cfg.json")

	res, err := ReconcileFile(fs, path, []byte("a"), true)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultWritten, res)

	res, err = ReconcileFile(fs, path, []byte("a"), true)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultUnchanged, res)

	res, err = ReconcileFile(fs, path, nil, false)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultDeleted, res)

	res, err = ReconcileFile(fs, path, nil, false)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultNotPresent, res)
}
