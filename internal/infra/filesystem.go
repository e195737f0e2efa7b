// Package infra implements infrastructure concerns (classification, locks, files, configuration).
package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct {
	fileMode os.FileMode
}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	return &FileSystemManagerImpl{fileMode: 0644}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile returns the file content.
func (fm *FileSystemManagerImpl) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile replaces the file atomically: temp file in the same directory,
// sync, then rename over the destination.
func (fm *FileSystemManagerImpl) WriteFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".dlcdeploy-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpPath, fm.fileMode); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return err
	}

	success = true
	return nil
}

// Delete removes a single file. Missing files are not an error.
func (fm *FileSystemManagerImpl) Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListFiles returns regular files directly inside dir with the given extension.
func (fm *FileSystemManagerImpl) ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
