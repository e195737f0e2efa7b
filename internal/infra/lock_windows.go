//go:build windows

package infra

import (
	"errors"

	"golang.org/x/sys/windows"
)

// probeExclusive opens the file with share mode 0. Any other open handle
// makes this fail with a sharing violation.
func probeExclusive(path string) (bool, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}

	h, err := windows.CreateFile(name, windows.GENERIC_READ, 0, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return true, nil
		}
		return false, err
	}
	_ = windows.CloseHandle(h)
	return false, nil
}
