//go:build unix

package infra

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// probeExclusive tries a non-blocking exclusive flock. The lock is released
// immediately; the file is never modified.
func probeExclusive(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	fd := int(f.Fd())
	err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		_ = unix.Flock(fd, unix.LOCK_UN)
		return false, nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		return true, nil
	}
	return false, err
}
