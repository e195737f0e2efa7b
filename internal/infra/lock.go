package infra

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// FileLockDetector implements domain.LockDetector with an exclusive open
// probe, optionally backed by a scan of other processes' open files.
type FileLockDetector struct {
	probe     func(path string) (bool, error)
	processes domain.LockDetector
	logger    *zap.Logger
}

// NewLockDetector creates a lock detector. With scanProcesses the detector
// also consults the process table, which catches holders that do not use
// mandatory or advisory locks (e.g. games under Wine).
func NewLockDetector(scanProcesses bool, logger *zap.Logger) domain.LockDetector {
	d := &FileLockDetector{
		probe:  probeExclusive,
		logger: logger,
	}
	if scanProcesses {
		d.processes = NewProcessLockDetector(logger)
	}
	return d
}

// IsLocked reports whether path is held open elsewhere.
func (d *FileLockDetector) IsLocked(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	locked, err := d.probe(path)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", path, err)
	}
	if locked {
		d.logger.Debug("file locked (exclusive open refused)", zap.String("path", path))
		return true, nil
	}

	if d.processes != nil {
		return d.processes.IsLocked(path)
	}
	return false, nil
}

// Ensure FileLockDetector implements domain.LockDetector.
var _ domain.LockDetector = (*FileLockDetector)(nil)
