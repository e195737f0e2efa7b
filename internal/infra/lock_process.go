package infra

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// processSnapshotTTL bounds how long one open-file snapshot is reused, so a
// directory's lock gate costs a single process table walk.
const processSnapshotTTL = 2 * time.Second

// ProcessLockDetector implements domain.LockDetector by walking the process
// table with gopsutil and checking every process's open files.
type ProcessLockDetector struct {
	source func() (map[string]int32, error)
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	takenAt  time.Time
	snapshot map[string]int32
}

// NewProcessLockDetector creates a detector backed by the live process table.
func NewProcessLockDetector(logger *zap.Logger) *ProcessLockDetector {
	return NewProcessLockDetectorWithSource(openFilesSnapshot, logger)
}

// NewProcessLockDetectorWithSource creates a detector with a custom snapshot source (for testing).
func NewProcessLockDetectorWithSource(source func() (map[string]int32, error), logger *zap.Logger) *ProcessLockDetector {
	return &ProcessLockDetector{
		source: source,
		ttl:    processSnapshotTTL,
		logger: logger,
	}
}

// IsLocked reports whether any other process has path open.
func (d *ProcessLockDetector) IsLocked(path string) (bool, error) {
	snapshot, err := d.current()
	if err != nil {
		return false, err
	}

	pid, ok := snapshot[normalizeOpenPath(path)]
	if ok {
		d.logger.Debug("file held open by process",
			zap.String("path", path),
			zap.Int32("pid", pid))
	}
	return ok, nil
}

func (d *ProcessLockDetector) current() (map[string]int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.snapshot != nil && time.Since(d.takenAt) < d.ttl {
		return d.snapshot, nil
	}

	snapshot, err := d.source()
	if err != nil {
		return nil, err
	}
	d.snapshot = snapshot
	d.takenAt = time.Now()
	return snapshot, nil
}

// openFilesSnapshot maps every path open in another process to its PID.
func openFilesSnapshot() (map[string]int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	self := int32(os.Getpid())
	open := make(map[string]int32)
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		files, err := p.OpenFiles()
		if err != nil {
			continue // Process may have exited or be inaccessible
		}
		for _, f := range files {
			open[normalizeOpenPath(f.Path)] = p.Pid
		}
	}
	return open, nil
}

func normalizeOpenPath(path string) string {
	cleaned := filepath.Clean(path)
	if runtime.GOOS == "windows" {
		return strings.ToLower(cleaned)
	}
	return cleaned
}

// Ensure ProcessLockDetector implements domain.LockDetector.
var _ domain.LockDetector = (*ProcessLockDetector)(nil)
