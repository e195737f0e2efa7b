package usecase

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/catalog"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/infra"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/shim"
	"github.com/eliteGoblin/focusd/dlc_deploy/test/fixtures"
)

// mockLockDetector implements domain.LockDetector for testing
type mockLockDetector struct {
	mu      sync.Mutex
	locked  map[string]bool
	err     error
	checked []string
	onCheck func(path string)
}

func (m *mockLockDetector) IsLocked(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, path)
	if m.onCheck != nil {
		m.onCheck(path)
	}
	if m.err != nil {
		return false, m.err
	}
	return m.locked[path], nil
}

// recordingFS wraps the real filesystem manager and records mutations
type recordingFS struct {
	domain.FileSystemManager
	writes    []string
	deletes   []string
	writeErrs map[string]error
}

func (r *recordingFS) WriteFile(path string, data []byte) error {
	if err := r.writeErrs[path]; err != nil {
		return err
	}
	r.writes = append(r.writes, path)
	return r.FileSystemManager.WriteFile(path, data)
}

func (r *recordingFS) Delete(path string) error {
	r.deletes = append(r.deletes, path)
	return r.FileSystemManager.Delete(path)
}

func (r *recordingFS) reset() {
	r.writes, r.deletes = nil, nil
}

type harness struct {
	dir         string
	game        *fixtures.FakeGameInstall
	cat         *catalog.Catalog
	fs          *recordingFS
	locks       *mockLockDetector
	deployer    *DeployerImpl
	uninstaller *UninstallerImpl
}

func newHarness(t *testing.T, executables map[string]domain.ArchitectureClass) *harness {
	t.Helper()

	dir := t.TempDir()
	game := fixtures.NewFakeGameInstall(dir)
	if executables != nil {
		game.Executables = executables
	}
	require.NoError(t, game.Create())

	cat, err := catalog.Default()
	require.NoError(t, err)

	logger := zap.NewNop()
	fs := &recordingFS{FileSystemManager: infra.NewFileSystemManager(), writeErrs: map[string]error{}}
	locks := &mockLockDetector{locked: map[string]bool{}}
	families := shim.NewRegistry(shim.Deps{FS: fs, Catalog: cat, Locks: locks, Logger: logger})
	loader := infra.NewLoaderConfigWriter(fs, logger)

	return &harness{
		dir:         dir,
		game:        game,
		cat:         cat,
		fs:          fs,
		locks:       locks,
		deployer:    NewDeployer(infra.NewPEClassifier(), cat, locks, loader, families, fs, logger),
		uninstaller: NewUninstaller(cat, locks, loader, families, fs, logger),
	}
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func (h *harness) selection(platform domain.Platform, proxy string) domain.TargetSelection {
	return domain.TargetSelection{
		Name:          "Fake Game",
		Directory:     h.dir,
		Platform:      platform,
		ProxyName:     proxy,
		EnabledAddOns: []string{"1001"},
	}
}

func (h *harness) payload(t *testing.T, logical string, arch domain.ArchitectureClass) []byte {
	t.Helper()
	desc, err := h.cat.Lookup(logical, arch)
	require.NoError(t, err)
	return desc.Bytes
}

func (h *harness) read(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(h.path(name))
	require.NoError(t, err)
	return data
}

func (h *harness) files(t *testing.T) []string {
	t.Helper()
	files, err := h.game.Files()
	require.NoError(t, err)
	return files
}

func outcomesByPath(results []domain.FileResult) map[string]domain.Outcome {
	out := make(map[string]domain.Outcome, len(results))
	for _, r := range results {
		out[r.Path] = r.Outcome
	}
	return out
}
