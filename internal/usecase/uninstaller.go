package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// UninstallerImpl implements domain.Uninstaller.
type UninstallerImpl struct {
	catalog      domain.PayloadCatalog
	locks        domain.LockDetector
	loaderConfig domain.ConfigWriter
	families     domain.FamilyRegistry
	fsManager    domain.FileSystemManager
	logger       *zap.Logger
}

// NewUninstaller creates a new uninstaller.
func NewUninstaller(
	catalog domain.PayloadCatalog,
	locks domain.LockDetector,
	loaderConfig domain.ConfigWriter,
	families domain.FamilyRegistry,
	fs domain.FileSystemManager,
	logger *zap.Logger,
) *UninstallerImpl {
	return &UninstallerImpl{
		catalog:      catalog,
		locks:        locks,
		loaderConfig: loaderConfig,
		families:     families,
		fsManager:    fs,
		logger:       logger,
	}
}

// Uninstall removes every loader proxy and shim payload that is
// byte-identical to a catalog entry. Same-named files with other content
// are reported as kept-foreign and left alone.
func (u *UninstallerImpl) Uninstall(ctx context.Context, directory string, deleteConfig bool) (*domain.UninstallReport, error) {
	start := time.Now()

	dir, err := filepath.Abs(u.fsManager.ExpandHome(directory))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", directory, err)
	}
	if !u.fsManager.Exists(dir) {
		return nil, fmt.Errorf("target directory %s: %w", dir, os.ErrNotExist)
	}

	report := &domain.UninstallReport{
		Report: domain.Report{
			RunID:      uuid.New().String(),
			Operation:  domain.OperationUninstall,
			Directory:  dir,
			ExecutedAt: start,
		},
		DeleteConfig: deleteConfig,
	}
	logger := u.logger.With(zap.String("run_id", report.RunID), zap.String("dir", dir))
	defer func() {
		report.DurationMs = time.Since(start).Milliseconds()
	}()

	var proxies []string
	for _, name := range u.catalog.ListNames() {
		proxies = append(proxies, filepath.Join(dir, u.catalog.ProxyFileName(name)))
	}
	families := u.families.All()

	for i, path := range proxies {
		if err := ctx.Err(); err != nil {
			u.deferRest(report, proxies[i:], families, dir, deleteConfig, err, logger)
			return report, nil
		}
		if res, ok := u.removeProxy(path, logger); ok {
			report.Add(res)
		}
	}

	for i, f := range families {
		if err := ctx.Err(); err != nil {
			u.deferRest(report, nil, families[i:], dir, deleteConfig, err, logger)
			return report, nil
		}
		results, err := f.Uninstall(dir, deleteConfig)
		if err != nil {
			logger.Error("shim uninstall failed", zap.String("family", f.ID()), zap.Error(err))
		}
		for _, res := range results {
			report.Add(res)
		}
	}

	if deleteConfig {
		if err := ctx.Err(); err != nil {
			u.deferRest(report, nil, nil, dir, deleteConfig, err, logger)
			return report, nil
		}
		path := u.loaderConfig.Path(dir)
		result, err := u.loaderConfig.Remove(dir)
		switch {
		case err != nil:
			logger.Error("loader config removal failed", zap.String("path", path), zap.Error(err))
			report.Add(domain.FileResult{Path: path, Action: domain.ActionDeleteConfig, Outcome: domain.OutcomeFailed, Err: err})
		case result == domain.WriteResultDeleted:
			report.Add(domain.FileResult{Path: path, Action: domain.ActionDeleteConfig, Outcome: domain.OutcomeDeleted})
		}
	}

	logger.Info("uninstall finished",
		zap.String("status", string(report.Status())),
		zap.Int("deleted", report.Count(domain.OutcomeDeleted)),
		zap.Int("kept_foreign", report.Count(domain.OutcomeKeptForeign)))
	return report, nil
}

func (u *UninstallerImpl) removeProxy(path string, logger *zap.Logger) (domain.FileResult, bool) {
	if !u.fsManager.Exists(path) {
		return domain.FileResult{}, false
	}
	res := domain.FileResult{Path: path, Action: domain.ActionDeleteProxy}

	desc, owned, err := u.catalog.IdentifyByContent(path)
	if err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("identify %s: %w", path, err)
		return res, true
	}
	if !owned || desc.Purpose != domain.PurposeLoaderProxy {
		logger.Info("keeping foreign file", zap.String("path", path))
		res.Outcome = domain.OutcomeKeptForeign
		return res, true
	}

	locked, err := u.locks.IsLocked(path)
	if err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("lock check %s: %w", path, err)
		return res, true
	}
	if locked {
		logger.Warn("file is locked", zap.String("path", path))
		res.Outcome, res.Err = domain.OutcomeSkippedLocked, fmt.Errorf("%w: %s", domain.ErrLockedFile, path)
		return res, true
	}

	if err := u.fsManager.Delete(path); err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("delete %s: %w", path, err)
		return res, true
	}
	logger.Info("deleted loader proxy", zap.String("path", path), zap.String("arch", desc.Architecture.String()))
	res.Outcome = domain.OutcomeDeleted
	return res, true
}

// deferRest records the files a cancelled run did not get to.
func (u *UninstallerImpl) deferRest(report *domain.UninstallReport, proxies []string, families []domain.ShimFamily, dir string, deleteConfig bool, cause error, logger *zap.Logger) {
	add := func(path string, action domain.Action) {
		if u.fsManager.Exists(path) {
			report.Add(domain.FileResult{Path: path, Action: action, Outcome: domain.OutcomeDeferred, Err: cause})
		}
	}
	for _, path := range proxies {
		add(path, domain.ActionDeleteProxy)
	}
	for _, f := range families {
		for _, arch := range []domain.ArchitectureClass{domain.Arch32, domain.Arch64} {
			add(filepath.Join(dir, f.FileName(arch)), domain.ActionDeleteShim)
		}
		if deleteConfig {
			add(f.ConfigPath(dir), domain.ActionDeleteConfig)
		}
	}
	if deleteConfig {
		add(u.loaderConfig.Path(dir), domain.ActionDeleteConfig)
	}
	logger.Warn("uninstall interrupted", zap.Int("deferred", report.Count(domain.OutcomeDeferred)), zap.Error(cause))
}

// Ensure UninstallerImpl implements domain.Uninstaller.
var _ domain.Uninstaller = (*UninstallerImpl)(nil)
