// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// ExecutableExt is the extension of the files a directory scan classifies.
const ExecutableExt = ".exe"

type stepKind int

const (
	stepBinary stepKind = iota
	stepFamilyConfig
	stepStaleFamily
	stepLoaderConfig
)

// step is one planned operation. Binary steps touch a payload file; the
// other kinds delegate to a configuration collaborator.
type step struct {
	kind   stepKind
	op     domain.PlannedOperation
	family domain.ShimFamily
	// err is a failure found while planning; the step is reported, not executed.
	err error
}

// DeployerImpl implements domain.Deployer.
type DeployerImpl struct {
	classifier   domain.BinaryClassifier
	catalog      domain.PayloadCatalog
	locks        domain.LockDetector
	loaderConfig domain.ConfigWriter
	families     domain.FamilyRegistry
	fsManager    domain.FileSystemManager
	logger       *zap.Logger
}

// NewDeployer creates a new deployer.
func NewDeployer(
	classifier domain.BinaryClassifier,
	catalog domain.PayloadCatalog,
	locks domain.LockDetector,
	loaderConfig domain.ConfigWriter,
	families domain.FamilyRegistry,
	fs domain.FileSystemManager,
	logger *zap.Logger,
) *DeployerImpl {
	return &DeployerImpl{
		classifier:   classifier,
		catalog:      catalog,
		locks:        locks,
		loaderConfig: loaderConfig,
		families:     families,
		fsManager:    fs,
		logger:       logger,
	}
}

// Install deploys the selected loader proxy and the platform's shims into
// the selection's directory. Per-file problems are collected in the report;
// only an invalid selection is returned as an error.
func (d *DeployerImpl) Install(ctx context.Context, selection domain.TargetSelection) (*domain.InstallReport, error) {
	start := time.Now()

	sel, err := d.validate(selection)
	if err != nil {
		return nil, err
	}

	report := &domain.InstallReport{
		Report: domain.Report{
			RunID:      uuid.New().String(),
			Operation:  domain.OperationInstall,
			Directory:  sel.Directory,
			ExecutedAt: start,
		},
		Selection: sel,
	}
	logger := d.logger.With(zap.String("run_id", report.RunID), zap.String("dir", sel.Directory))
	defer func() {
		report.DurationMs = time.Since(start).Milliseconds()
	}()

	scan, err := d.Scan(ctx, sel.Directory)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("directory scan failed", zap.Error(err))
		report.Add(domain.FileResult{Path: sel.Directory, Action: domain.ActionWriteProxy, Outcome: domain.OutcomeFailed, Err: err})
		return report, nil
	}
	report.Has32, report.Has64 = scan.Has32, scan.Has64

	if len(scan.Executables) == 0 {
		logger.Warn("no classifiable executables, nothing deployed")
		report.Add(domain.FileResult{
			Path:    d.proxyPath(sel),
			Action:  domain.ActionWriteProxy,
			Outcome: domain.OutcomeFailed,
			Err:     fmt.Errorf("%w: %s", domain.ErrNoExecutables, sel.Directory),
		})
		return report, nil
	}

	steps := d.buildSteps(sel, scan, logger)

	if !d.markConfigChanges(sel, scan, steps) {
		logger.Debug("directory is up to date")
	} else if d.lockGate(steps, &report.Report, logger) {
		logger.Warn("directory has locked files, deployment deferred",
			zap.Int("skipped_locked", report.Count(domain.OutcomeSkippedLocked)),
			zap.Int("deferred", report.Count(domain.OutcomeDeferred)))
		return report, nil
	}

	d.execute(ctx, sel, scan, steps, &report.Report, logger)

	logger.Info("install finished",
		zap.String("status", string(report.Status())),
		zap.Int("written", report.Count(domain.OutcomeWritten)),
		zap.Int("deleted", report.Count(domain.OutcomeDeleted)),
		zap.Int("unchanged", report.Count(domain.OutcomeUnchanged)))
	return report, nil
}

// Plan computes what Install would do without modifying the directory.
func (d *DeployerImpl) Plan(ctx context.Context, selection domain.TargetSelection) (*domain.Plan, error) {
	sel, err := d.validate(selection)
	if err != nil {
		return nil, err
	}

	scan, err := d.Scan(ctx, sel.Directory)
	if err != nil {
		return nil, err
	}
	if len(scan.Executables) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoExecutables, sel.Directory)
	}

	plan := &domain.Plan{Selection: sel, Scan: scan}
	for _, s := range d.buildSteps(sel, scan, d.logger) {
		op := s.op
		if s.kind == stepBinary {
			plan.Operations = append(plan.Operations, op)
			continue
		}

		data, present, err := d.renderConfig(sel, scan, s)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", op.Path, err)
		}

		op.Action = domain.ActionWriteConfig
		if !present {
			op.Action = domain.ActionDeleteConfig
		}
		preview, changes := d.preview(op.Path, data, present)
		op.Changes = changes
		plan.Operations = append(plan.Operations, op)
		if changes {
			plan.Previews = append(plan.Previews, preview)
		}
	}
	return plan, nil
}

// Scan classifies the executables directly inside directory.
func (d *DeployerImpl) Scan(ctx context.Context, directory string) (domain.ScanResult, error) {
	scan := domain.ScanResult{Directory: directory}

	files, err := d.fsManager.ListFiles(directory, ExecutableExt)
	if err != nil {
		return scan, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return scan, err
		}
		arch, err := d.classifier.Classify(path)
		if err != nil {
			d.logger.Warn("cannot classify executable", zap.String("path", path), zap.Error(err))
			continue
		}
		switch arch {
		case domain.Arch32:
			scan.Has32 = true
		case domain.Arch64:
			scan.Has64 = true
		default:
			continue
		}
		scan.Executables = append(scan.Executables, domain.Executable{Path: path, Architecture: arch})
	}
	return scan, nil
}

func (d *DeployerImpl) validate(sel domain.TargetSelection) (domain.TargetSelection, error) {
	if strings.TrimSpace(sel.Directory) == "" {
		return sel, errors.New("selection has no directory")
	}
	dir, err := filepath.Abs(d.fsManager.ExpandHome(sel.Directory))
	if err != nil {
		return sel, fmt.Errorf("resolve %s: %w", sel.Directory, err)
	}
	sel.Directory = dir

	platform, err := domain.ParsePlatform(string(sel.Platform))
	if err != nil {
		return sel, err
	}
	sel.Platform = platform

	if d.catalog.ProxyFileName(sel.ProxyName) == "" {
		return sel, fmt.Errorf("%w: %q (available: %s)",
			domain.ErrUnknownProxy, sel.ProxyName, strings.Join(d.catalog.ListNames(), ", "))
	}
	if !d.fsManager.Exists(dir) {
		return sel, fmt.Errorf("target directory %s: %w", dir, os.ErrNotExist)
	}
	return sel, nil
}

func (d *DeployerImpl) proxyPath(sel domain.TargetSelection) string {
	return filepath.Join(sel.Directory, d.catalog.ProxyFileName(sel.ProxyName))
}

// proxyArchitecture prefers the 64-bit variant when a 64-bit executable is
// present. A variant for an absent architecture is never chosen.
func (d *DeployerImpl) proxyArchitecture(name string, scan domain.ScanResult) domain.ArchitectureClass {
	for _, arch := range []domain.ArchitectureClass{domain.Arch64, domain.Arch32} {
		if !scan.Has(arch) {
			continue
		}
		if _, err := d.catalog.Lookup(name, arch); err == nil {
			return arch
		}
	}
	return domain.ArchUnknown
}

// loaderDocument is the loader's own configuration. The loader auto-loads
// the shims next to it, so it needs neither targets nor modules.
func (d *DeployerImpl) loaderDocument(domain.TargetSelection, domain.ScanResult) domain.ConfigDocument {
	return domain.ConfigDocument{}
}

func (d *DeployerImpl) buildSteps(sel domain.TargetSelection, scan domain.ScanResult, logger *zap.Logger) []step {
	dir := sel.Directory
	var steps []step

	// Competing loader proxies: last selected wins.
	for _, name := range d.catalog.ListNames() {
		if strings.EqualFold(name, sel.ProxyName) {
			continue
		}
		path := filepath.Join(dir, d.catalog.ProxyFileName(name))
		if s, ok := d.ownedDelete(path, domain.ActionDeleteProxy, "", logger, func(desc domain.PayloadDescriptor) bool {
			return desc.Purpose == domain.PurposeLoaderProxy
		}); ok {
			steps = append(steps, s)
		}
	}

	proxyPath := d.proxyPath(sel)
	if arch := d.proxyArchitecture(sel.ProxyName, scan); arch == domain.ArchUnknown {
		steps = append(steps, step{
			kind: stepBinary,
			op:   domain.PlannedOperation{Action: domain.ActionWriteProxy, Path: proxyPath, Changes: true},
			err:  fmt.Errorf("%w: %s for %v", domain.ErrPayloadNotFound, sel.ProxyName, scan.Architectures()),
		})
	} else {
		desc, err := d.catalog.Lookup(sel.ProxyName, arch)
		if err != nil {
			steps = append(steps, step{kind: stepBinary, op: domain.PlannedOperation{Action: domain.ActionWriteProxy, Path: proxyPath, Changes: true}, err: err})
		} else {
			steps = append(steps, d.writeStep(domain.ActionWriteProxy, proxyPath, "", desc))
		}
	}

	applicable := make(map[string]bool)
	for _, f := range d.families.ForPlatform(sel.Platform) {
		applicable[f.ID()] = true
	}

	for _, f := range d.families.All() {
		familyID := f.ID()
		deploy := applicable[familyID]

		for _, arch := range []domain.ArchitectureClass{domain.Arch32, domain.Arch64} {
			path := filepath.Join(dir, f.FileName(arch))
			if deploy && scan.Has(arch) {
				desc, err := f.Payload(arch)
				if err != nil {
					steps = append(steps, step{
						kind: stepBinary,
						op:   domain.PlannedOperation{Action: domain.ActionWriteShim, Path: path, Family: familyID, Changes: true},
						err:  err,
					})
					continue
				}
				steps = append(steps, d.writeStep(domain.ActionWriteShim, path, familyID, desc))
				continue
			}
			if s, ok := d.ownedDelete(path, domain.ActionDeleteShim, familyID, logger, func(desc domain.PayloadDescriptor) bool {
				return desc.Family == familyID
			}); ok {
				steps = append(steps, s)
			}
		}

		if deploy {
			steps = append(steps, step{
				kind:   stepFamilyConfig,
				family: f,
				op:     domain.PlannedOperation{Action: domain.ActionWriteConfig, Path: f.ConfigPath(dir), Family: familyID},
			})
		} else {
			steps = append(steps, step{
				kind:   stepStaleFamily,
				family: f,
				op:     domain.PlannedOperation{Action: domain.ActionDeleteConfig, Path: f.ConfigPath(dir), Family: familyID},
			})
		}
	}

	steps = append(steps, step{
		kind: stepLoaderConfig,
		op:   domain.PlannedOperation{Action: domain.ActionDeleteConfig, Path: d.loaderConfig.Path(dir)},
	})
	return steps
}

// renderConfig returns the bytes a configuration step would leave on disk;
// present is false when the file should not exist.
func (d *DeployerImpl) renderConfig(sel domain.TargetSelection, scan domain.ScanResult, s step) ([]byte, bool, error) {
	switch s.kind {
	case stepFamilyConfig:
		return s.family.RenderConfig(sel.Directory, sel, scan)
	case stepLoaderConfig:
		return d.loaderConfig.Render(sel.Directory, d.loaderDocument(sel, scan))
	default:
		return nil, false, nil
	}
}

// markConfigChanges sets Changes on the configuration steps and reports
// whether any step at all would modify the directory.
func (d *DeployerImpl) markConfigChanges(sel domain.TargetSelection, scan domain.ScanResult, steps []step) bool {
	pending := false
	for i := range steps {
		s := &steps[i]
		if s.kind != stepBinary {
			data, present, err := d.renderConfig(sel, scan, *s)
			s.op.Changes = err != nil || d.differs(s.op.Path, data, present)
		}
		if s.op.Changes || s.err != nil {
			pending = true
		}
	}
	return pending
}

// writeStep plans a payload write; a file already holding the payload is a no-op.
func (d *DeployerImpl) writeStep(action domain.Action, path, family string, desc domain.PayloadDescriptor) step {
	payload := desc
	changes := true
	if existing, ok, err := d.catalog.IdentifyByContent(path); err == nil && ok && existing.SHA256 == desc.SHA256 {
		changes = false
	}
	return step{
		kind: stepBinary,
		op:   domain.PlannedOperation{Action: action, Path: path, Family: family, Payload: &payload, Changes: changes},
	}
}

// ownedDelete plans the removal of path if it holds a catalog payload that
// accept agrees is ours. Foreign files are left alone.
func (d *DeployerImpl) ownedDelete(path string, action domain.Action, family string, logger *zap.Logger, accept func(domain.PayloadDescriptor) bool) (step, bool) {
	if !d.fsManager.Exists(path) {
		return step{}, false
	}

	op := domain.PlannedOperation{Action: action, Path: path, Family: family, Changes: true}
	desc, owned, err := d.catalog.IdentifyByContent(path)
	if err != nil {
		return step{kind: stepBinary, op: op, err: fmt.Errorf("identify %s: %w", path, err)}, true
	}
	if !owned || !accept(desc) {
		logger.Debug("leaving foreign file in place", zap.String("path", path))
		return step{}, false
	}
	op.Payload = &desc
	return step{kind: stepBinary, op: op}, true
}

// lockGate checks every payload file the directory will hold or lose,
// including the ones already up to date. If any path is locked, nothing
// runs: each locked path is reported once and every other pending step is
// deferred.
func (d *DeployerImpl) lockGate(steps []step, report *domain.Report, logger *zap.Logger) bool {
	locked := make(map[string]bool)
	for i := range steps {
		s := &steps[i]
		if s.kind != stepBinary || s.err != nil {
			continue
		}
		if !s.op.Changes && !d.fsManager.Exists(s.op.Path) {
			continue
		}
		isLocked, err := d.locks.IsLocked(s.op.Path)
		if err != nil {
			s.err = fmt.Errorf("lock check %s: %w", s.op.Path, err)
			continue
		}
		if isLocked {
			logger.Warn("file is locked", zap.String("path", s.op.Path), zap.String("action", string(s.op.Action)))
			locked[s.op.Path] = true
		}
	}
	if len(locked) == 0 {
		return false
	}

	reported := make(map[string]bool)
	for _, s := range steps {
		res := domain.FileResult{Path: s.op.Path, Action: s.op.Action}
		switch {
		case s.err != nil:
			res.Outcome, res.Err = domain.OutcomeFailed, s.err
		case s.kind == stepBinary && locked[s.op.Path]:
			if reported[s.op.Path] {
				continue
			}
			reported[s.op.Path] = true
			res.Outcome, res.Err = domain.OutcomeSkippedLocked, fmt.Errorf("%w: %s", domain.ErrLockedFile, s.op.Path)
		case s.kind == stepBinary && !s.op.Changes:
			res.Outcome = domain.OutcomeUnchanged
		default:
			res.Outcome = domain.OutcomeDeferred
		}
		report.Add(res)
	}
	return true
}

func (d *DeployerImpl) execute(ctx context.Context, sel domain.TargetSelection, scan domain.ScanResult, steps []step, report *domain.Report, logger *zap.Logger) {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			for _, rest := range steps[i:] {
				report.Add(domain.FileResult{Path: rest.op.Path, Action: rest.op.Action, Outcome: domain.OutcomeDeferred, Err: err})
			}
			logger.Warn("install interrupted", zap.Int("deferred", len(steps)-i), zap.Error(err))
			return
		}

		switch s.kind {
		case stepBinary:
			report.Add(d.applyBinary(s, logger))

		case stepFamilyConfig:
			res, err := s.family.CheckConfig(sel.Directory, sel, scan)
			if err != nil {
				logger.Error("shim config failed", zap.String("family", s.family.ID()), zap.Error(err))
			}
			report.Add(res)

		case stepStaleFamily:
			results, err := s.family.Uninstall(sel.Directory, true)
			if err != nil {
				logger.Error("stale shim cleanup failed", zap.String("family", s.family.ID()), zap.Error(err))
			}
			for _, res := range results {
				report.Add(res)
			}

		case stepLoaderConfig:
			doc := d.loaderDocument(sel, scan)
			action := domain.ActionWriteConfig
			if doc.IsEmpty() {
				action = domain.ActionDeleteConfig
			}
			res := domain.FileResult{Path: s.op.Path, Action: action}
			result, err := d.loaderConfig.Reconcile(sel.Directory, doc)
			if err != nil {
				logger.Error("loader config failed", zap.String("path", s.op.Path), zap.Error(err))
				res.Outcome, res.Err = domain.OutcomeFailed, err
			} else {
				res.Outcome = domain.OutcomeFor(result)
			}
			report.Add(res)
		}
	}
}

func (d *DeployerImpl) applyBinary(s step, logger *zap.Logger) domain.FileResult {
	res := domain.FileResult{Path: s.op.Path, Action: s.op.Action}
	if s.err != nil {
		logger.Error("operation failed", zap.String("path", s.op.Path), zap.String("action", string(s.op.Action)), zap.Error(s.err))
		res.Outcome, res.Err = domain.OutcomeFailed, s.err
		return res
	}
	if !s.op.Changes {
		res.Outcome = domain.OutcomeUnchanged
		return res
	}

	switch s.op.Action {
	case domain.ActionDeleteProxy, domain.ActionDeleteShim:
		if err := d.fsManager.Delete(s.op.Path); err != nil {
			res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("delete %s: %w", s.op.Path, err)
			logger.Error("delete failed", zap.String("path", s.op.Path), zap.Error(err))
			return res
		}
		res.Outcome = domain.OutcomeDeleted
	default:
		if err := d.fsManager.WriteFile(s.op.Path, s.op.Payload.Bytes); err != nil {
			res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("write %s: %w", s.op.Path, err)
			logger.Error("write failed", zap.String("path", s.op.Path), zap.Error(err))
			return res
		}
		res.Outcome = domain.OutcomeWritten
	}

	fields := []zap.Field{zap.String("path", s.op.Path), zap.String("action", string(s.op.Action))}
	if s.op.Family != "" {
		fields = append(fields, zap.String("family", s.op.Family))
	}
	if s.op.Payload != nil {
		fields = append(fields, zap.String("arch", s.op.Payload.Architecture.String()))
	}
	logger.Info("applied", fields...)
	return res
}

// preview diffs the current content of a config file against what would be
// written. The bool is false when nothing would change.
func (d *DeployerImpl) preview(path string, data []byte, present bool) (domain.ConfigPreview, bool) {
	if !d.differs(path, data, present) {
		return domain.ConfigPreview{}, false
	}
	var current []byte
	if d.fsManager.Exists(path) {
		current, _ = d.fsManager.ReadFile(path)
	}
	return domain.ConfigPreview{
		Path: path,
		Diff: udiff.Unified(path, path, string(current), string(data)),
	}, true
}

// differs reports whether the file at path is not already data (or absent
// when present is false).
func (d *DeployerImpl) differs(path string, data []byte, present bool) bool {
	if !d.fsManager.Exists(path) {
		return present
	}
	if !present {
		return true
	}
	current, err := d.fsManager.ReadFile(path)
	return err != nil || string(current) != string(data)
}

// Ensure DeployerImpl implements domain.Deployer.
var _ domain.Deployer = (*DeployerImpl)(nil)
