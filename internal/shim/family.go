// Package shim implements the per-platform shim families. Each family owns a
// 32/64-bit payload pair with fixed file names and one configuration file.
package shim

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/catalog"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/infra"
)

// Config is the document every family writes next to its binaries.
type Config struct {
	Logging   bool     `json:"logging"`
	UnlockAll bool     `json:"unlock_all"`
	DLC       []string `json:"dlc"`
	Targets   []string `json:"targets"`
}

// Family implements domain.ShimFamily. The four shipped families differ
// only in their identifiers, platforms and file names.
type Family struct {
	id          string
	name        string
	logicalName string
	configFile  string
	platforms   []domain.Platform

	fs      domain.FileSystemManager
	catalog domain.PayloadCatalog
	locks   domain.LockDetector
	logger  *zap.Logger
}

// Deps are the collaborators shared by every family.
type Deps struct {
	FS      domain.FileSystemManager
	Catalog domain.PayloadCatalog
	// Locks is optional; without it Uninstall does not check for locked files.
	Locks  domain.LockDetector
	Logger *zap.Logger
}

func newFamily(deps Deps, id, name, logicalName, configFile string, platforms ...domain.Platform) *Family {
	return &Family{
		id:          id,
		name:        name,
		logicalName: logicalName,
		configFile:  configFile,
		platforms:   platforms,
		fs:          deps.FS,
		catalog:     deps.Catalog,
		locks:       deps.Locks,
		logger:      deps.Logger.With(zap.String("family", id)),
	}
}

// NewSmokeAPI creates the Steam family.
func NewSmokeAPI(deps Deps) *Family {
	return newFamily(deps, catalog.FamilySmokeAPI, "SmokeAPI", catalog.ShimSmokeAPI, "SmokeAPI.json",
		domain.PlatformSteam, domain.PlatformParadox)
}

// NewScreamAPI creates the Epic family.
func NewScreamAPI(deps Deps) *Family {
	return newFamily(deps, catalog.FamilyScreamAPI, "ScreamAPI", catalog.ShimScreamAPI, "ScreamAPI.json",
		domain.PlatformEpic, domain.PlatformParadox)
}

// NewUplayR1 creates the legacy Ubisoft family.
func NewUplayR1(deps Deps) *Family {
	return newFamily(deps, catalog.FamilyUplayR1, "Uplay R1 Unlocker", catalog.ShimUplayR1, "UplayR1Unlocker.jsonc",
		domain.PlatformUbisoft)
}

// NewUplayR2 creates the current Ubisoft family.
func NewUplayR2(deps Deps) *Family {
	return newFamily(deps, catalog.FamilyUplayR2, "Uplay R2 Unlocker", catalog.ShimUplayR2, "UplayR2Unlocker.jsonc",
		domain.PlatformUbisoft)
}

// ID returns the unique identifier (e.g., "smokeapi").
func (f *Family) ID() string { return f.id }

// Name returns the human-readable name.
func (f *Family) Name() string { return f.name }

// Platforms returns the platforms this family is deployed for.
func (f *Family) Platforms() []domain.Platform {
	out := make([]domain.Platform, len(f.platforms))
	copy(out, f.platforms)
	return out
}

// AppliesTo reports whether the family is deployed for a platform.
func (f *Family) AppliesTo(p domain.Platform) bool {
	for _, fp := range f.platforms {
		if fp == p {
			return true
		}
	}
	return false
}

// FileName returns the fixed on-disk name for an architecture (e.g., "SmokeAPI64.dll").
func (f *Family) FileName(arch domain.ArchitectureClass) string {
	return catalog.ShimFileName(f.logicalName, arch)
}

// Payload returns the family's catalog payload for an architecture.
func (f *Family) Payload(arch domain.ArchitectureClass) (domain.PayloadDescriptor, error) {
	return f.catalog.Lookup(f.logicalName, arch)
}

// ConfigPath returns the family's configuration file inside directory.
func (f *Family) ConfigPath(directory string) string {
	return filepath.Join(directory, f.configFile)
}

// RenderConfig builds the family configuration. Targets are the classified
// executables of the directory; without any the file must not exist.
func (f *Family) RenderConfig(directory string, selection domain.TargetSelection, scan domain.ScanResult) ([]byte, bool, error) {
	targets := make([]string, 0, len(scan.Executables))
	for _, exe := range scan.Executables {
		if exe.Architecture == domain.ArchUnknown {
			continue
		}
		path := exe.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(directory, path)
		}
		targets = append(targets, path)
	}
	if len(targets) == 0 {
		return nil, false, nil
	}
	sort.Strings(targets)

	data, err := infra.EncodeJSON(Config{
		Logging:   false,
		UnlockAll: false,
		DLC:       normalizeAddOns(selection.EnabledAddOns),
		Targets:   targets,
	})
	if err != nil {
		return nil, false, fmt.Errorf("encode %s config: %w", f.id, err)
	}
	return data, true, nil
}

// CheckConfig writes, rewrites or deletes the family configuration so it
// matches RenderConfig.
func (f *Family) CheckConfig(directory string, selection domain.TargetSelection, scan domain.ScanResult) (domain.FileResult, error) {
	path := f.ConfigPath(directory)

	data, present, err := f.RenderConfig(directory, selection, scan)
	action := domain.ActionWriteConfig
	if !present {
		action = domain.ActionDeleteConfig
	}
	if err != nil {
		return domain.FileResult{Path: path, Action: action, Outcome: domain.OutcomeFailed, Err: err}, err
	}

	result, err := infra.ReconcileFile(f.fs, path, data, present)
	if err != nil {
		f.logger.Error("config reconcile failed", zap.String("path", path), zap.Error(err))
		return domain.FileResult{Path: path, Action: action, Outcome: domain.OutcomeFailed, Err: err}, err
	}

	f.logger.Debug("config reconciled", zap.String("path", path), zap.String("result", string(result)))
	return domain.FileResult{Path: path, Action: action, Outcome: domain.OutcomeFor(result)}, nil
}

// Uninstall deletes the family's binaries that are byte-identical to a
// catalog payload of this family and, when deleteConfig is set, its
// configuration. Only files that exist are reported.
func (f *Family) Uninstall(directory string, deleteConfig bool) ([]domain.FileResult, error) {
	var results []domain.FileResult
	var firstErr error

	for _, arch := range []domain.ArchitectureClass{domain.Arch32, domain.Arch64} {
		res, ok := f.removeBinary(filepath.Join(directory, f.FileName(arch)))
		if !ok {
			continue
		}
		if res.Outcome == domain.OutcomeFailed && firstErr == nil {
			firstErr = res.Err
		}
		results = append(results, res)
	}

	if deleteConfig {
		path := f.ConfigPath(directory)
		if f.fs.Exists(path) {
			if err := f.fs.Delete(path); err != nil {
				err = fmt.Errorf("delete %s: %w", path, err)
				results = append(results, domain.FileResult{Path: path, Action: domain.ActionDeleteConfig, Outcome: domain.OutcomeFailed, Err: err})
				if firstErr == nil {
					firstErr = err
				}
			} else {
				results = append(results, domain.FileResult{Path: path, Action: domain.ActionDeleteConfig, Outcome: domain.OutcomeDeleted})
			}
		}
	}

	return results, firstErr
}

func (f *Family) removeBinary(path string) (domain.FileResult, bool) {
	if !f.fs.Exists(path) {
		return domain.FileResult{}, false
	}
	res := domain.FileResult{Path: path, Action: domain.ActionDeleteShim}

	desc, owned, err := f.catalog.IdentifyByContent(path)
	if err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("identify %s: %w", path, err)
		return res, true
	}
	if !owned || desc.Family != f.id {
		f.logger.Info("keeping foreign file", zap.String("path", path))
		res.Outcome = domain.OutcomeKeptForeign
		return res, true
	}

	if f.locks != nil {
		locked, err := f.locks.IsLocked(path)
		if err != nil {
			res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("lock check %s: %w", path, err)
			return res, true
		}
		if locked {
			res.Outcome, res.Err = domain.OutcomeSkippedLocked, fmt.Errorf("%w: %s", domain.ErrLockedFile, path)
			return res, true
		}
	}

	if err := f.fs.Delete(path); err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, fmt.Errorf("delete %s: %w", path, err)
		return res, true
	}
	f.logger.Info("deleted shim", zap.String("path", path))
	res.Outcome = domain.OutcomeDeleted
	return res, true
}

// normalizeAddOns trims, de-duplicates and sorts add-on identifiers.
func normalizeAddOns(addOns []string) []string {
	seen := make(map[string]struct{}, len(addOns))
	out := make([]string, 0, len(addOns))
	for _, a := range addOns {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Ensure Family implements domain.ShimFamily.
var _ domain.ShimFamily = (*Family)(nil)
