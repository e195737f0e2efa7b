// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArchitectureClass is the binary architecture of an executable or payload.
// Derived from file headers on every scan, never persisted.
type ArchitectureClass int

const (
	ArchUnknown ArchitectureClass = iota
	Arch32
	Arch64
)

// String returns the bitness label used in logs and reports.
func (a ArchitectureClass) String() string {
	switch a {
	case Arch32:
		return "32-bit"
	case Arch64:
		return "64-bit"
	default:
		return "unknown"
	}
}

// Suffix returns the filename suffix used by payload names ("32" / "64").
func (a ArchitectureClass) Suffix() string {
	switch a {
	case Arch32:
		return "32"
	case Arch64:
		return "64"
	default:
		return ""
	}
}

// Purpose tells whether a payload is a loader proxy or a platform shim.
type Purpose int

const (
	PurposeLoaderProxy Purpose = iota
	PurposeShim
)

func (p Purpose) String() string {
	if p == PurposeShim {
		return "shim"
	}
	return "loader-proxy"
}

// Platform is the store affiliation of an install target.
type Platform string

const (
	PlatformSteam   Platform = "steam"
	PlatformEpic    Platform = "epic"
	PlatformUbisoft Platform = "ubisoft"
	// PlatformParadox covers Paradox launcher titles, which need both Steam and Epic shims.
	PlatformParadox Platform = "paradox"
)

// Platforms lists every supported platform in display order.
func Platforms() []Platform {
	return []Platform{PlatformSteam, PlatformEpic, PlatformUbisoft, PlatformParadox}
}

// ParsePlatform converts user input to a Platform (case-insensitive).
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// PayloadDescriptor is one embedded binary, keyed by (LogicalName, Architecture).
type PayloadDescriptor struct {
	LogicalName  string // proxy name ("version") or shim family name ("SmokeAPI")
	FileName     string // name the payload is deployed under
	Family       string // shim family ID; empty for loader proxies
	Architecture ArchitectureClass
	Purpose      Purpose
	Bytes        []byte
	SHA256       string // hex digest of Bytes
}

// TargetSelection is the caller's input for one deployment.
type TargetSelection struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Directory     string   `yaml:"directory" json:"directory"`
	Platform      Platform `yaml:"platform" json:"platform"`
	ProxyName     string   `yaml:"proxy" json:"proxy"`
	EnabledAddOns []string `yaml:"addons" json:"addons"`
}

// Label returns the name used in logs, falling back to the directory.
func (s TargetSelection) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Directory
}

// Executable is a classified executable found directly inside a target directory.
type Executable struct {
	Path         string
	Architecture ArchitectureClass
}

// ScanResult is what a directory scan found. Recomputed on every run.
type ScanResult struct {
	Directory   string
	Executables []Executable // only 32/64-bit ones, sorted by path
	Has32       bool
	Has64       bool
}

// Architectures returns the present architectures, 32-bit first.
func (s ScanResult) Architectures() []ArchitectureClass {
	var archs []ArchitectureClass
	if s.Has32 {
		archs = append(archs, Arch32)
	}
	if s.Has64 {
		archs = append(archs, Arch64)
	}
	return archs
}

// Has reports whether an executable of the given architecture was found.
func (s ScanResult) Has(arch ArchitectureClass) bool {
	switch arch {
	case Arch32:
		return s.Has32
	case Arch64:
		return s.Has64
	default:
		return false
	}
}

// Module is one explicitly loaded module in a loader configuration.
type Module struct {
	Path     string
	Required bool
}

// ConfigDocument is the declarative content of a loader configuration.
// Always regenerated in full; an empty document means "no file".
type ConfigDocument struct {
	Targets []string
	Modules []Module
}

// IsEmpty reports whether the document has neither targets nor modules.
func (d ConfigDocument) IsEmpty() bool {
	return len(d.Targets) == 0 && len(d.Modules) == 0
}

// WriteResult is the outcome of reconciling a configuration file.
type WriteResult string

const (
	WriteResultWritten    WriteResult = "written"
	WriteResultUnchanged  WriteResult = "unchanged"
	WriteResultDeleted    WriteResult = "deleted"
	WriteResultNotPresent WriteResult = "not-present"
)

// Action identifies what a file operation does.
type Action string

const (
	ActionWriteProxy   Action = "write-proxy"
	ActionWriteShim    Action = "write-shim"
	ActionDeleteProxy  Action = "delete-proxy"
	ActionDeleteShim   Action = "delete-shim"
	ActionWriteConfig  Action = "write-config"
	ActionDeleteConfig Action = "delete-config"
)

// Outcome is what happened to a single file.
type Outcome string

const (
	OutcomeWritten    Outcome = "written"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeDeleted    Outcome = "deleted"
	OutcomeNotPresent Outcome = "not-present"
	// OutcomeKeptForeign marks a same-named file that is not ours.
	OutcomeKeptForeign   Outcome = "kept-foreign"
	OutcomeSkippedLocked Outcome = "skipped-locked"
	// OutcomeDeferred marks an operation not attempted because the run stopped early.
	OutcomeDeferred Outcome = "deferred"
	OutcomeFailed   Outcome = "failed"
)

// OutcomeFor maps a config write result to a file outcome.
func OutcomeFor(r WriteResult) Outcome {
	switch r {
	case WriteResultWritten:
		return OutcomeWritten
	case WriteResultDeleted:
		return OutcomeDeleted
	case WriteResultNotPresent:
		return OutcomeNotPresent
	default:
		return OutcomeUnchanged
	}
}

// FileResult records one per-file outcome.
type FileResult struct {
	Path    string
	Action  Action
	Outcome Outcome
	Err     error
}

// Status is the overall verdict of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Operation names the kind of run a report describes.
type Operation string

const (
	OperationInstall   Operation = "install"
	OperationUninstall Operation = "uninstall"
)

// Report is the common part of install and uninstall reports.
type Report struct {
	RunID      string
	Operation  Operation
	Directory  string
	Results    []FileResult
	ExecutedAt time.Time
	DurationMs int64
}

// Add appends a result.
func (r *Report) Add(result FileResult) {
	r.Results = append(r.Results, result)
}

// Status is success when nothing was skipped or failed, partial when only
// lock-related skips happened, failed otherwise.
func (r *Report) Status() Status {
	status := StatusSuccess
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeFailed:
			return StatusFailed
		case OutcomeSkippedLocked, OutcomeDeferred:
			status = StatusPartial
		}
	}
	return status
}

// Count returns how many results have the given outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// InstallReport describes one Install run.
type InstallReport struct {
	Report
	Selection TargetSelection
	Has32     bool
	Has64     bool
}

// UninstallReport describes one Uninstall run.
type UninstallReport struct {
	Report
	DeleteConfig bool
}

// PlannedOperation is a file operation the Deployer would perform.
type PlannedOperation struct {
	Action  Action
	Path    string
	Family  string // shim family ID, empty for loader operations
	Payload *PayloadDescriptor
	// Changes is false when the file already matches and the step is a no-op.
	Changes bool
}

// ConfigPreview is a unified diff of a configuration file that would change.
type ConfigPreview struct {
	Path string
	Diff string
}

// Plan is the dry-run view of an Install.
type Plan struct {
	Selection  TargetSelection
	Scan       ScanResult
	Operations []PlannedOperation
	Previews   []ConfigPreview
}
