package domain

import "context"

// BinaryClassifier determines the architecture of an executable from its header.
// Implementation: PE header reader (no loading, no execution).
type BinaryClassifier interface {
	// Classify returns ArchUnknown for anything that is not a recognised
	// executable. Only failing to open the file is an error.
	Classify(path string) (ArchitectureClass, error)
}

// PayloadCatalog is the read-only registry of embedded payloads.
type PayloadCatalog interface {
	// Lookup returns the payload for a logical name and architecture.
	// Fails with ErrPayloadNotFound.
	Lookup(logicalName string, arch ArchitectureClass) (PayloadDescriptor, error)

	// ListNames returns the logical names of all loader proxy variants.
	ListNames() []string

	// ProxyFileName returns the on-disk file name of a loader proxy.
	ProxyFileName(logicalName string) string

	// IdentifyByContent reports which payload, if any, a file is byte-identical to.
	IdentifyByContent(path string) (PayloadDescriptor, bool, error)
}

// LockDetector tells whether a file is currently held open by another process.
type LockDetector interface {
	// IsLocked returns false for missing files. Errors other than sharing
	// violations are returned as-is.
	IsLocked(path string) (bool, error)
}

// ConfigWriter reconciles the loader's own configuration file.
type ConfigWriter interface {
	// Reconcile deletes the file for an empty document, otherwise rewrites it fully.
	Reconcile(directory string, doc ConfigDocument) (WriteResult, error)

	// Remove deletes the file if present.
	Remove(directory string) (WriteResult, error)

	// Render returns the bytes Reconcile would write; ok is false for an empty document.
	Render(directory string, doc ConfigDocument) (data []byte, ok bool, err error)

	// Path returns the configuration file path for a directory.
	Path(directory string) string
}

// ShimFamily is one platform's 32/64-bit shim pair plus its own configuration.
type ShimFamily interface {
	// ID returns the unique identifier (e.g., "smokeapi").
	ID() string

	// Name returns the human-readable name.
	Name() string

	// Platforms returns the platforms this family is deployed for.
	Platforms() []Platform

	// FileName returns the fixed on-disk name for an architecture.
	FileName(arch ArchitectureClass) string

	// Payload returns the family's catalog payload for an architecture.
	// Fails with ErrPayloadNotFound.
	Payload(arch ArchitectureClass) (PayloadDescriptor, error)

	// ConfigPath returns the family's configuration file for a directory.
	ConfigPath(directory string) string

	// RenderConfig returns the configuration bytes CheckConfig would write;
	// ok is false when the configuration should not exist.
	RenderConfig(directory string, selection TargetSelection, scan ScanResult) (data []byte, ok bool, err error)

	// CheckConfig idempotently reconciles the family's configuration.
	CheckConfig(directory string, selection TargetSelection, scan ScanResult) (FileResult, error)

	// Uninstall removes the family's owned binaries and, optionally, its configuration.
	Uninstall(directory string, deleteConfig bool) ([]FileResult, error)
}

// FamilyRegistry enumerates shim families.
type FamilyRegistry interface {
	// All returns every family in a stable order.
	All() []ShimFamily

	// ForPlatform returns the families applicable to a platform, in deployment order.
	ForPlatform(p Platform) []ShimFamily
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// ReadFile returns the file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the whole file (temp file + rename).
	WriteFile(path string, data []byte) error

	// Delete removes a single file.
	Delete(path string) error

	// ListFiles returns regular files directly inside dir with the given
	// extension (case-insensitive), sorted.
	ListFiles(dir, ext string) ([]string, error)

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// Deployer installs the loader proxy and shims into a directory.
type Deployer interface {
	// Install deploys one selection.
	Install(ctx context.Context, selection TargetSelection) (*InstallReport, error)

	// Plan computes what Install would do without touching the disk.
	Plan(ctx context.Context, selection TargetSelection) (*Plan, error)
}

// Uninstaller removes everything the Deployer may have created.
type Uninstaller interface {
	Uninstall(ctx context.Context, directory string, deleteConfig bool) (*UninstallReport, error)
}
