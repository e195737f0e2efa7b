package domain

import "errors"

var (
	// ErrLockedFile means the file is open in another process. Callers may retry later.
	ErrLockedFile = errors.New("file is locked by another process")

	// ErrPayloadNotFound means the catalog has no payload for a name/architecture pair.
	ErrPayloadNotFound = errors.New("payload not found in catalog")

	// ErrNoExecutables means the directory has no 32-bit or 64-bit executables.
	ErrNoExecutables = errors.New("no classifiable executables in directory")

	ErrUnknownPlatform    = errors.New("unknown platform")
	ErrUnknownProxy       = errors.New("unknown loader proxy")
	ErrDuplicateSelection = errors.New("duplicate selection id")
)
