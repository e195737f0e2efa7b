// Package catalog holds the embedded loader and shim payloads.
// The table is static: every payload is declared with its logical name,
// architecture and purpose instead of being derived from resource names.
package catalog

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

//go:embed payloads
var embedded embed.FS

// Entry declares one payload of the static table.
type Entry struct {
	LogicalName  string
	FileName     string
	Family       string
	Architecture domain.ArchitectureClass
	Purpose      domain.Purpose
	Resource     string // path inside the payload filesystem
}

type payloadKey struct {
	name string
	arch domain.ArchitectureClass
}

// Catalog implements domain.PayloadCatalog. Immutable after construction.
type Catalog struct {
	payloads   map[payloadKey]domain.PayloadDescriptor
	byDigest   map[string]domain.PayloadDescriptor
	sizes      map[int64]struct{}
	proxies    []string
	proxyFiles map[string]string
}

// Default loads the embedded payload table. An error here means the binary
// was packaged without one of its payloads.
func Default() (*Catalog, error) {
	return New(embedded, DefaultEntries())
}

// New builds a catalog from a filesystem and a table (tests pass fstest.MapFS).
func New(fsys fs.FS, entries []Entry) (*Catalog, error) {
	c := &Catalog{
		payloads:   make(map[payloadKey]domain.PayloadDescriptor, len(entries)),
		byDigest:   make(map[string]domain.PayloadDescriptor, len(entries)),
		sizes:      make(map[int64]struct{}),
		proxyFiles: make(map[string]string),
	}

	for _, e := range entries {
		if e.Architecture != domain.Arch32 && e.Architecture != domain.Arch64 {
			return nil, fmt.Errorf("payload %s has no architecture", e.Resource)
		}
		data, err := fs.ReadFile(fsys, e.Resource)
		if err != nil {
			return nil, fmt.Errorf("payload %s (%s %s) missing: %w", e.Resource, e.LogicalName, e.Architecture, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("payload %s is empty", e.Resource)
		}

		key := payloadKey{name: strings.ToLower(e.LogicalName), arch: e.Architecture}
		if _, dup := c.payloads[key]; dup {
			return nil, fmt.Errorf("duplicate payload %s %s", e.LogicalName, e.Architecture)
		}

		sum := sha256.Sum256(data)
		desc := domain.PayloadDescriptor{
			LogicalName:  e.LogicalName,
			FileName:     e.FileName,
			Family:       e.Family,
			Architecture: e.Architecture,
			Purpose:      e.Purpose,
			Bytes:        data,
			SHA256:       hex.EncodeToString(sum[:]),
		}
		c.payloads[key] = desc
		if _, seen := c.byDigest[desc.SHA256]; !seen {
			c.byDigest[desc.SHA256] = desc
		}
		c.sizes[int64(len(data))] = struct{}{}

		if e.Purpose == domain.PurposeLoaderProxy {
			if _, seen := c.proxyFiles[key.name]; !seen {
				c.proxies = append(c.proxies, e.LogicalName)
			}
			c.proxyFiles[key.name] = e.FileName
		}
	}

	sort.Strings(c.proxies)
	return c, nil
}

// Lookup returns the payload for a logical name and architecture.
func (c *Catalog) Lookup(logicalName string, arch domain.ArchitectureClass) (domain.PayloadDescriptor, error) {
	desc, ok := c.payloads[payloadKey{name: strings.ToLower(logicalName), arch: arch}]
	if !ok {
		return domain.PayloadDescriptor{}, fmt.Errorf("%w: %s %s", domain.ErrPayloadNotFound, logicalName, arch)
	}
	return desc, nil
}

// Has reports whether a payload exists without building an error.
func (c *Catalog) Has(logicalName string, arch domain.ArchitectureClass) bool {
	_, ok := c.payloads[payloadKey{name: strings.ToLower(logicalName), arch: arch}]
	return ok
}

// ListNames returns the loader proxy logical names, sorted.
func (c *Catalog) ListNames() []string {
	out := make([]string, len(c.proxies))
	copy(out, c.proxies)
	return out
}

// ProxyFileName returns the deployed name of a loader proxy, or "" if unknown.
func (c *Catalog) ProxyFileName(logicalName string) string {
	return c.proxyFiles[strings.ToLower(logicalName)]
}

// IdentifyByContent reports which payload a file is byte-identical to.
// Files whose size matches no payload are rejected without hashing.
func (c *Catalog) IdentifyByContent(path string) (domain.PayloadDescriptor, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.PayloadDescriptor{}, false, nil
		}
		return domain.PayloadDescriptor{}, false, err
	}
	if !info.Mode().IsRegular() {
		return domain.PayloadDescriptor{}, false, nil
	}
	if _, ok := c.sizes[info.Size()]; !ok {
		return domain.PayloadDescriptor{}, false, nil
	}

	sum, err := computeSHA256(path)
	if err != nil {
		return domain.PayloadDescriptor{}, false, err
	}
	desc, ok := c.byDigest[sum]
	return desc, ok, nil
}

// computeSHA256 calculates SHA256 hash of a file
func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Ensure Catalog implements domain.PayloadCatalog.
var _ domain.PayloadCatalog = (*Catalog)(nil)
