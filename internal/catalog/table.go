package catalog

import (
	"path"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// Shim family identifiers. Shared with the shim package so both sides agree
// on which payloads belong to which family.
const (
	FamilySmokeAPI  = "smokeapi"
	FamilyScreamAPI = "screamapi"
	FamilyUplayR1   = "uplayr1"
	FamilyUplayR2   = "uplayr2"
)

// Shim logical names. The deployed file name is the logical name plus the
// architecture suffix, e.g. SmokeAPI64.dll.
const (
	ShimSmokeAPI  = "SmokeAPI"
	ShimScreamAPI = "ScreamAPI"
	ShimUplayR1   = "UplayR1Unlocker"
	ShimUplayR2   = "UplayR2Unlocker"
)

// proxyNames are the library names the loader can masquerade as.
var proxyNames = []string{
	"audioses",
	"d3d9",
	"d3d11",
	"dinput8",
	"dwmapi",
	"dxgi",
	"version",
	"winhttp",
	"winmm",
	"xinput1_3",
}

// ShimFileName returns the deployed file name of a shim payload.
func ShimFileName(logicalName string, arch domain.ArchitectureClass) string {
	return logicalName + arch.Suffix() + ".dll"
}

// DefaultEntries returns the static payload table for the embedded resources.
func DefaultEntries() []Entry {
	entries := make([]Entry, 0, len(proxyNames)*2+8)
	for _, name := range proxyNames {
		for _, arch := range []domain.ArchitectureClass{domain.Arch32, domain.Arch64} {
			entries = append(entries, Entry{
				LogicalName:  name,
				FileName:     name + ".dll",
				Architecture: arch,
				Purpose:      domain.PurposeLoaderProxy,
				Resource:     path.Join("payloads", "koaloader", name+"_"+arch.Suffix()+".dll"),
			})
		}
	}

	shims := []struct {
		family, name, dir, res32, res64 string
	}{
		{FamilySmokeAPI, ShimSmokeAPI, "smokeapi", "steam_api.dll", "steam_api64.dll"},
		{FamilyScreamAPI, ShimScreamAPI, "screamapi", "EOSSDK-Win32-Shipping.dll", "EOSSDK-Win64-Shipping.dll"},
		{FamilyUplayR1, ShimUplayR1, "uplayr1", "uplay_r1_loader.dll", "uplay_r1_loader64.dll"},
		{FamilyUplayR2, ShimUplayR2, "uplayr2", "upc_r2_loader.dll", "upc_r2_loader64.dll"},
	}
	for _, s := range shims {
		entries = append(entries,
			Entry{
				LogicalName:  s.name,
				FileName:     ShimFileName(s.name, domain.Arch32),
				Family:       s.family,
				Architecture: domain.Arch32,
				Purpose:      domain.PurposeShim,
				Resource:     path.Join("payloads", s.dir, s.res32),
			},
			Entry{
				LogicalName:  s.name,
				FileName:     ShimFileName(s.name, domain.Arch64),
				Family:       s.family,
				Architecture: domain.Arch64,
				Purpose:      domain.PurposeShim,
				Resource:     path.Join("payloads", s.dir, s.res64),
			},
		)
	}
	return entries
}
