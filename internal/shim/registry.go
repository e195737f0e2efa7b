package shim

import "github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"

// Registry holds the shim families in deployment order.
type Registry struct {
	families []domain.ShimFamily
	byID     map[string]domain.ShimFamily
}

// NewRegistry creates a registry with the four shipped families.
func NewRegistry(deps Deps) *Registry {
	return NewRegistryWithFamilies(
		NewSmokeAPI(deps),
		NewScreamAPI(deps),
		NewUplayR1(deps),
		NewUplayR2(deps),
	)
}

// NewRegistryWithFamilies creates a registry with custom families (for testing).
func NewRegistryWithFamilies(families ...domain.ShimFamily) *Registry {
	r := &Registry{byID: make(map[string]domain.ShimFamily)}
	for _, f := range families {
		r.Register(f)
	}
	return r
}

// Register adds a family. A family with an existing ID replaces it in place.
func (r *Registry) Register(f domain.ShimFamily) {
	if _, ok := r.byID[f.ID()]; ok {
		for i, existing := range r.families {
			if existing.ID() == f.ID() {
				r.families[i] = f
			}
		}
	} else {
		r.families = append(r.families, f)
	}
	r.byID[f.ID()] = f
}

// Get returns a family by ID.
func (r *Registry) Get(id string) (domain.ShimFamily, bool) {
	f, ok := r.byID[id]
	return f, ok
}

// All returns every family in registration order.
func (r *Registry) All() []domain.ShimFamily {
	out := make([]domain.ShimFamily, len(r.families))
	copy(out, r.families)
	return out
}

// ForPlatform returns the families deployed for a platform.
func (r *Registry) ForPlatform(p domain.Platform) []domain.ShimFamily {
	var out []domain.ShimFamily
	for _, f := range r.families {
		for _, fp := range f.Platforms() {
			if fp == p {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// List returns all family IDs.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.families))
	for _, f := range r.families {
		ids = append(ids, f.ID())
	}
	return ids
}

// Ensure Registry implements domain.FamilyRegistry.
var _ domain.FamilyRegistry = (*Registry)(nil)
