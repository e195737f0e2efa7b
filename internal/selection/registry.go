// Package selection keeps the set of install targets the caller is working on.
// The registry is an explicit object owned by the caller; nothing is global.
package selection

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// Registry holds selections keyed by ID, in insertion order.
type Registry struct {
	order []string
	byID  map[string]domain.TargetSelection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]domain.TargetSelection)}
}

// Add registers a selection. An empty ID is derived from the directory.
func (r *Registry) Add(sel domain.TargetSelection) (domain.TargetSelection, error) {
	if sel.Directory == "" {
		return sel, fmt.Errorf("selection %q has no directory", sel.Label())
	}
	sel.Directory = filepath.Clean(sel.Directory)
	if sel.ID == "" {
		sel.ID = DeriveID(sel.Directory)
	}
	if _, dup := r.byID[sel.ID]; dup {
		return sel, fmt.Errorf("%w: %s", domain.ErrDuplicateSelection, sel.ID)
	}

	r.order = append(r.order, sel.ID)
	r.byID[sel.ID] = sel
	return sel, nil
}

// Remove deletes a selection and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a selection by ID.
func (r *Registry) Get(id string) (domain.TargetSelection, bool) {
	sel, ok := r.byID[id]
	return sel, ok
}

// All returns every selection in insertion order.
func (r *Registry) All() []domain.TargetSelection {
	out := make([]domain.TargetSelection, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Enabled returns the selections with at least one add-on enabled.
func (r *Registry) Enabled() []domain.TargetSelection {
	var out []domain.TargetSelection
	for _, sel := range r.All() {
		if len(sel.EnabledAddOns) > 0 {
			out = append(out, sel)
		}
	}
	return out
}

// Len returns the number of selections.
func (r *Registry) Len() int {
	return len(r.order)
}

// Validate drops every selection whose directory no longer exists and
// returns the dropped ones.
func (r *Registry) Validate(fs domain.FileSystemManager) []domain.TargetSelection {
	var dropped []domain.TargetSelection
	for _, sel := range r.All() {
		if !fs.Exists(sel.Directory) {
			r.Remove(sel.ID)
			dropped = append(dropped, sel)
		}
	}
	return dropped
}

// DeriveID turns a directory into a stable identifier.
func DeriveID(directory string) string {
	return strings.ToLower(filepath.ToSlash(filepath.Clean(directory)))
}
