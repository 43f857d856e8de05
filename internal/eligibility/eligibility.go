// Package eligibility decides whether products and components may be
// installed, upgraded or removed. Every function is pure: it reads the graph
// it is given and never mutates it.
package eligibility

import (
	"fmt"

	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/version"
)

// Result is the outcome of an installation check
type Result int

const (
	OkToInstall Result = iota
	NotNewer
	NotCompatible
	NotUpdatable
)

func (r Result) String() string {
	switch r {
	case OkToInstall:
		return "ok"
	case NotNewer:
		return "not newer"
	case NotCompatible:
		return "not compatible"
	case NotUpdatable:
		return "not updatable"
	default:
		return "unknown"
	}
}

// OK reports whether the result allows installation
func (r Result) OK() bool {
	return r == OkToInstall
}

// MarshalText implements encoding.TextMarshaler
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Result) UnmarshalText(text []byte) error {
	for _, candidate := range []Result{OkToInstall, NotNewer, NotCompatible, NotUpdatable} {
		if candidate.String() == string(text) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown eligibility result %q", text)
}

// Graph is the read-only registry view decisions are evaluated against
type Graph interface {
	// GetComponent returns the component with id at v, or the latest
	// version when v is nil
	GetComponent(id string, v *version.Identifier) *models.Component
	ContainingProducts(c *models.Component) []*models.Product
	IsDangling(c *models.Component) bool
	DominantApplication() string
}

// IsUpdateableComponent is true iff every product containing c allows its
// entry for c to be upgraded
func IsUpdateableComponent(g Graph, c *models.Component) bool {
	for _, p := range g.ContainingProducts(c) {
		if e := p.Entry(c.ID); e != nil && !e.AllowUpgrade {
			return false
		}
	}
	return true
}

// IsUpdateableProduct reports the product's own upgrade policy
func IsUpdateableProduct(p *models.Product) bool {
	return p.AllowUpgrade
}

// IsInstallableComponent evaluates candidate against the installed version of
// the same id. installed is nil when no version is present.
func IsInstallableComponent(g Graph, candidate, installed *models.Component) Result {
	if installed == nil {
		return OkToInstall
	}

	// Service reissues always apply, even under a frozen product.
	if !IsUpdateableComponent(g, installed) && !candidate.Version.IsEquivalentTo(installed.Version) {
		return NotUpdatable
	}

	if len(g.ContainingProducts(installed)) == 0 {
		if version.Newer(candidate.Version, installed.Version) {
			return OkToInstall
		}
		return NotNewer
	}

	if !candidate.Version.IsCompatibleWith(installed.Version) {
		return NotCompatible
	}
	if version.Compare(candidate.Version, installed.Version) == 0 {
		return NotNewer
	}
	return OkToInstall
}

// IsInstallableProduct evaluates candidate against the installed version of
// the same id
func IsInstallableProduct(candidate, installed *models.Product) Result {
	if installed == nil {
		return OkToInstall
	}
	if !IsUpdateableProduct(installed) {
		return NotUpdatable
	}
	if version.Compare(candidate.Version, installed.Version) <= 0 {
		return NotNewer
	}
	return OkToInstall
}

// IsInstallableEntry evaluates one component entry of a product being
// installed. An entry inherits a failing product result; otherwise the
// entry's id and version are checked like a component candidate.
func IsInstallableEntry(g Graph, productResult Result, entry *models.ComponentEntry, installed *models.Component) Result {
	if !productResult.OK() {
		return productResult
	}
	candidate := &models.Component{ID: entry.ID, Version: entry.Version}
	return IsInstallableComponent(g, candidate, installed)
}

// IsRemovableComponent decides whether c may be removed. containing is nil for
// a standalone removal, or the product whose removal sweeps c along.
func IsRemovableComponent(g Graph, c *models.Component, containing *models.Product) bool {
	products := g.ContainingProducts(c)
	if containing == nil {
		return len(products) == 0
	}

	// dangling components are only ever removed on their own
	if g.IsDangling(c) {
		return false
	}
	switch len(products) {
	case 0:
		return true
	case 1:
		return products[0].Key().Equal(containing.Key())
	default:
		return false
	}
}

// IsRemovableProduct decides whether p may be removed together with the
// components it references
func IsRemovableProduct(g Graph, p *models.Product) bool {
	if p.Application != "" && p.Application == g.DominantApplication() {
		return false
	}
	for _, e := range p.Entries {
		v := e.Version
		c := g.GetComponent(e.ID, &v)
		if c == nil || g.IsDangling(c) {
			continue
		}
		if !IsRemovableComponent(g, c, p) {
			return false
		}
	}
	return true
}

// ConflictsWithProduct reports whether installing candidate over installed
// conflicts, and why
func ConflictsWithProduct(candidate, installed *models.Product) (Result, bool) {
	r := IsInstallableProduct(candidate, installed)
	return r, !r.OK()
}

// ConflictsWithComponent reports whether installing candidate over installed
// conflicts, and why
func ConflictsWithComponent(g Graph, candidate, installed *models.Component) (Result, bool) {
	r := IsInstallableComponent(g, candidate, installed)
	return r, !r.OK()
}
