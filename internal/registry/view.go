package registry

import (
	"github.com/criteo/install-registry/internal/eligibility"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/version"
)

// ActiveSet names the product and component keys a View exposes
type ActiveSet struct {
	Products   []string
	Components []string
}

// View is the current registry: the arena filtered to the entries the
// activation record lists as active. It never copies entities, so it cannot
// drift from the arena.
type View struct {
	arena      *Registry
	products   map[string]bool
	components map[string]bool
}

// NewView creates a view over arena exposing only the keys in active
func NewView(arena *Registry, active ActiveSet) *View {
	v := &View{
		arena:      arena,
		products:   make(map[string]bool, len(active.Products)),
		components: make(map[string]bool, len(active.Components)),
	}
	for _, k := range active.Products {
		v.products[k] = true
	}
	for _, k := range active.Components {
		v.components[k] = true
	}
	return v
}

// Arena returns the registry the view filters
func (v *View) Arena() *Registry {
	return v.arena
}

// IsActiveProduct reports whether k passes the filter
func (v *View) IsActiveProduct(k models.Key) bool {
	return v.products[k.String()]
}

// IsActiveComponent reports whether k passes the filter
func (v *View) IsActiveComponent(k models.Key) bool {
	return v.components[k.String()]
}

// GetProduct returns the active product id at ver, or the latest active
// version when ver is nil
func (v *View) GetProduct(id string, ver *version.Identifier) *models.Product {
	if ver != nil {
		p := v.arena.GetProduct(id, ver)
		if p == nil || !v.IsActiveProduct(p.Key()) {
			return nil
		}
		return p
	}
	var active []*models.Product
	var versions []version.Identifier
	for _, p := range v.arena.ProductVersions(id) {
		if v.IsActiveProduct(p.Key()) {
			active = append(active, p)
			versions = append(versions, p.Version)
		}
	}
	latest, ok := version.Latest(versions)
	if !ok {
		return nil
	}
	for _, p := range active {
		if p.Version.Equal(latest) {
			return p
		}
	}
	return nil
}

// GetComponent returns the active component id at ver, or the latest active
// version when ver is nil
func (v *View) GetComponent(id string, ver *version.Identifier) *models.Component {
	if ver != nil {
		c := v.arena.GetComponent(id, ver)
		if c == nil || !v.IsActiveComponent(c.Key()) {
			return nil
		}
		return c
	}
	var active []*models.Component
	var versions []version.Identifier
	for _, c := range v.arena.ComponentVersions(id) {
		if v.IsActiveComponent(c.Key()) {
			active = append(active, c)
			versions = append(versions, c.Version)
		}
	}
	latest, ok := version.Latest(versions)
	if !ok {
		return nil
	}
	for _, c := range active {
		if c.Version.Equal(latest) {
			return c
		}
	}
	return nil
}

// Products returns the active products
func (v *View) Products() []*models.Product {
	var out []*models.Product
	for _, p := range v.arena.Products() {
		if v.IsActiveProduct(p.Key()) {
			out = append(out, p)
		}
	}
	return out
}

// Components returns the active components
func (v *View) Components() []*models.Component {
	var out []*models.Component
	for _, c := range v.arena.Components() {
		if v.IsActiveComponent(c.Key()) {
			out = append(out, c)
		}
	}
	return out
}

// ContainingProducts returns the active products containing c
func (v *View) ContainingProducts(c *models.Component) []*models.Product {
	var out []*models.Product
	for _, p := range v.arena.ContainingProducts(c) {
		if v.IsActiveProduct(p.Key()) {
			out = append(out, p)
		}
	}
	return out
}

// IsDangling delegates to the arena
func (v *View) IsDangling(c *models.Component) bool {
	return v.arena.IsDangling(c)
}

// DanglingComponents returns the active components no active product contains
func (v *View) DanglingComponents() []*models.Component {
	var out []*models.Component
	for _, c := range v.Components() {
		if len(v.ContainingProducts(c)) == 0 {
			out = append(out, c)
		}
	}
	return out
}

// DominantApplication delegates to the arena
func (v *View) DominantApplication() string {
	return v.arena.DominantApplication()
}

// ConflictingProduct evaluates candidate against the latest active same-id
// product
func (v *View) ConflictingProduct(candidate *models.Product) ([]models.Ref, eligibility.Result) {
	return conflictingProduct(v, candidate)
}

// ConflictingComponent evaluates candidate against the latest active same-id
// component
func (v *View) ConflictingComponent(candidate *models.Component) ([]models.Ref, eligibility.Result) {
	return conflictingComponent(v, candidate)
}

var (
	_ eligibility.Graph = (*Registry)(nil)
	_ eligibility.Graph = (*View)(nil)
)
