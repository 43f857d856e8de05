package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/version"
)

type fakeGraph struct {
	components map[string]*models.Component
	containing map[string][]*models.Product
	dangling   map[string]bool
	app        string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		components: make(map[string]*models.Component),
		containing: make(map[string][]*models.Product),
		dangling:   make(map[string]bool),
	}
}

func (g *fakeGraph) GetComponent(id string, v *version.Identifier) *models.Component {
	if v == nil {
		for _, c := range g.components {
			if c.ID == id {
				return c
			}
		}
		return nil
	}
	return g.components[models.NewKey(id, *v).String()]
}

func (g *fakeGraph) ContainingProducts(c *models.Component) []*models.Product {
	return g.containing[c.Key().String()]
}

func (g *fakeGraph) IsDangling(c *models.Component) bool {
	return g.dangling[c.Key().String()]
}

func (g *fakeGraph) DominantApplication() string {
	return g.app
}

func (g *fakeGraph) add(c *models.Component, products ...*models.Product) {
	g.components[c.Key().String()] = c
	g.containing[c.Key().String()] = products
}

func component(id, v string) *models.Component {
	return &models.Component{ID: id, Version: version.MustParse(v)}
}

func product(id, v string, allowUpgrade bool, entries ...*models.ComponentEntry) *models.Product {
	p := &models.Product{ID: id, Version: version.MustParse(v), AllowUpgrade: true, Entries: entries}
	for _, e := range entries {
		e.AllowUpgrade = allowUpgrade
		e.Product = p.Key()
	}
	return p
}

func entry(id, v string) *models.ComponentEntry {
	return &models.ComponentEntry{ID: id, Version: version.MustParse(v), Installed: true}
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "ok", OkToInstall.String())
	assert.Equal(t, "not newer", NotNewer.String())
	assert.Equal(t, "not compatible", NotCompatible.String())
	assert.Equal(t, "not updatable", NotUpdatable.String())
	assert.True(t, OkToInstall.OK())
	assert.False(t, NotNewer.OK())
}

func TestResult_UnmarshalText(t *testing.T) {
	var r Result
	assert.NoError(t, r.UnmarshalText([]byte("not compatible")))
	assert.Equal(t, NotCompatible, r)
	assert.Error(t, r.UnmarshalText([]byte("maybe")))
}

func TestIsInstallableComponent(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		installed string
		products  func() []*models.Product
		expected  Result
	}{
		{
			name:      "nothing installed",
			candidate: "1.0.0",
			expected:  OkToInstall,
		},
		{
			name:      "dangling and newer",
			candidate: "1.1.0",
			installed: "1.0.0",
			expected:  OkToInstall,
		},
		{
			name:      "dangling and same version",
			candidate: "1.0.0",
			installed: "1.0.0",
			expected:  NotNewer,
		},
		{
			name:      "dangling and older",
			candidate: "1.0.0",
			installed: "1.2.0",
			expected:  NotNewer,
		},
		{
			name:      "dangling new major",
			candidate: "2.0.0",
			installed: "1.9.9",
			expected:  OkToInstall,
		},
		{
			name:      "frozen product blocks upgrade",
			candidate: "1.1.0",
			installed: "1.0.0",
			products: func() []*models.Product {
				return []*models.Product{product("P", "1.0.0", false, entry("A", "1.0.0"))}
			},
			expected: NotUpdatable,
		},
		{
			name:      "frozen product lets equivalent reissue through",
			candidate: "1.0.0.v2",
			installed: "1.0.0",
			products: func() []*models.Product {
				return []*models.Product{product("P", "1.0.0", false, entry("A", "1.0.0"))}
			},
			expected: OkToInstall,
		},
		{
			name:      "contained and compatible",
			candidate: "1.2.0",
			installed: "1.1.5",
			products: func() []*models.Product {
				return []*models.Product{product("P", "1.0.0", true, entry("A", "1.1.5"))}
			},
			expected: OkToInstall,
		},
		{
			name:      "contained and new major",
			candidate: "2.0.0",
			installed: "1.1.5",
			products: func() []*models.Product {
				return []*models.Product{product("P", "1.0.0", true, entry("A", "1.1.5"))}
			},
			expected: NotCompatible,
		},
		{
			name:      "contained and older",
			candidate: "1.0.0",
			installed: "1.1.5",
			products: func() []*models.Product {
				return []*models.Product{product("P", "1.0.0", true, entry("A", "1.1.5"))}
			},
			expected: NotCompatible,
		},
		{
			name:      "contained and same version",
			candidate: "1.1.5",
			installed: "1.1.5",
			products: func() []*models.Product {
				return []*models.Product{product("P", "1.0.0", true, entry("A", "1.1.5"))}
			},
			expected: NotNewer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGraph()
			var installed *models.Component
			if tt.installed != "" {
				installed = component("A", tt.installed)
				var products []*models.Product
				if tt.products != nil {
					products = tt.products()
				}
				g.add(installed, products...)
			}
			candidate := component("A", tt.candidate)

			got := IsInstallableComponent(g, candidate, installed)
			assert.Equal(t, tt.expected, got)
			// same inputs, same answer
			assert.Equal(t, got, IsInstallableComponent(g, candidate, installed))
		})
	}
}

func TestIsInstallableProduct(t *testing.T) {
	installed := product("P", "1.0.0", true)
	frozen := product("P", "1.0.0", true)
	frozen.AllowUpgrade = false

	assert.Equal(t, OkToInstall, IsInstallableProduct(product("P", "1.0.0", true), nil))
	assert.Equal(t, OkToInstall, IsInstallableProduct(product("P", "1.1.0", true), installed))
	assert.Equal(t, NotNewer, IsInstallableProduct(product("P", "1.0.0", true), installed))
	assert.Equal(t, NotNewer, IsInstallableProduct(product("P", "0.9.0", true), installed))
	assert.Equal(t, NotUpdatable, IsInstallableProduct(product("P", "2.0.0", true), frozen))
}

func TestIsInstallableEntry(t *testing.T) {
	g := newFakeGraph()
	installed := component("A", "1.0.0")
	g.add(installed)

	e := entry("A", "1.1.0")
	assert.Equal(t, OkToInstall, IsInstallableEntry(g, OkToInstall, e, installed))
	assert.Equal(t, NotUpdatable, IsInstallableEntry(g, NotUpdatable, e, installed))
	assert.Equal(t, NotNewer, IsInstallableEntry(g, OkToInstall, entry("A", "1.0.0"), installed))
	assert.Equal(t, OkToInstall, IsInstallableEntry(g, OkToInstall, e, nil))
}

func TestIsRemovableComponent(t *testing.T) {
	p := product("P", "1.0.0", true, entry("A", "1.0.0"))
	q := product("Q", "1.0.0", true, entry("A", "1.0.0"))

	g := newFakeGraph()
	a := component("A", "1.0.0")
	loose := component("L", "1.0.0")
	g.add(a, p)
	g.add(loose)
	g.dangling[loose.Key().String()] = true

	assert.False(t, IsRemovableComponent(g, a, nil), "contained component cannot be removed standalone")
	assert.True(t, IsRemovableComponent(g, loose, nil))
	assert.True(t, IsRemovableComponent(g, a, p))
	assert.False(t, IsRemovableComponent(g, a, q), "only the containing product sweeps the component")
	assert.False(t, IsRemovableComponent(g, loose, p), "dangling components are never swept")

	g.add(a, p, q)
	assert.False(t, IsRemovableComponent(g, a, p))
}

func TestIsRemovableProduct(t *testing.T) {
	p := product("P", "1.0.0", true, entry("A", "1.0.0"))
	q := product("Q", "1.0.0", true, entry("A", "1.0.0"))

	g := newFakeGraph()
	a := component("A", "1.0.0")
	g.add(a, p, q)
	assert.False(t, IsRemovableProduct(g, p), "shared component blocks removal")

	g.add(a, p)
	assert.True(t, IsRemovableProduct(g, p))

	p.Application = "acme.app"
	g.app = "acme.app"
	assert.False(t, IsRemovableProduct(g, p), "dominant application cannot be removed")

	g.app = "other.app"
	assert.True(t, IsRemovableProduct(g, p))

	// dangling and missing entries are ignored
	g.add(a, p, q)
	g.dangling[a.Key().String()] = true
	assert.True(t, IsRemovableProduct(g, p))
	assert.True(t, IsRemovableProduct(g, product("R", "1.0.0", true, entry("missing", "1.0.0"))))
}

func TestConflictsWith(t *testing.T) {
	r, conflict := ConflictsWithProduct(product("P", "1.0.0", true), product("P", "1.0.0", true))
	assert.True(t, conflict)
	assert.Equal(t, NotNewer, r)

	r, conflict = ConflictsWithComponent(newFakeGraph(), component("A", "1.0.0"), nil)
	assert.False(t, conflict)
	assert.Equal(t, OkToInstall, r)
}
