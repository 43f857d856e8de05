package registry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/criteo/install-registry/internal/eligibility"
	"github.com/criteo/install-registry/internal/fetch"
	"github.com/criteo/install-registry/internal/manifest"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/version"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeRecord struct {
	dangling map[string]bool
	app      string
}

func newFakeRecord() *fakeRecord {
	return &fakeRecord{dangling: make(map[string]bool)}
}

func (r *fakeRecord) IsDangling(k models.Key, mark *bool) (bool, error) {
	if mark != nil {
		r.dangling[k.String()] = *mark
	}
	return r.dangling[k.String()], nil
}

func (r *fakeRecord) DominantApplication() string {
	return r.app
}

func newComponent(id, v string) *models.Component {
	return &models.Component{ID: id, Version: version.MustParse(v)}
}

func newProduct(id, v string, components ...string) *models.Product {
	p := &models.Product{ID: id, Version: version.MustParse(v), AllowUpgrade: true}
	for _, c := range components {
		k, err := models.ParseKey(c)
		if err != nil {
			panic(err)
		}
		p.Entries = append(p.Entries, &models.ComponentEntry{
			ID:           k.ID,
			Version:      k.Version,
			AllowUpgrade: true,
			Product:      p.Key(),
		})
	}
	return p
}

func keys[T interface{ Key() models.Key }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key().String())
	}
	return out
}

func TestProxy(t *testing.T) {
	p := NewProxy[string]("A")
	assert.True(t, p.Insert(version.MustParse("1.0.0"), "first"))
	assert.True(t, p.Insert(version.MustParse("1.2.0"), "second"))
	assert.True(t, p.Insert(version.MustParse("2.0.0"), "third"))
	assert.False(t, p.Insert(version.MustParse("1.0.0"), "duplicate"))

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, "third", latest)

	earliest, ok := p.Earliest()
	require.True(t, ok)
	assert.Equal(t, "first", earliest)

	val, ok := p.Lookup(version.MustParse("1.0.0"))
	require.True(t, ok)
	assert.Equal(t, "first", val, "first writer wins")

	_, ok = p.Lookup(version.MustParse("3.0.0"))
	assert.False(t, ok)

	assert.True(t, p.Remove(version.MustParse("2.0.0")))
	assert.False(t, p.Remove(version.MustParse("2.0.0")))
	latest, _ = p.Latest()
	assert.Equal(t, "second", latest)
	assert.Equal(t, []string{"first", "second"}, p.Values())
	assert.Equal(t, 2, p.Len())

	empty := NewProxy[int]("B")
	_, ok = empty.Latest()
	assert.False(t, ok)
}

func TestRegistry_Edges(t *testing.T) {
	r := New(Local, "file:///tree/", nil, newTestLogger())

	a := newComponent("A", "1.0.0")
	p := newProduct("P", "1.0.0", "A_1.0.0", "B_1.0.0")

	// product first, component later
	require.True(t, r.AddProduct(p))
	assert.False(t, p.Entry("A").Installed)
	require.True(t, r.AddComponent(a))
	assert.True(t, p.Entry("A").Installed)
	assert.False(t, p.Entry("B").Installed)
	assert.Equal(t, []string{"P_1.0.0"}, keys(r.ContainingProducts(a)))

	// component first, product later
	b := newComponent("B", "1.0.0")
	require.True(t, r.AddComponent(b))
	assert.True(t, p.Entry("B").Installed)
	q := newProduct("Q", "1.0.0", "A_1.0.0")
	require.True(t, r.AddProduct(q))
	assert.Equal(t, []string{"P_1.0.0", "Q_1.0.0"}, keys(r.ContainingProducts(a)))

	assert.False(t, r.AddComponent(newComponent("A", "1.0.0")), "duplicate version rejected")

	require.True(t, r.RemoveProduct(q.Key()))
	assert.Equal(t, []string{"P_1.0.0"}, keys(r.ContainingProducts(a)))
	assert.Nil(t, r.GetProduct("Q", nil), "empty proxy is dropped")

	require.True(t, r.RemoveComponent(a.Key()))
	assert.False(t, p.Entry("A").Installed)
	assert.Nil(t, r.GetComponent("A", nil))
	assert.False(t, r.RemoveComponent(a.Key()))
	assert.True(t, r.References(a.Key()))
}

func TestRegistry_GetLatest(t *testing.T) {
	r := New(Local, "file:///tree/", nil, newTestLogger())
	r.AddComponent(newComponent("A", "1.0.0"))
	r.AddComponent(newComponent("A", "2.0.0"))
	r.AddComponent(newComponent("A", "1.5.0"))

	assert.Equal(t, "2.0.0", r.GetComponent("A", nil).Version.String())
	v := version.MustParse("1.5.0")
	assert.Equal(t, "1.5.0", r.GetComponent("A", &v).Version.String())
	assert.Len(t, r.ComponentVersions("A"), 3)
	assert.Nil(t, r.GetComponent("missing", nil))
}

func TestRegistry_CascadingRemovability(t *testing.T) {
	r := New(Local, "file:///tree/", newFakeRecord(), newTestLogger())
	r.AddComponent(newComponent("A", "1.0.0"))
	p := newProduct("P", "1.0.0", "A_1.0.0")
	q := newProduct("Q", "1.0.0", "A_1.0.0")
	r.AddProduct(p)
	r.AddProduct(q)

	assert.False(t, eligibility.IsRemovableProduct(r, p))
	require.True(t, r.RemoveProduct(q.Key()))
	assert.True(t, eligibility.IsRemovableProduct(r, p))
}

func TestRegistry_DanglingComponents(t *testing.T) {
	record := newFakeRecord()
	r := New(Local, "file:///tree/", record, newTestLogger())
	r.AddComponent(newComponent("A", "1.0.0"))
	r.AddComponent(newComponent("L", "1.0.0"))
	r.AddProduct(newProduct("P", "1.0.0", "A_1.0.0"))

	loose := r.GetComponent("L", nil)
	assert.False(t, r.IsDangling(loose), "not yet flagged")

	dangling, err := r.DanglingComponents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"L_1.0.0"}, keys(dangling))
	assert.True(t, record.dangling["L_1.0.0"], "unreferenced component is flagged")
	assert.True(t, r.IsDangling(loose))

	remote := New(Remote, "http://site/", nil, newTestLogger())
	c := newComponent("R", "1.0.0")
	c.Loose = true
	remote.AddComponent(c)
	remote.AddComponent(newComponent("S", "1.0.0"))
	dangling, err = remote.DanglingComponents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"R_1.0.0"}, keys(dangling))
}

func TestRegistry_DanglingComponents_ClearsStaleFlag(t *testing.T) {
	record := newFakeRecord()
	record.dangling["A_1.0.0"] = true
	r := New(Local, "file:///tree/", record, newTestLogger())
	r.AddComponent(newComponent("A", "1.0.0"))
	r.AddProduct(newProduct("P", "1.0.0", "A_1.0.0"))

	a := r.GetComponent("A", nil)
	assert.True(t, r.IsDangling(a), "stale flag from an earlier standalone install")

	dangling, err := r.DanglingComponents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dangling)
	assert.False(t, record.dangling["A_1.0.0"], "contained component is no longer flagged")
	assert.False(t, r.IsDangling(a))
	assert.True(t, eligibility.IsRemovableProduct(r, r.GetProduct("P", nil)))
}

func TestRegistry_Conflicting(t *testing.T) {
	r := New(Local, "file:///tree/", newFakeRecord(), newTestLogger())
	r.AddComponent(newComponent("A", "1.0.0"))
	r.AddProduct(newProduct("P", "1.0.0", "A_1.0.0"))

	refs, result := r.ConflictingProduct(newProduct("P", "1.0.0"))
	assert.Equal(t, eligibility.NotNewer, result)
	require.Len(t, refs, 1)
	assert.Equal(t, "product P_1.0.0", refs[0].String())

	refs, result = r.ConflictingProduct(newProduct("P", "1.1.0"))
	assert.Equal(t, eligibility.OkToInstall, result)
	assert.Empty(t, refs)

	refs, result = r.ConflictingComponent(newComponent("A", "2.0.0"))
	assert.Equal(t, eligibility.NotCompatible, result)
	require.Len(t, refs, 1)
	assert.Equal(t, models.KindComponent, refs[0].Kind)

	refs, result = r.ConflictingComponent(newComponent("New", "1.0.0"))
	assert.Equal(t, eligibility.OkToInstall, result)
	assert.Empty(t, refs)
}

func TestView(t *testing.T) {
	r := New(Local, "file:///tree/", newFakeRecord(), newTestLogger())
	r.AddComponent(newComponent("A", "1.0.0"))
	r.AddComponent(newComponent("A", "1.1.0"))
	r.AddProduct(newProduct("P", "1.0.0", "A_1.0.0"))
	r.AddProduct(newProduct("P", "2.0.0", "A_1.1.0"))

	v := NewView(r, ActiveSet{
		Products:   []string{"P_1.0.0"},
		Components: []string{"A_1.0.0", "A_1.1.0"},
	})

	assert.Equal(t, "1.0.0", v.GetProduct("P", nil).Version.String())
	assert.Equal(t, "1.1.0", v.GetComponent("A", nil).Version.String())
	pv := version.MustParse("2.0.0")
	assert.Nil(t, v.GetProduct("P", &pv))

	assert.Equal(t, []string{"P_1.0.0"}, keys(v.Products()))
	assert.Equal(t, []string{"A_1.0.0", "A_1.1.0"}, keys(v.Components()))

	// A_1.1.0 is only contained by the inactive P_2.0.0
	assert.Equal(t, []string{"A_1.1.0"}, keys(v.DanglingComponents()))
	assert.Len(t, r.ContainingProducts(r.GetComponent("A", nil)), 1)

	refs, result := v.ConflictingProduct(newProduct("P", "1.5.0"))
	assert.Equal(t, eligibility.OkToInstall, result, "inactive P_2.0.0 does not conflict")
	assert.Empty(t, refs)
}

func writeManifest(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel, manifest.ManifestFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRegistry_Load(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "install/configurations/P_1.0.0",
		`<configuration id="P" version="1.0.0"><component id="A" version="1.0.0"/><component id="M" version="1.0.0"/></configuration>`)
	writeManifest(t, dir, "install/configurations/Broken_1.0.0",
		`<configuration id="Broken" version="x.y"/>`)
	writeManifest(t, dir, "install/components/A_1.0.0",
		`<component id="A" version="1.0.0"><plugin id="a.core" version="1.0.0"/></component>`)
	writeManifest(t, dir, "install/components/L_2.0.0",
		`<component id="L" version="2.0.0"/>`)

	loader := manifest.NewLoader(fetch.NewMux(time.Second, newTestLogger()), newTestLogger())
	ctx := context.Background()

	local := New(Local, "file://"+dir+"/", nil, newTestLogger())
	require.NoError(t, local.Load(ctx, loader, nil))

	assert.Equal(t, []string{"P_1.0.0"}, keys(local.Products()))
	assert.Equal(t, []string{"A_1.0.0", "L_2.0.0"}, keys(local.Components()))
	p := local.GetProduct("P", nil)
	assert.True(t, p.Entry("A").Installed)
	assert.False(t, p.Entry("M").Installed, "missing component leaves the entry uninstalled")
	assert.False(t, local.GetComponent("L", nil).Loose)

	remote := New(Remote, "file://"+dir+"/", nil, newTestLogger())
	require.NoError(t, remote.Load(ctx, loader, nil))
	dangling, err := remote.DanglingComponents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"L_2.0.0"}, keys(dangling))
	assert.False(t, remote.GetComponent("A", nil).Loose)

	filtered := New(Local, "file://"+dir+"/", nil, newTestLogger())
	require.NoError(t, filtered.Load(ctx, loader, []string{"Other_1.0.0"}))
	assert.Empty(t, filtered.Products())
	if diff := cmp.Diff([]string{"A_1.0.0", "L_2.0.0"}, keys(filtered.Components())); diff != "" {
		t.Errorf("components mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_Load_ShortVersionDirectories(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "install/configurations/P_1.0",
		`<configuration id="P" version="1.0"><component id="A" version="1.0"/></configuration>`)
	writeManifest(t, dir, "install/components/A_1.0",
		`<component id="A" version="1.0"><plugin id="a.core" version="1.0"/></component>`)
	writeManifest(t, dir, "install/components/B_2.0",
		`<component id="B" version="2.0"/>`)

	loader := manifest.NewLoader(fetch.NewMux(time.Second, newTestLogger()), newTestLogger())
	ctx := context.Background()

	local := New(Local, "file://"+dir+"/", nil, newTestLogger())
	require.NoError(t, local.Load(ctx, loader, nil))
	assert.Equal(t, []string{"P_1.0.0"}, keys(local.Products()))
	assert.ElementsMatch(t, []string{"A_1.0.0", "B_2.0.0"}, keys(local.Components()))

	a := local.GetComponent("A", nil)
	require.NotNil(t, a, "component referenced by P must be loaded from its own directory")
	assert.True(t, local.GetProduct("P", nil).Entry("A").Installed)
	assert.Equal(t, []string{"P_1.0.0"}, keys(local.ContainingProducts(a)))

	remote := New(Remote, "file://"+dir+"/", nil, newTestLogger())
	require.NoError(t, remote.Load(ctx, loader, nil))
	assert.False(t, remote.GetComponent("A", nil).Loose)
	assert.True(t, remote.GetComponent("B", nil).Loose)
}
