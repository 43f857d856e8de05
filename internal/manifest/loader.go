package manifest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/criteo/install-registry/internal/fetch"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/version"
)

// Layout of an installation tree relative to its base URL
const (
	ManifestFile      = "install.xml"
	ConfigurationsDir = "install/configurations/"
	ComponentsDir     = "install/components/"
	PluginsDir        = "plugins/"
	FragmentsDir      = "fragments/"
)

// ProductsURL returns the configurations directory of a tree
func ProductsURL(treeURL string) string {
	return fetch.Join(treeURL, ConfigurationsDir) + "/"
}

// ComponentsURL returns the components directory of a tree
func ComponentsURL(treeURL string) string {
	return fetch.Join(treeURL, ComponentsDir) + "/"
}

// DirName is the directory name an entity is stored under
func DirName(k models.Key) string {
	return k.String()
}

// Loader reads manifests of one or more installation trees
type Loader struct {
	opener    fetch.Opener
	localizer *Localizer
	logger    *slog.Logger
}

// NewLoader creates a loader reading through opener
func NewLoader(opener fetch.Opener, logger *slog.Logger) *Loader {
	return &Loader{
		opener:    opener,
		localizer: NewLocalizer(opener, logger),
		logger:    logger,
	}
}

// Opener returns the underlying URL opener
func (l *Loader) Opener() fetch.Opener {
	return l.opener
}

// ProductDirs lists the product directories of a tree
func (l *Loader) ProductDirs(ctx context.Context, treeURL string) ([]string, error) {
	return fetch.Members(ctx, l.opener, ProductsURL(treeURL))
}

// ComponentDirs lists the component directories of a tree
func (l *Loader) ComponentDirs(ctx context.Context, treeURL string) ([]string, error) {
	return fetch.Members(ctx, l.opener, ComponentsURL(treeURL))
}

// LoadProduct reads install/configurations/<dir>/install.xml
func (l *Loader) LoadProduct(ctx context.Context, treeURL, dir string) (*models.Product, error) {
	dirURL := fetch.Join(ProductsURL(treeURL), dir) + "/"
	doc, err := l.read(ctx, dirURL)
	if err != nil {
		return nil, err
	}
	if !doc.IsProduct() {
		return nil, fmt.Errorf("%w: %s is a %s manifest, expected %s", ErrInvalidManifest, dirURL, doc.XMLName.Local, RootConfiguration)
	}
	return l.toProduct(ctx, doc, dirURL)
}

// LoadComponent reads install/components/<dir>/install.xml
func (l *Loader) LoadComponent(ctx context.Context, treeURL, dir string) (*models.Component, error) {
	dirURL := fetch.Join(ComponentsURL(treeURL), dir) + "/"
	doc, err := l.read(ctx, dirURL)
	if err != nil {
		return nil, err
	}
	if doc.IsProduct() {
		return nil, fmt.Errorf("%w: %s is a %s manifest, expected %s", ErrInvalidManifest, dirURL, doc.XMLName.Local, RootComponent)
	}
	return l.toComponent(ctx, doc, dirURL, treeURL)
}

func (l *Loader) read(ctx context.Context, dirURL string) (*Document, error) {
	resp, err := l.opener.Open(ctx, dirURL+ManifestFile)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dirURL+ManifestFile, err)
	}
	return doc, nil
}

func (l *Loader) toProduct(ctx context.Context, doc *Document, dirURL string) (*models.Product, error) {
	v, err := version.ParseStrict(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, dirURL, err)
	}

	p := &models.Product{
		ID:            doc.ID,
		Label:         l.localizer.Translate(ctx, dirURL, doc.Label),
		Version:       v,
		Vendor:        l.localizer.Translate(ctx, dirURL, doc.Provider),
		Description:   l.localizer.Translate(ctx, dirURL, doc.Description),
		Application:   doc.Application,
		AllowUpgrade:  parseBool(doc.AllowUpgrade, true),
		UpdateURLs:    l.sites(ctx, dirURL, doc.UpdateSites()),
		DiscoveryURLs: l.sites(ctx, dirURL, doc.DiscoverySites()),
		InstallURL:    dirURL,
	}
	for _, e := range doc.Components {
		p.Entries = append(p.Entries, &models.ComponentEntry{
			ID:           e.ID,
			Label:        l.localizer.Translate(ctx, dirURL, e.Label),
			Version:      l.entryVersion(dirURL, e),
			AllowUpgrade: parseBool(e.AllowUpgrade, true),
			Optional:     parseBool(e.Optional, false),
			Product:      p.Key(),
		})
	}

	if err := models.ValidateProduct(p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, dirURL, err)
	}
	return p, nil
}

func (l *Loader) toComponent(ctx context.Context, doc *Document, dirURL, treeURL string) (*models.Component, error) {
	v, err := version.ParseStrict(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, dirURL, err)
	}

	c := &models.Component{
		ID:            doc.ID,
		Label:         l.localizer.Translate(ctx, dirURL, doc.Label),
		Version:       v,
		Vendor:        l.localizer.Translate(ctx, dirURL, doc.Provider),
		Description:   l.localizer.Translate(ctx, dirURL, doc.Description),
		UpdateURLs:    l.sites(ctx, dirURL, doc.UpdateSites()),
		DiscoveryURLs: l.sites(ctx, dirURL, doc.DiscoverySites()),
		InstallURL:    dirURL,
	}
	for _, e := range doc.Plugins {
		pv := l.entryVersion(dirURL, e)
		c.Plugins = append(c.Plugins, models.PluginEntry{
			ID:          e.ID,
			Label:       l.localizer.Translate(ctx, dirURL, e.Label),
			Version:     pv,
			ComponentID: c.ID,
			Files:       files(e),
			InstallURL:  fetch.Join(treeURL, PluginsDir, models.NewKey(e.ID, pv).String()) + "/",
		})
	}
	for _, e := range doc.Fragments {
		fv := l.entryVersion(dirURL, e)
		c.Fragments = append(c.Fragments, models.FragmentEntry{
			ID:          e.ID,
			Label:       l.localizer.Translate(ctx, dirURL, e.Label),
			Version:     fv,
			ComponentID: c.ID,
			Files:       files(e),
			InstallURL:  fetch.Join(treeURL, FragmentsDir, models.NewKey(e.ID, fv).String()) + "/",
		})
	}

	if err := models.ValidateComponent(c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, dirURL, err)
	}
	return c, nil
}

// entryVersion parses a nested element version with the zero fallback
func (l *Loader) entryVersion(dirURL string, e Element) version.Identifier {
	v := version.Parse(e.Version)
	if v.Unparsed() {
		l.logger.Warn("Unparseable entry version, using 0.0.0",
			"manifest", dirURL+ManifestFile,
			"id", e.ID,
			"version", e.Version)
	}
	return v
}

func (l *Loader) sites(ctx context.Context, dirURL string, in []Site) []models.URLEntry {
	var out []models.URLEntry
	for _, s := range in {
		if s.URL == "" {
			continue
		}
		out = append(out, models.URLEntry{
			URL:   s.URL,
			Label: l.localizer.Translate(ctx, dirURL, s.Label),
		})
	}
	return out
}

func files(e Element) []string {
	var out []string
	for _, f := range e.Files {
		if f.Path != "" {
			out = append(out, f.Path)
		}
	}
	return out
}
