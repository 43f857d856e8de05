// Package registry holds the products and components of one installation tree
// as an arena of multi-version proxies, with the product/component membership
// edges maintained alongside.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/criteo/install-registry/internal/eligibility"
	"github.com/criteo/install-registry/internal/manifest"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/version"
)

// Kind distinguishes the local installation tree from remote update sites
type Kind int

const (
	Local Kind = iota
	Remote
)

func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Record is the part of the activation record a local registry consults
type Record interface {
	IsDangling(k models.Key, mark *bool) (bool, error)
	DominantApplication() string
}

// Registry is the arena of one installation tree. It is not safe for
// concurrent use; callers serialize access per tree.
type Registry struct {
	kind    Kind
	baseURL string
	record  Record
	logger  *slog.Logger

	products     map[string]*Proxy[*models.Product]
	components   map[string]*Proxy[*models.Component]
	productIDs   []string
	componentIDs []string

	// component key -> keys of the products listing it as installed
	containing map[string][]models.Key
}

// New creates an empty registry. record may be nil for remote registries.
func New(kind Kind, baseURL string, record Record, logger *slog.Logger) *Registry {
	return &Registry{
		kind:       kind,
		baseURL:    baseURL,
		record:     record,
		logger:     logger,
		products:   make(map[string]*Proxy[*models.Product]),
		components: make(map[string]*Proxy[*models.Component]),
		containing: make(map[string][]models.Key),
	}
}

// Kind returns whether the registry is local or remote
func (r *Registry) Kind() Kind {
	return r.kind
}

// BaseURL returns the installation tree the registry was created for
func (r *Registry) BaseURL() string {
	return r.baseURL
}

// Load reads the tree at the registry's base URL. Products are read first,
// each pulling in the components it references; the components directory is
// then scanned for anything not reached through a product. filter, when
// non-nil, restricts the product directories read. A manifest that fails to
// load is logged and skipped.
func (r *Registry) Load(ctx context.Context, loader *manifest.Loader, filter []string) error {
	dirs, err := loader.ProductDirs(ctx, r.baseURL)
	if err != nil {
		return fmt.Errorf("failed to list products of %s: %w", r.baseURL, err)
	}

	reached := make(map[string]bool)
	for _, dir := range dirs {
		if filter != nil && !slices.Contains(filter, dir) {
			continue
		}
		p, err := loader.LoadProduct(ctx, r.baseURL, dir)
		if err != nil {
			r.logger.Warn("Skipping product manifest",
				"registry", r.baseURL,
				"dir", dir,
				"error", err)
			continue
		}
		if !r.AddProduct(p) {
			r.logger.Warn("Duplicate product version ignored",
				"registry", r.baseURL,
				"product", p.Key().String())
			continue
		}

		for _, e := range p.Entries {
			k := e.Key()
			dir := manifest.DirName(k)
			if r.GetComponent(k.ID, &k.Version) != nil {
				reached[dir] = true
				continue
			}
			// a directory spelled differently is picked up by the scan below
			c, err := loader.LoadComponent(ctx, r.baseURL, dir)
			if err != nil {
				r.logger.Debug("Referenced component not loaded",
					"registry", r.baseURL,
					"product", p.Key().String(),
					"component", k.String(),
					"error", err)
				continue
			}
			r.AddComponent(c)
			reached[dir] = true
		}
	}

	dirs, err = loader.ComponentDirs(ctx, r.baseURL)
	if err != nil {
		return fmt.Errorf("failed to list components of %s: %w", r.baseURL, err)
	}
	for _, dir := range dirs {
		if reached[dir] {
			continue
		}
		c, err := loader.LoadComponent(ctx, r.baseURL, dir)
		if err != nil {
			r.logger.Warn("Skipping component manifest",
				"registry", r.baseURL,
				"dir", dir,
				"error", err)
			continue
		}
		if r.GetComponent(c.ID, &c.Version) != nil {
			continue
		}
		if r.kind == Remote && !r.References(c.Key()) {
			c.Loose = true
		}
		if !r.AddComponent(c) {
			r.logger.Warn("Duplicate component version ignored",
				"registry", r.baseURL,
				"component", c.Key().String())
		}
	}

	r.logger.Debug("Registry loaded",
		"registry", r.baseURL,
		"kind", r.kind.String(),
		"products", len(r.Products()),
		"components", len(r.Components()))
	return nil
}

// GetProduct returns the product id at v, or its latest version when v is nil
func (r *Registry) GetProduct(id string, v *version.Identifier) *models.Product {
	proxy, ok := r.products[id]
	if !ok {
		return nil
	}
	var p *models.Product
	if v == nil {
		p, ok = proxy.Latest()
	} else {
		p, ok = proxy.Lookup(*v)
	}
	if !ok {
		return nil
	}
	return p
}

// GetComponent returns the component id at v, or its latest version when v is
// nil
func (r *Registry) GetComponent(id string, v *version.Identifier) *models.Component {
	proxy, ok := r.components[id]
	if !ok {
		return nil
	}
	var c *models.Component
	if v == nil {
		c, ok = proxy.Latest()
	} else {
		c, ok = proxy.Lookup(*v)
	}
	if !ok {
		return nil
	}
	return c
}

// ProductVersions returns every version of product id
func (r *Registry) ProductVersions(id string) []*models.Product {
	if proxy, ok := r.products[id]; ok {
		return proxy.Values()
	}
	return nil
}

// ComponentVersions returns every version of component id
func (r *Registry) ComponentVersions(id string) []*models.Component {
	if proxy, ok := r.components[id]; ok {
		return proxy.Values()
	}
	return nil
}

// Products returns every version of every product
func (r *Registry) Products() []*models.Product {
	var out []*models.Product
	for _, id := range r.productIDs {
		out = append(out, r.products[id].Values()...)
	}
	return out
}

// Components returns every version of every component
func (r *Registry) Components() []*models.Component {
	var out []*models.Component
	for _, id := range r.componentIDs {
		out = append(out, r.components[id].Values()...)
	}
	return out
}

// ContainingProducts returns the products listing c as an installed entry
func (r *Registry) ContainingProducts(c *models.Component) []*models.Product {
	var out []*models.Product
	for _, k := range r.containing[c.Key().String()] {
		if p := r.GetProduct(k.ID, &k.Version); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// IsDangling reports the loose flag for remote registries and the activation
// record's dangling flag for the local one. Without a record, a component is
// dangling when no product contains it.
func (r *Registry) IsDangling(c *models.Component) bool {
	if r.kind == Remote {
		return c.Loose
	}
	if r.record == nil {
		return len(r.containing[c.Key().String()]) == 0
	}
	dangling, err := r.record.IsDangling(c.Key(), nil)
	if err != nil {
		r.logger.Warn("Dangling flag unavailable",
			"component", c.Key().String(),
			"error", err)
		return false
	}
	return dangling
}

// DanglingComponents returns the loose components of a remote registry, or the
// components of the local registry no product contains. The activation
// record is brought in line: unflagged components without a containing product
// are flagged, and flagged components some product contains are cleared.
func (r *Registry) DanglingComponents(ctx context.Context) ([]*models.Component, error) {
	var out []*models.Component
	for _, c := range r.Components() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.kind == Remote {
			if c.Loose {
				out = append(out, c)
			}
			continue
		}
		contained := len(r.containing[c.Key().String()]) > 0
		if !contained {
			out = append(out, c)
		}
		if r.record == nil {
			continue
		}
		flagged, err := r.record.IsDangling(c.Key(), nil)
		if err != nil {
			return nil, err
		}
		if contained && flagged {
			mark := false
			if _, err := r.record.IsDangling(c.Key(), &mark); err != nil {
				return nil, fmt.Errorf("failed to clear dangling flag of %s: %w", c.Key(), err)
			}
			r.logger.Info("Cleared dangling flag of contained component",
				"component", c.Key().String())
			continue
		}
		if !contained && !flagged {
			mark := true
			if _, err := r.record.IsDangling(c.Key(), &mark); err != nil {
				return nil, fmt.Errorf("failed to flag dangling component %s: %w", c.Key(), err)
			}
			r.logger.Info("Flagged unreferenced component as dangling",
				"component", c.Key().String())
		}
	}
	return out, nil
}

// DominantApplication returns the application id of the running product
func (r *Registry) DominantApplication() string {
	if r.record == nil {
		return ""
	}
	return r.record.DominantApplication()
}

// ConflictingProduct evaluates candidate against the latest same-id product.
// The returned refs hold the conflicting installation, if any.
func (r *Registry) ConflictingProduct(candidate *models.Product) ([]models.Ref, eligibility.Result) {
	return conflictingProduct(r, candidate)
}

// ConflictingComponent evaluates candidate against the latest same-id
// component
func (r *Registry) ConflictingComponent(candidate *models.Component) ([]models.Ref, eligibility.Result) {
	return conflictingComponent(r, candidate)
}

// AddProduct inserts p and links it to every component it references that is
// present. It returns false for a duplicate version.
func (r *Registry) AddProduct(p *models.Product) bool {
	proxy, ok := r.products[p.ID]
	if !ok {
		proxy = NewProxy[*models.Product](p.ID)
		r.products[p.ID] = proxy
		r.productIDs = append(r.productIDs, p.ID)
	}
	if !proxy.Insert(p.Version, p) {
		return false
	}
	for _, e := range p.Entries {
		k := e.Key()
		if r.GetComponent(k.ID, &k.Version) != nil {
			r.link(p, e)
		}
	}
	return true
}

// AddComponent inserts c and links it into every product referencing it. It
// returns false for a duplicate version.
func (r *Registry) AddComponent(c *models.Component) bool {
	proxy, ok := r.components[c.ID]
	if !ok {
		proxy = NewProxy[*models.Component](c.ID)
		r.components[c.ID] = proxy
		r.componentIDs = append(r.componentIDs, c.ID)
	}
	if !proxy.Insert(c.Version, c) {
		return false
	}
	k := c.Key()
	for _, p := range r.Products() {
		if e := p.Entry(k.ID); e != nil && e.Version.Equal(k.Version) {
			r.link(p, e)
		}
	}
	return true
}

// RemoveProduct deletes the product k and unlinks it from its components
func (r *Registry) RemoveProduct(k models.Key) bool {
	p := r.GetProduct(k.ID, &k.Version)
	if p == nil {
		return false
	}
	for _, e := range p.Entries {
		r.unlink(p, e)
	}
	proxy := r.products[k.ID]
	proxy.Remove(k.Version)
	if proxy.Len() == 0 {
		delete(r.products, k.ID)
		r.productIDs = slices.DeleteFunc(r.productIDs, func(id string) bool { return id == k.ID })
	}
	return true
}

// RemoveComponent deletes the component k and clears the entries referencing it
func (r *Registry) RemoveComponent(k models.Key) bool {
	c := r.GetComponent(k.ID, &k.Version)
	if c == nil {
		return false
	}
	for _, p := range r.ContainingProducts(c) {
		if e := p.Entry(k.ID); e != nil {
			e.Installed = false
		}
	}
	delete(r.containing, k.String())
	proxy := r.components[k.ID]
	proxy.Remove(k.Version)
	if proxy.Len() == 0 {
		delete(r.components, k.ID)
		r.componentIDs = slices.DeleteFunc(r.componentIDs, func(id string) bool { return id == k.ID })
	}
	return true
}

// References reports whether any product in the registry lists component k
func (r *Registry) References(k models.Key) bool {
	for _, p := range r.Products() {
		if p.References(k) {
			return true
		}
	}
	return false
}

func (r *Registry) link(p *models.Product, e *models.ComponentEntry) {
	e.Installed = true
	ck := e.Key().String()
	pk := p.Key()
	for _, existing := range r.containing[ck] {
		if existing.Equal(pk) {
			return
		}
	}
	r.containing[ck] = append(r.containing[ck], pk)
}

func (r *Registry) unlink(p *models.Product, e *models.ComponentEntry) {
	e.Installed = false
	ck := e.Key().String()
	pk := p.Key()
	r.containing[ck] = slices.DeleteFunc(r.containing[ck], func(k models.Key) bool { return k.Equal(pk) })
	if len(r.containing[ck]) == 0 {
		delete(r.containing, ck)
	}
}

func conflictingProduct(g interface {
	GetProduct(id string, v *version.Identifier) *models.Product
}, candidate *models.Product) ([]models.Ref, eligibility.Result) {
	installed := g.GetProduct(candidate.ID, nil)
	if installed == nil {
		return nil, eligibility.OkToInstall
	}
	if result, conflict := eligibility.ConflictsWithProduct(candidate, installed); conflict {
		return []models.Ref{{Kind: models.KindProduct, Key: installed.Key()}}, result
	}
	return nil, eligibility.OkToInstall
}

func conflictingComponent(g eligibility.Graph, candidate *models.Component) ([]models.Ref, eligibility.Result) {
	installed := g.GetComponent(candidate.ID, nil)
	if installed == nil {
		return nil, eligibility.OkToInstall
	}
	if result, conflict := eligibility.ConflictsWithComponent(g, candidate, installed); conflict {
		return []models.Ref{{Kind: models.KindComponent, Key: installed.Key()}}, result
	}
	return nil, eligibility.OkToInstall
}
