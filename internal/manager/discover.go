package manager

import (
	"context"
	"slices"
	"time"

	"github.com/criteo/install-registry/internal/eligibility"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/registry"
	"github.com/criteo/install-registry/internal/version"
)

// Item is one entity staged for download
type Item struct {
	Ref       models.Ref         `json:"ref" yaml:"ref"`
	Source    string             `json:"source" yaml:"source"`
	Result    eligibility.Result `json:"result" yaml:"result"`
	Product   *models.Product    `json:"product,omitempty" yaml:"product,omitempty"`
	Component *models.Component  `json:"component,omitempty" yaml:"component,omitempty"`
}

// DownloadList collects the newer versions found on update sites. Each entity
// is staged once, from the first site offering it.
type DownloadList struct {
	Items []Item `json:"items" yaml:"items"`
	seen  map[string]bool
}

func (d *DownloadList) add(item Item) bool {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	id := item.Ref.String()
	if d.seen[id] {
		return false
	}
	d.seen[id] = true
	d.Items = append(d.Items, item)
	return true
}

// Products returns the staged products
func (d *DownloadList) Products() []*models.Product {
	var out []*models.Product
	for _, item := range d.Items {
		if item.Product != nil {
			out = append(out, item.Product)
		}
	}
	return out
}

// Components returns the staged components
func (d *DownloadList) Components() []*models.Component {
	var out []*models.Component
	for _, item := range d.Items {
		if item.Component != nil {
			out = append(out, item.Component)
		}
	}
	return out
}

// Len returns the number of staged entities
func (d *DownloadList) Len() int {
	return len(d.Items)
}

// Discover reloads the local tree, then asks the update sites of every
// dangling component and of the latest version of every active product for a
// newer version. Sites that cannot be read are skipped.
func (m *Manager) Discover(ctx context.Context) (list *DownloadList, err error) {
	start := time.Now()
	defer func() { m.metrics.Operation("discover", start, err) }()

	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}

	list = &DownloadList{}
	remotes := make(map[string]*registry.Registry)
	remote := func(url string) (*registry.Registry, error) {
		if r, ok := remotes[url]; ok {
			return r, nil
		}
		r, err := m.Remote(ctx, url)
		if err != nil {
			return nil, err
		}
		remotes[url] = r
		return r, nil
	}

	dangling, err := m.local.DanglingComponents(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range dangling {
		if !m.current.IsActiveComponent(c.Key()) {
			continue
		}
		for _, site := range c.UpdateURLs {
			r, err := remote(site.URL)
			if err != nil {
				return nil, err
			}
			if r == nil {
				continue
			}
			candidate := r.GetComponent(c.ID, nil)
			if candidate == nil || !version.Newer(candidate.Version, c.Version) {
				continue
			}
			list.add(Item{
				Ref:       models.Ref{Kind: models.KindComponent, Key: candidate.Key()},
				Source:    r.BaseURL(),
				Result:    eligibility.IsInstallableComponent(m.current, candidate, c),
				Component: candidate.Clone(),
			})
		}
	}

	for _, p := range m.latestActiveProducts() {
		for _, site := range p.UpdateURLs {
			r, err := remote(site.URL)
			if err != nil {
				return nil, err
			}
			if r == nil {
				continue
			}
			candidate := r.GetProduct(p.ID, nil)
			if candidate == nil || !version.Newer(candidate.Version, p.Version) {
				continue
			}
			result := eligibility.IsInstallableProduct(candidate, p)
			list.add(Item{
				Ref:     models.Ref{Kind: models.KindProduct, Key: candidate.Key()},
				Source:  r.BaseURL(),
				Result:  result,
				Product: candidate.Clone(),
			})
			m.stageEntries(list, r, candidate, result)
		}
	}

	m.logger.Info("Discovery completed",
		"sites", len(remotes),
		"staged", list.Len())
	return list, nil
}

// stageEntries stages the components of a newer product that the remote
// registry carries and that may be installed over the current ones
func (m *Manager) stageEntries(list *DownloadList, r *registry.Registry, p *models.Product, productResult eligibility.Result) {
	for _, e := range p.Entries {
		v := e.Version
		c := r.GetComponent(e.ID, &v)
		if c == nil {
			continue
		}
		installed := m.current.GetComponent(e.ID, nil)
		if installed != nil && installed.Version.Equal(e.Version) {
			continue
		}
		result := eligibility.IsInstallableEntry(m.current, productResult, e, installed)
		if !result.OK() {
			continue
		}
		list.add(Item{
			Ref:       models.Ref{Kind: models.KindComponent, Key: c.Key()},
			Source:    r.BaseURL(),
			Result:    result,
			Component: c.Clone(),
		})
	}
}

func (m *Manager) latestActiveProducts() []*models.Product {
	var ids []string
	for _, p := range m.current.Products() {
		if !slices.Contains(ids, p.ID) {
			ids = append(ids, p.ID)
		}
	}
	out := make([]*models.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.current.GetProduct(id, nil))
	}
	return out
}
