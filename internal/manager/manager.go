// Package manager keeps the local registry of an installation tree, the
// current view derived from the activation record, and the remote registries
// consulted during discovery consistent with each other.
package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/criteo/install-registry/internal/fetch"
	"github.com/criteo/install-registry/internal/manifest"
	"github.com/criteo/install-registry/internal/metrics"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/registry"
	"github.com/criteo/install-registry/internal/storage"
)

// Manager owns the local arena of one installation tree and its current view.
// It is not safe for concurrent use.
type Manager struct {
	installURL string
	loader     *manifest.Loader
	store      storage.Store
	metrics    *metrics.Recorder
	logger     *slog.Logger

	local   *registry.Registry
	current *registry.View
}

// New creates a manager for the tree at installURL. rec may be nil.
func New(installURL string, loader *manifest.Loader, store storage.Store, rec *metrics.Recorder, logger *slog.Logger) *Manager {
	return &Manager{
		installURL: fetch.WithTrailingSlash(installURL),
		loader:     loader,
		store:      store,
		metrics:    rec,
		logger:     logger,
	}
}

// InstallURL returns the base URL of the managed tree
func (m *Manager) InstallURL() string {
	return m.installURL
}

// Store returns the activation record
func (m *Manager) Store() storage.Store {
	return m.store
}

// Refresh reloads the local arena from the tree and derives the current view
// from the activation record
func (m *Manager) Refresh(ctx context.Context) error {
	arena := registry.New(registry.Local, m.installURL, m.store, m.logger)
	if err := arena.Load(ctx, m.loader, nil); err != nil {
		return fmt.Errorf("failed to load local registry: %w", err)
	}
	m.local = arena
	m.sync()

	m.logger.Debug("Local registry refreshed",
		"install_url", m.installURL,
		"products", len(arena.Products()),
		"components", len(arena.Components()),
		"active_products", len(m.current.Products()),
		"active_components", len(m.current.Components()))
	return nil
}

// Local returns the unfiltered arena, loading it on first use
func (m *Manager) Local(ctx context.Context) (*registry.Registry, error) {
	if m.local == nil {
		if err := m.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return m.local, nil
}

// Current returns the active view, loading the arena on first use
func (m *Manager) Current(ctx context.Context) (*registry.View, error) {
	if m.local == nil {
		if err := m.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return m.current, nil
}

// Remote loads the registry published at url. A registry that cannot be read
// is reported as nil without an error.
func (m *Manager) Remote(ctx context.Context, url string) (*registry.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	remote := registry.New(registry.Remote, fetch.WithTrailingSlash(url), nil, m.logger)
	if err := remote.Load(ctx, m.loader, nil); err != nil {
		m.metrics.RemoteFetchFailed()
		m.logger.Warn("Remote registry unavailable",
			"url", url,
			"error", err)
		return nil, nil
	}
	return remote, nil
}

// sync re-derives the current view from the activation record
func (m *Manager) sync() {
	if m.local == nil {
		return
	}
	m.current = registry.NewView(m.local, registry.ActiveSet{
		Products:   models.Strings(m.store.ActiveProducts()),
		Components: models.Strings(m.store.ActiveComponents()),
	})

	m.metrics.Entries("local", string(models.KindProduct), len(m.local.Products()))
	m.metrics.Entries("local", string(models.KindComponent), len(m.local.Components()))
	m.metrics.Entries("current", string(models.KindProduct), len(m.current.Products()))
	m.metrics.Entries("current", string(models.KindComponent), len(m.current.Components()))
}

// AddProductToLocal records p as present in the local tree. The manifest is
// reloaded from the tree when it has been materialized there, otherwise p is
// cloned. Components p references stop being tracked as dangling.
func (m *Manager) AddProductToLocal(ctx context.Context, p *models.Product) (*models.Product, error) {
	arena, err := m.Local(ctx)
	if err != nil {
		return nil, err
	}
	k := p.Key()
	if existing := arena.GetProduct(k.ID, &k.Version); existing != nil {
		return existing, nil
	}

	added, err := m.loader.LoadProduct(ctx, m.installURL, manifest.DirName(k))
	if err != nil {
		m.logger.Debug("Product manifest not materialized, using candidate",
			"product", k.String(),
			"error", err)
		added = p.Clone()
		added.InstallURL = fetch.Join(manifest.ProductsURL(m.installURL), manifest.DirName(k)) + "/"
		for _, e := range added.Entries {
			e.Installed = false
			e.Product = k
		}
	}
	arena.AddProduct(added)

	unmark := false
	for _, e := range added.Entries {
		if !e.Installed {
			continue
		}
		if _, err := m.store.IsDangling(e.Key(), &unmark); err != nil {
			return nil, fmt.Errorf("failed to clear dangling flag of %s: %w", e.Key(), err)
		}
	}
	m.sync()

	m.logger.Info("Product added to local registry", "product", k.String())
	return added, nil
}

// AddComponentToLocal records c as present in the local tree and sets its
// dangling flag
func (m *Manager) AddComponentToLocal(ctx context.Context, c *models.Component, dangling bool) (*models.Component, error) {
	arena, err := m.Local(ctx)
	if err != nil {
		return nil, err
	}
	k := c.Key()
	added := arena.GetComponent(k.ID, &k.Version)
	if added == nil {
		added, err = m.loader.LoadComponent(ctx, m.installURL, manifest.DirName(k))
		if err != nil {
			m.logger.Debug("Component manifest not materialized, using candidate",
				"component", k.String(),
				"error", err)
			added = c.Clone()
			added.Loose = false
			added.InstallURL = fetch.Join(manifest.ComponentsURL(m.installURL), manifest.DirName(k)) + "/"
		}
		arena.AddComponent(added)
		m.logger.Info("Component added to local registry",
			"component", k.String(),
			"dangling", dangling)
	}

	if _, err := m.store.IsDangling(k, &dangling); err != nil {
		return nil, fmt.Errorf("failed to record dangling flag of %s: %w", k, err)
	}
	m.sync()
	return added, nil
}

// RemoveProductFromLocal drops the product k from the local arena. Callers
// check removability first.
func (m *Manager) RemoveProductFromLocal(ctx context.Context, k models.Key) (bool, error) {
	arena, err := m.Local(ctx)
	if err != nil {
		return false, err
	}
	removed := arena.RemoveProduct(k)
	if removed {
		m.logger.Info("Product removed from local registry", "product", k.String())
	}
	m.sync()
	return removed, nil
}

// RemoveComponentFromLocal drops the component k from the local arena and
// clears its dangling flag. Callers check removability first.
func (m *Manager) RemoveComponentFromLocal(ctx context.Context, k models.Key) (bool, error) {
	arena, err := m.Local(ctx)
	if err != nil {
		return false, err
	}
	if !arena.RemoveComponent(k) {
		return false, nil
	}
	unmark := false
	if _, err := m.store.IsDangling(k, &unmark); err != nil {
		return true, fmt.Errorf("failed to clear dangling flag of %s: %w", k, err)
	}
	m.sync()
	m.logger.Info("Component removed from local registry", "component", k.String())
	return true, nil
}

// Activate marks one key active
func (m *Manager) Activate(ctx context.Context, kind models.Kind, k models.Key) error {
	if err := m.store.SetActive(ctx, kind, k); err != nil {
		return fmt.Errorf("failed to activate %s %s: %w", kind, k, err)
	}
	m.sync()
	return nil
}

// ActivateComponent marks c active together with its plugins and fragments
func (m *Manager) ActivateComponent(ctx context.Context, c *models.Component) error {
	if err := m.Activate(ctx, models.KindComponent, c.Key()); err != nil {
		return err
	}
	contents := c.Contents()
	for _, kind := range []models.Kind{models.KindPlugin, models.KindFragment} {
		for _, k := range contents.Keys(kind) {
			if err := m.store.SetActive(ctx, kind, k); err != nil {
				return fmt.Errorf("failed to activate %s %s: %w", kind, k, err)
			}
		}
	}
	return nil
}

// Deactivate removes keys from the activation record in one write
func (m *Manager) Deactivate(ctx context.Context, keys models.KeySet) error {
	if keys.Empty() {
		return nil
	}
	if err := m.store.SetInactive(ctx, keys); err != nil {
		return fmt.Errorf("failed to deactivate: %w", err)
	}
	m.sync()
	return nil
}

// CollectGarbage drops plugin and fragment activations no active component
// carries
func (m *Manager) CollectGarbage(ctx context.Context) (models.KeySet, error) {
	current, err := m.Current(ctx)
	if err != nil {
		return models.KeySet{}, err
	}
	var live models.KeySet
	for _, c := range current.Components() {
		live.Merge(c.Contents())
	}
	removed, err := m.store.GarbageCollect(ctx, live)
	if err != nil {
		return models.KeySet{}, fmt.Errorf("failed to collect activation record: %w", err)
	}
	return removed, nil
}
