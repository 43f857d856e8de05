// Package installer applies install and uninstall requests to one
// installation tree. Conflicts are reported as messages and demote the
// conflicting candidate; only activation record failures abort a call.
package installer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/criteo/install-registry/internal/eligibility"
	"github.com/criteo/install-registry/internal/manager"
	"github.com/criteo/install-registry/internal/manifest"
	"github.com/criteo/install-registry/internal/metrics"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/registry"
	"github.com/criteo/install-registry/internal/version"
)

// Coordinator runs install and uninstall transactions against a Manager
type Coordinator struct {
	manager *manager.Manager
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator. rec may be nil.
func NewCoordinator(m *manager.Manager, rec *metrics.Recorder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		manager: m,
		metrics: rec,
		logger:  logger,
	}
}

// Install activates every candidate that does not conflict with the current
// installation. Candidates missing from the local tree are added to it first.
// Conflicting candidates, with their plugins and fragments, are deactivated in
// one batch at the end; the returned messages describe each conflict.
func (c *Coordinator) Install(ctx context.Context, products []*models.Product, components []*models.Component) (messages []string, err error) {
	start := time.Now()
	logger := c.logger.With("operation_id", uuid.NewString())
	defer func() { c.metrics.Operation("install", start, err) }()

	current, err := c.manager.Current(ctx)
	if err != nil {
		return nil, err
	}
	local, err := c.manager.Local(ctx)
	if err != nil {
		return nil, err
	}

	var demote, keep models.KeySet

	for _, p := range newestProducts(products) {
		refs, result := current.ConflictingProduct(p)
		if len(refs) > 0 {
			messages = append(messages, conflictMessage(models.KindProduct, p.Key(), refs, result))
			c.metrics.Conflict(string(models.KindProduct), result.String())
			logger.Info("Product conflicts with installation",
				"product", p.Key().String(),
				"installed", refs[0].Key.String(),
				"reason", result.String())
			demote.Add(models.KindProduct, p.Key())
			keep.Add(models.KindProduct, refs[0].Key)
			continue
		}

		added, err := c.manager.AddProductToLocal(ctx, p)
		if err != nil {
			return messages, err
		}
		if err := c.manager.Activate(ctx, models.KindProduct, added.Key()); err != nil {
			return messages, err
		}
		logger.Info("Product installed", "product", added.Key().String())
	}

	for _, comp := range newestComponents(components) {
		// refresh after product activations changed the view
		current, err = c.manager.Current(ctx)
		if err != nil {
			return messages, err
		}
		refs, result := current.ConflictingComponent(comp)
		if len(refs) > 0 {
			messages = append(messages, conflictMessage(models.KindComponent, comp.Key(), refs, result))
			c.metrics.Conflict(string(models.KindComponent), result.String())
			logger.Info("Component conflicts with installation",
				"component", comp.Key().String(),
				"installed", refs[0].Key.String(),
				"reason", result.String())
			demote.Add(models.KindComponent, comp.Key())
			demote.Merge(comp.Contents())
			keep.Add(models.KindComponent, refs[0].Key)
			if installed := current.GetComponent(refs[0].Key.ID, &refs[0].Key.Version); installed != nil {
				keep.Merge(installed.Contents())
			}
			continue
		}

		added, err := c.manager.AddComponentToLocal(ctx, comp, !local.References(comp.Key()))
		if err != nil {
			return messages, err
		}
		if err := c.manager.ActivateComponent(ctx, added); err != nil {
			return messages, err
		}
		logger.Info("Component installed", "component", added.Key().String())
	}

	if err := c.manager.Deactivate(ctx, subtract(demote, keep)); err != nil {
		return messages, err
	}

	logger.Info("Install completed",
		"products", len(products),
		"components", len(components),
		"conflicts", len(messages),
		"duration_ms", time.Since(start).Milliseconds())
	return messages, nil
}

// Uninstall removes the named products and components. Products take the
// components only they contain along; entries that are unknown or still in
// use are reported as messages and left alone.
func (c *Coordinator) Uninstall(ctx context.Context, products, components []string) (messages []string, err error) {
	start := time.Now()
	logger := c.logger.With("operation_id", uuid.NewString())
	defer func() { c.metrics.Operation("uninstall", start, err) }()

	local, err := c.manager.Local(ctx)
	if err != nil {
		return nil, err
	}

	var (
		removeProducts   []*models.Product
		removeComponents []*models.Component
		seen             = make(map[string]bool)
		deactivate       models.KeySet
	)
	queueComponent := func(comp *models.Component) {
		k := comp.Key().String()
		if seen[k] {
			return
		}
		seen[k] = true
		removeComponents = append(removeComponents, comp)
		deactivate.Add(models.KindComponent, comp.Key())
		deactivate.Merge(comp.Contents())
	}

	for _, s := range products {
		k, err := models.ParseKey(s)
		if err != nil {
			messages = append(messages, fmt.Sprintf("invalid product key %q", s))
			continue
		}
		p := local.GetProduct(k.ID, &k.Version)
		if p == nil {
			messages = append(messages, fmt.Sprintf("product %s is not installed", k))
			continue
		}
		if !eligibility.IsRemovableProduct(local, p) {
			messages = append(messages, fmt.Sprintf("product %s cannot be removed: %s", k, removalBlocker(local, p)))
			continue
		}
		removeProducts = append(removeProducts, p)
		deactivate.Add(models.KindProduct, k)
		for _, e := range p.Entries {
			v := e.Version
			comp := local.GetComponent(e.ID, &v)
			if comp == nil || local.IsDangling(comp) {
				continue
			}
			if eligibility.IsRemovableComponent(local, comp, p) {
				queueComponent(comp)
			}
		}
	}

	for _, s := range components {
		k, err := models.ParseKey(s)
		if err != nil {
			messages = append(messages, fmt.Sprintf("invalid component key %q", s))
			continue
		}
		comp := local.GetComponent(k.ID, &k.Version)
		if comp == nil {
			messages = append(messages, fmt.Sprintf("component %s is not installed", k))
			continue
		}
		if seen[k.String()] {
			continue
		}
		if !eligibility.IsRemovableComponent(local, comp, nil) && !containedOnlyBy(local, comp, removeProducts) {
			messages = append(messages, fmt.Sprintf("component %s cannot be removed: still contained by %s",
				k, productKeys(local.ContainingProducts(comp))))
			continue
		}
		queueComponent(comp)
	}

	if err := c.manager.Deactivate(ctx, deactivate); err != nil {
		return messages, err
	}
	for _, comp := range removeComponents {
		if _, err := c.manager.RemoveComponentFromLocal(ctx, comp.Key()); err != nil {
			return messages, err
		}
	}
	for _, p := range removeProducts {
		if _, err := c.manager.RemoveProductFromLocal(ctx, p.Key()); err != nil {
			return messages, err
		}
	}
	collected, err := c.manager.CollectGarbage(ctx)
	if err != nil {
		return messages, err
	}

	logger.Info("Uninstall completed",
		"products_removed", len(removeProducts),
		"components_removed", len(removeComponents),
		"plugins_collected", len(collected.Plugins),
		"fragments_collected", len(collected.Fragments),
		"rejected", len(messages),
		"duration_ms", time.Since(start).Milliseconds())
	return messages, nil
}

// UninstallFrom reads a configurations/components properties request from r
func (c *Coordinator) UninstallFrom(ctx context.Context, r io.Reader) ([]string, error) {
	req, err := manifest.ReadUninstallRequest(r)
	if err != nil {
		return nil, err
	}
	return c.Uninstall(ctx, req.Products, req.Components)
}

func conflictMessage(kind models.Kind, k models.Key, refs []models.Ref, result eligibility.Result) string {
	return fmt.Sprintf("%s %s conflicts with installed %s: %s", kind, k, refs[0], result)
}

func removalBlocker(g *registry.Registry, p *models.Product) string {
	if p.Application != "" && p.Application == g.DominantApplication() {
		return fmt.Sprintf("it provides the running application %s", p.Application)
	}
	for _, e := range p.Entries {
		v := e.Version
		comp := g.GetComponent(e.ID, &v)
		if comp == nil || g.IsDangling(comp) {
			continue
		}
		if !eligibility.IsRemovableComponent(g, comp, p) {
			return fmt.Sprintf("component %s is shared with %s", comp.Key(), productKeys(g.ContainingProducts(comp)))
		}
	}
	return "not removable"
}

// containedOnlyBy reports whether every product containing comp is being
// removed in the same call
func containedOnlyBy(g *registry.Registry, comp *models.Component, removing []*models.Product) bool {
	for _, p := range g.ContainingProducts(comp) {
		found := false
		for _, r := range removing {
			if r.Key().Equal(p.Key()) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func productKeys(products []*models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Key().String()
	}
	return out
}

// subtract returns the keys of set not listed in minus
func subtract(set, minus models.KeySet) models.KeySet {
	var out models.KeySet
	for _, kind := range []models.Kind{models.KindProduct, models.KindComponent, models.KindPlugin, models.KindFragment} {
		for _, k := range set.Keys(kind) {
			if !minus.Contains(kind, k) && !out.Contains(kind, k) {
				out.Add(kind, k)
			}
		}
	}
	return out
}

// newestProducts keeps the latest version per id, in first-seen id order
func newestProducts(in []*models.Product) []*models.Product {
	return newest(in, func(p *models.Product) (string, version.Identifier) { return p.ID, p.Version })
}

// newestComponents keeps the latest version per id, in first-seen id order
func newestComponents(in []*models.Component) []*models.Component {
	return newest(in, func(c *models.Component) (string, version.Identifier) { return c.ID, c.Version })
}

func newest[T any](in []T, ident func(T) (string, version.Identifier)) []T {
	index := make(map[string]int)
	var out []T
	for _, item := range in {
		id, v := ident(item)
		i, ok := index[id]
		if !ok {
			index[id] = len(out)
			out = append(out, item)
			continue
		}
		if _, current := ident(out[i]); version.Newer(v, current) {
			out[i] = item
		}
	}
	return out
}
