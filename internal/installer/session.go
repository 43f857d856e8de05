package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/criteo/install-registry/internal/eligibility"
	"github.com/criteo/install-registry/internal/manager"
	"github.com/criteo/install-registry/internal/metrics"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/registry"
)

// View names accepted by the listing calls
const (
	ViewCurrent = "current"
	ViewLocal   = "local"
)

var (
	// ErrNotFound is returned when a key is not in the requested view
	ErrNotFound = errors.New("not found")

	// ErrUnknownView is returned for a view other than current or local
	ErrUnknownView = errors.New("unknown view")

	// ErrSourceUnavailable is returned when an install source cannot be read
	ErrSourceUnavailable = errors.New("install source unavailable")
)

// Session is the entry point to one installation tree. Every call holds the
// session lock, so callers from several goroutines are serialized.
type Session struct {
	mu          sync.Mutex
	manager     *manager.Manager
	coordinator *Coordinator
	logger      *slog.Logger
}

// NewSession creates a session over m. rec may be nil.
func NewSession(m *manager.Manager, rec *metrics.Recorder, logger *slog.Logger) *Session {
	return &Session{
		manager:     m,
		coordinator: NewCoordinator(m, rec, logger),
		logger:      logger,
	}
}

// Refresh reloads the installation tree
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.Refresh(ctx)
}

// Install resolves the product and component keys in source, or in the local
// tree when source is empty, and installs them. Keys that cannot be resolved
// are reported as messages.
func (s *Session) Install(ctx context.Context, source string, products, components []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.source(ctx, source)
	if err != nil {
		return nil, err
	}

	var messages []string
	var candidateProducts []*models.Product
	for _, str := range products {
		k, err := models.ParseKey(str)
		if err != nil {
			messages = append(messages, fmt.Sprintf("invalid product key %q", str))
			continue
		}
		p := from.GetProduct(k.ID, &k.Version)
		if p == nil {
			messages = append(messages, fmt.Sprintf("product %s not found in %s", k, from.BaseURL()))
			continue
		}
		candidateProducts = append(candidateProducts, p)
	}

	var candidateComponents []*models.Component
	for _, str := range components {
		k, err := models.ParseKey(str)
		if err != nil {
			messages = append(messages, fmt.Sprintf("invalid component key %q", str))
			continue
		}
		c := from.GetComponent(k.ID, &k.Version)
		if c == nil {
			messages = append(messages, fmt.Sprintf("component %s not found in %s", k, from.BaseURL()))
			continue
		}
		candidateComponents = append(candidateComponents, c)
	}

	conflicts, err := s.coordinator.Install(ctx, candidateProducts, candidateComponents)
	return append(messages, conflicts...), err
}

// Uninstall removes products and components given by key
func (s *Session) Uninstall(ctx context.Context, products, components []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.Uninstall(ctx, products, components)
}

// UninstallFrom removes what the properties request in r lists
func (s *Session) UninstallFrom(ctx context.Context, r io.Reader) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.UninstallFrom(ctx, r)
}

// Discover looks for newer versions on the update sites of the tree
func (s *Session) Discover(ctx context.Context) (*manager.DownloadList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.Discover(ctx)
}

// Check is the outcome of checking one candidate against the current view
type Check struct {
	Ref         models.Ref         `json:"ref" yaml:"ref"`
	Result      eligibility.Result `json:"result" yaml:"result"`
	Conflicting []models.Ref       `json:"conflicting,omitempty" yaml:"conflicting,omitempty"`
	Updateable  bool               `json:"updateable" yaml:"updateable"`
	Removable   bool               `json:"removable" yaml:"removable"`
}

// Check evaluates installing the entity kind/key of source (the local tree
// when empty) over the current installation
func (s *Session) Check(ctx context.Context, source string, kind models.Kind, key string) (*Check, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, err := models.ParseKey(key)
	if err != nil {
		return nil, err
	}
	from, err := s.source(ctx, source)
	if err != nil {
		return nil, err
	}
	current, err := s.manager.Current(ctx)
	if err != nil {
		return nil, err
	}
	local, err := s.manager.Local(ctx)
	if err != nil {
		return nil, err
	}

	check := &Check{Ref: models.Ref{Kind: kind, Key: k}}
	switch kind {
	case models.KindProduct:
		p := from.GetProduct(k.ID, &k.Version)
		if p == nil {
			return nil, fmt.Errorf("%w: product %s in %s", ErrNotFound, k, from.BaseURL())
		}
		check.Conflicting, check.Result = current.ConflictingProduct(p)
		// updateable describes the installation the candidate would replace
		check.Updateable = true
		if installed := current.GetProduct(k.ID, nil); installed != nil {
			check.Updateable = eligibility.IsUpdateableProduct(installed)
		}
		if installed := local.GetProduct(k.ID, &k.Version); installed != nil {
			check.Removable = eligibility.IsRemovableProduct(local, installed)
		}
	case models.KindComponent:
		c := from.GetComponent(k.ID, &k.Version)
		if c == nil {
			return nil, fmt.Errorf("%w: component %s in %s", ErrNotFound, k, from.BaseURL())
		}
		check.Conflicting, check.Result = current.ConflictingComponent(c)
		if installed := local.GetComponent(k.ID, &k.Version); installed != nil {
			check.Updateable = eligibility.IsUpdateableComponent(local, installed)
			check.Removable = eligibility.IsRemovableComponent(local, installed, nil)
		} else {
			check.Updateable = true
		}
	default:
		return nil, fmt.Errorf("cannot check %s entries", kind)
	}
	return check, nil
}

// Products lists the products of view
func (s *Session) Products(ctx context.Context, view string) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch view {
	case ViewCurrent, "":
		current, err := s.manager.Current(ctx)
		if err != nil {
			return nil, err
		}
		return current.Products(), nil
	case ViewLocal:
		local, err := s.manager.Local(ctx)
		if err != nil {
			return nil, err
		}
		return local.Products(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
}

// Components lists the components of view
func (s *Session) Components(ctx context.Context, view string) ([]*models.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch view {
	case ViewCurrent, "":
		current, err := s.manager.Current(ctx)
		if err != nil {
			return nil, err
		}
		return current.Components(), nil
	case ViewLocal:
		local, err := s.manager.Local(ctx)
		if err != nil {
			return nil, err
		}
		return local.Components(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
}

// Product returns one product of the local tree
func (s *Session) Product(ctx context.Context, key string) (*models.Product, error) {
	k, err := models.ParseKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	local, err := s.manager.Local(ctx)
	if err != nil {
		return nil, err
	}
	p := local.GetProduct(k.ID, &k.Version)
	if p == nil {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, k)
	}
	return p, nil
}

// Component returns one component of the local tree
func (s *Session) Component(ctx context.Context, key string) (*models.Component, error) {
	k, err := models.ParseKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	local, err := s.manager.Local(ctx)
	if err != nil {
		return nil, err
	}
	c := local.GetComponent(k.ID, &k.Version)
	if c == nil {
		return nil, fmt.Errorf("%w: component %s", ErrNotFound, k)
	}
	return c, nil
}

// Dangling lists the local components no product contains, flagging them in
// the activation record when needed
func (s *Session) Dangling(ctx context.Context) ([]*models.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	local, err := s.manager.Local(ctx)
	if err != nil {
		return nil, err
	}
	return local.DanglingComponents(ctx)
}

// Activation returns a copy of the activation record
func (s *Session) Activation() *models.ActivationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.Store().Snapshot()
}

// SetDominantApplication records the application id of the running product.
// A product providing it cannot be removed.
func (s *Session) SetDominantApplication(ctx context.Context, app string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.Store().SetDominantApplication(ctx, app)
}

// source returns the remote registry at url, or the local arena
func (s *Session) source(ctx context.Context, url string) (*registry.Registry, error) {
	if url == "" {
		return s.manager.Local(ctx)
	}
	remote, err := s.manager.Remote(ctx, url)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, url)
	}
	return remote, nil
}
