// Package storage persists the activation record: which products,
// components, plugins and fragments of an installation tree are active, which
// components are tracked as dangling, and the dominant application.
package storage

import (
	"context"
	"errors"

	"github.com/criteo/install-registry/internal/models"
)

var (
	// ErrNotFound is returned when a key is not part of the record
	ErrNotFound = errors.New("resource not found")

	// ErrStorageUnavailable is returned when storage operations fail
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidKind is returned for a kind the record does not track
	ErrInvalidKind = errors.New("invalid activation kind")
)

// Store is the activation record. Reads are served from memory; every
// mutation is persisted before it returns, and rolled back if persisting
// fails.
type Store interface {
	ActiveProducts() []models.Key
	ActiveComponents() []models.Key
	ActivePlugins() []models.Key
	ActiveFragments() []models.Key

	// SetActive marks one key of kind active. Other active versions of the
	// same id stay active.
	SetActive(ctx context.Context, kind models.Kind, k models.Key) error

	// SetInactive removes every listed key in a single write
	SetInactive(ctx context.Context, keys models.KeySet) error

	// IsDangling queries the dangling flag of component k, setting it first
	// when mark is non-nil
	IsDangling(k models.Key, mark *bool) (bool, error)

	// GarbageCollect drops the plugin and fragment activations not listed in
	// live, returning what was dropped
	GarbageCollect(ctx context.Context, live models.KeySet) (models.KeySet, error)

	DominantApplication() string
	SetDominantApplication(ctx context.Context, app string) error

	// Snapshot returns a copy of the whole record
	Snapshot() *models.ActivationState

	// Close closes the storage
	Close() error
}
