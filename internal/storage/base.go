package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/criteo/install-registry/internal/models"
)

// BaseStorage provides the in-memory activation record shared by all storage
// backends. It handles locking and data manipulation. Concrete backends
// (FileStorage, BlobStorage) embed this and provide their own persistence.
type BaseStorage struct {
	mu     sync.RWMutex
	data   *models.ActivationState
	logger *slog.Logger
}

// NewBaseStorage creates a new BaseStorage with an empty record
func NewBaseStorage(logger *slog.Logger) *BaseStorage {
	return &BaseStorage{
		data:   models.NewActivationState(),
		logger: logger,
	}
}

// PersistFunc is a callback function that backends implement for persistence.
// It is called with the lock held.
type PersistFunc func() error

// SetData sets the in-memory record (used by backends after loading)
func (b *BaseStorage) SetData(data *models.ActivationState) {
	data.Normalize()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
}

// Snapshot returns a copy of the current record
func (b *BaseStorage) Snapshot() *models.ActivationState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Clone()
}

// MarshalData serializes the record to JSON.
// NOTE: Caller must NOT hold the lock - this method acquires its own lock.
func (b *BaseStorage) MarshalData() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.marshalDataLocked()
}

// marshalDataLocked serializes data without acquiring lock.
// Caller MUST hold at least a read lock.
func (b *BaseStorage) marshalDataLocked() ([]byte, error) {
	return json.MarshalIndent(b.data, "", "  ")
}

// UnmarshalData deserializes a JSON record into storage
func (b *BaseStorage) UnmarshalData(jsonData []byte) error {
	var data models.ActivationState
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return err
	}
	b.SetData(&data)
	return nil
}

// ActiveProducts returns the active product keys
func (b *BaseStorage) ActiveProducts() []models.Key {
	return b.active(models.KindProduct)
}

// ActiveComponents returns the active component keys
func (b *BaseStorage) ActiveComponents() []models.Key {
	return b.active(models.KindComponent)
}

// ActivePlugins returns the active plugin keys
func (b *BaseStorage) ActivePlugins() []models.Key {
	return b.active(models.KindPlugin)
}

// ActiveFragments returns the active fragment keys
func (b *BaseStorage) ActiveFragments() []models.Key {
	return b.active(models.KindFragment)
}

func (b *BaseStorage) active(kind models.Kind) []models.Key {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parseKeys(kind, *b.data.List(kind))
}

func (b *BaseStorage) parseKeys(kind models.Kind, entries []string) []models.Key {
	keys := make([]models.Key, 0, len(entries))
	for _, s := range entries {
		k, err := models.ParseKey(s)
		if err != nil {
			b.logger.Warn("Ignoring malformed activation entry",
				"kind", kind,
				"entry", s,
				"error", err)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// SetActive adds k to the active list of kind.
// The persist callback is called after the in-memory operation succeeds.
// If persist fails, the in-memory change is rolled back.
func (b *BaseStorage) SetActive(ctx context.Context, kind models.Kind, k models.Key, persist PersistFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.data.List(kind)
	if list == nil {
		return fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	entry := k.String()
	if slices.Contains(*list, entry) {
		return nil
	}

	previous := b.data.Clone()
	*list = append(*list, entry)

	if err := b.persistLocked(persist, previous, "set_active", "key", entry); err != nil {
		return err
	}

	b.logger.Debug("Activated", "kind", kind, "key", entry)
	return nil
}

// SetInactive removes every key of keys in one write.
// The persist callback is called after the in-memory operation succeeds.
func (b *BaseStorage) SetInactive(ctx context.Context, keys models.KeySet, persist PersistFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.data.Clone()
	removed := 0
	for _, kind := range []models.Kind{models.KindProduct, models.KindComponent, models.KindPlugin, models.KindFragment} {
		drop := models.Strings(keys.Keys(kind))
		if len(drop) == 0 {
			continue
		}
		list := b.data.List(kind)
		before := len(*list)
		*list = slices.DeleteFunc(*list, func(s string) bool { return slices.Contains(drop, s) })
		removed += before - len(*list)
		if kind == models.KindComponent {
			b.data.Dangling = slices.DeleteFunc(b.data.Dangling, func(s string) bool { return slices.Contains(drop, s) })
		}
	}
	if removed == 0 {
		return nil
	}

	if err := b.persistLocked(persist, previous, "set_inactive", "removed", removed); err != nil {
		return err
	}

	b.logger.Debug("Deactivated", "removed", removed)
	return nil
}

// IsDangling returns the dangling flag of component k, updating it first when
// mark is non-nil.
// The persist callback is only called when the flag changes.
func (b *BaseStorage) IsDangling(k models.Key, mark *bool, persist PersistFunc) (bool, error) {
	entry := k.String()
	if mark == nil {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return slices.Contains(b.data.Dangling, entry), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := slices.Contains(b.data.Dangling, entry)
	if current == *mark {
		return current, nil
	}

	previous := b.data.Clone()
	if *mark {
		b.data.Dangling = append(b.data.Dangling, entry)
	} else {
		b.data.Dangling = slices.DeleteFunc(b.data.Dangling, func(s string) bool { return s == entry })
	}

	if err := b.persistLocked(persist, previous, "mark_dangling", "key", entry); err != nil {
		return current, err
	}

	b.logger.Debug("Dangling flag updated", "key", entry, "dangling", *mark)
	return *mark, nil
}

// GarbageCollect drops plugin and fragment activations missing from live.
// The persist callback is called after the in-memory operation succeeds.
func (b *BaseStorage) GarbageCollect(ctx context.Context, live models.KeySet, persist PersistFunc) (models.KeySet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.data.Clone()
	var removed models.KeySet
	for _, kind := range []models.Kind{models.KindPlugin, models.KindFragment} {
		keep := models.Strings(live.Keys(kind))
		list := b.data.List(kind)
		var kept []string
		for _, s := range *list {
			if slices.Contains(keep, s) {
				kept = append(kept, s)
				continue
			}
			if k, err := models.ParseKey(s); err == nil {
				removed.Add(kind, k)
			}
		}
		if kept == nil {
			kept = []string{}
		}
		*list = kept
	}
	if len(b.data.Plugins) == len(previous.Plugins) && len(b.data.Fragments) == len(previous.Fragments) {
		return removed, nil
	}

	if err := b.persistLocked(persist, previous, "garbage_collect",
		"plugins", len(removed.Plugins),
		"fragments", len(removed.Fragments)); err != nil {
		return models.KeySet{}, err
	}

	b.logger.Info("Activation record collected",
		"plugins_removed", len(removed.Plugins),
		"fragments_removed", len(removed.Fragments))
	return removed, nil
}

// DominantApplication returns the application id of the running product
func (b *BaseStorage) DominantApplication() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Application
}

// SetDominantApplication records the application id of the running product.
// The persist callback is called after the in-memory operation succeeds.
func (b *BaseStorage) SetDominantApplication(ctx context.Context, app string, persist PersistFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data.Application == app {
		return nil
	}
	previous := b.data.Clone()
	b.data.Application = app

	return b.persistLocked(persist, previous, "set_application", "application", app)
}

// persistLocked runs persist and restores previous when it fails.
// Caller MUST hold the write lock.
func (b *BaseStorage) persistLocked(persist PersistFunc, previous *models.ActivationState, op string, attrs ...any) error {
	if persist == nil {
		return nil
	}
	if err := persist(); err != nil {
		b.data = previous
		b.logger.Error("Storage write failed",
			append([]any{"operation", op, "error", err}, attrs...)...)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
