package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/criteo/install-registry/internal/models"
)

// BlobClient moves the whole activation record document to and from a remote
// object store
type BlobClient interface {
	Exists(ctx context.Context) (bool, error)
	Download(ctx context.Context) ([]byte, error)
	Upload(ctx context.Context, data []byte) error
	Location() string
}

// BlobStorage keeps the activation record as a single remote object. It
// embeds BaseStorage for the in-memory record and uploads the full document
// on every mutation.
type BlobStorage struct {
	*BaseStorage
	client BlobClient
}

// NewBlobStorage loads the record through client, pushing an empty one when
// the object does not exist yet
func NewBlobStorage(client BlobClient, logger *slog.Logger) (*BlobStorage, error) {
	s := &BlobStorage{
		BaseStorage: NewBaseStorage(logger),
		client:      client,
	}
	if err := s.load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BlobStorage) load(ctx context.Context) error {
	exists, err := s.client.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check activation record existence: %w", err)
	}

	if !exists {
		s.logger.Info("Activation record does not exist, initializing empty record",
			"location", s.client.Location())
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.persist(); err != nil {
			return fmt.Errorf("failed to initialize activation record: %w", err)
		}
		return nil
	}

	data, err := s.client.Download(ctx)
	if err != nil {
		return fmt.Errorf("failed to download activation record: %w", err)
	}
	if err := s.UnmarshalData(data); err != nil {
		return fmt.Errorf("failed to parse activation record (corrupted JSON): %w", err)
	}

	snapshot := s.Snapshot()
	s.logger.Info("Activation record loaded",
		"location", s.client.Location(),
		"products", len(snapshot.Products),
		"components", len(snapshot.Components))
	return nil
}

// persist uploads the complete record.
// NOTE: This is called while BaseStorage holds the lock,
// so we use marshalDataLocked() to avoid deadlock.
func (s *BlobStorage) persist() error {
	data, err := s.marshalDataLocked()
	if err != nil {
		return fmt.Errorf("failed to marshal activation record: %w", err)
	}
	return s.client.Upload(context.Background(), data)
}

// SetActive marks k active
func (s *BlobStorage) SetActive(ctx context.Context, kind models.Kind, k models.Key) error {
	return s.BaseStorage.SetActive(ctx, kind, k, s.persist)
}

// SetInactive removes keys from the record
func (s *BlobStorage) SetInactive(ctx context.Context, keys models.KeySet) error {
	return s.BaseStorage.SetInactive(ctx, keys, s.persist)
}

// IsDangling queries and optionally updates the dangling flag of k
func (s *BlobStorage) IsDangling(k models.Key, mark *bool) (bool, error) {
	return s.BaseStorage.IsDangling(k, mark, s.persist)
}

// GarbageCollect drops plugin and fragment activations missing from live
func (s *BlobStorage) GarbageCollect(ctx context.Context, live models.KeySet) (models.KeySet, error) {
	return s.BaseStorage.GarbageCollect(ctx, live, s.persist)
}

// SetDominantApplication records the running application id
func (s *BlobStorage) SetDominantApplication(ctx context.Context, app string) error {
	return s.BaseStorage.SetDominantApplication(ctx, app, s.persist)
}

// Close closes the storage (no-op for remote objects)
func (s *BlobStorage) Close() error {
	return nil
}
