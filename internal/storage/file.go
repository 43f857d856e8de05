package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/criteo/install-registry/internal/models"
)

// FileStorage keeps the activation record in a local JSON file
type FileStorage struct {
	*BaseStorage
	filePath string
}

// NewFileStorage creates a new file-based storage.
// The token parameter is accepted but ignored for file storage (for interface compatibility)
func NewFileStorage(filePath string, token string, logger *slog.Logger) (*FileStorage, error) {
	if token != "" {
		logger.Warn("Storage token provided but file storage does not use authentication",
			"file_path", filePath)
	}

	fs := &FileStorage{
		BaseStorage: NewBaseStorage(logger),
		filePath:    filePath,
	}

	if err := fs.load(); err != nil {
		return nil, fmt.Errorf("failed to load storage: %w", err)
	}

	return fs, nil
}

// load reads the record from file or creates an empty one
func (fs *FileStorage) load() error {
	fileData, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		fs.logger.Info("Activation record not found, creating empty record",
			"file_path", fs.filePath)

		if err := os.MkdirAll(filepath.Dir(fs.filePath), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if err := fs.saveToFile(); err != nil {
			return fmt.Errorf("failed to create storage file: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read storage file: %w", err)
	}

	if err := fs.UnmarshalData(fileData); err != nil {
		return fmt.Errorf("failed to parse storage file (invalid JSON syntax): %w", err)
	}

	snapshot := fs.Snapshot()
	fs.logger.Info("Activation record loaded",
		"file_path", fs.filePath,
		"products", len(snapshot.Products),
		"components", len(snapshot.Components))
	return nil
}

// saveToFile writes data to file atomically (temp file + rename).
// Caller MUST hold the lock.
func (fs *FileStorage) saveToFile() error {
	jsonData, err := fs.marshalDataLocked()
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	dir := filepath.Dir(fs.filePath)
	tempFile, err := os.CreateTemp(dir, ".activation-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	// Ensure temp file cleanup on error
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tempFile = nil // Prevent deferred cleanup

	if err := os.Rename(tempPath, fs.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SetActive marks k active
func (fs *FileStorage) SetActive(ctx context.Context, kind models.Kind, k models.Key) error {
	return fs.BaseStorage.SetActive(ctx, kind, k, fs.saveToFile)
}

// SetInactive removes keys from the record
func (fs *FileStorage) SetInactive(ctx context.Context, keys models.KeySet) error {
	return fs.BaseStorage.SetInactive(ctx, keys, fs.saveToFile)
}

// IsDangling queries and optionally updates the dangling flag of k
func (fs *FileStorage) IsDangling(k models.Key, mark *bool) (bool, error) {
	return fs.BaseStorage.IsDangling(k, mark, fs.saveToFile)
}

// GarbageCollect drops plugin and fragment activations missing from live
func (fs *FileStorage) GarbageCollect(ctx context.Context, live models.KeySet) (models.KeySet, error) {
	return fs.BaseStorage.GarbageCollect(ctx, live, fs.saveToFile)
}

// SetDominantApplication records the running application id
func (fs *FileStorage) SetDominantApplication(ctx context.Context, app string) error {
	return fs.BaseStorage.SetDominantApplication(ctx, app, fs.saveToFile)
}

// Close closes the storage (no-op for file storage)
func (fs *FileStorage) Close() error {
	return nil
}
