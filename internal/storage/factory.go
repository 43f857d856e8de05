package storage

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrTokenRequired is returned when a storage scheme requires a token but none was provided
	ErrTokenRequired = errors.New("storage token required")
)

// NewStorage creates the activation record backend matching the URI scheme:
//   - file:// -> FileStorage
//   - oci:// -> BlobStorage over an OCI artifact (requires token)
//   - s3:// or s3+http:// -> BlobStorage over an S3 object
func NewStorage(uri *StorageURI, token string, logger *slog.Logger) (Store, error) {
	switch {
	case uri.IsFileScheme():
		return NewFileStorage(uri.Path, token, logger)

	case uri.IsOCIScheme():
		if token == "" {
			return nil, fmt.Errorf("%w: OCI storage requires authentication token (--storage-token or UMREG_STORAGE_TOKEN)", ErrTokenRequired)
		}
		return NewOCIStorage(uri, token, logger)

	case uri.IsS3Scheme():
		// credentials are optional, IAM roles work without them
		return NewS3Storage(uri, token, logger)

	default:
		return nil, fmt.Errorf("unsupported storage scheme: %s", uri.Scheme)
	}
}
