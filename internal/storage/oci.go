package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// OCI timeout constants
const (
	OCIPushTimeout = 60 * time.Second
	OCIPullTimeout = 30 * time.Second
)

// OCI media types for the activation record artifact
const (
	OCIConfigMediaType  = "application/vnd.oci.image.config.v1+json"
	OCILayerMediaType   = "application/json"
	OCIArtifactTitle    = "activation.json"
	OCIFormatAnnotation = "io.umreg.activation.version"
)

// OCIClient stores the activation record as a single-layer artifact tagged
// latest in an OCI repository
type OCIClient struct {
	repository *remote.Repository
	reference  string // Full reference "registry/repo:latest"
	logger     *slog.Logger
}

// NewOCIClient creates a new OCI client for the given reference and token.
// The token is sent as the password of a "token" user.
func NewOCIClient(reference string, token string, logger *slog.Logger) (*OCIClient, error) {
	repo, err := remote.NewRepository(reference)
	if err != nil {
		return nil, CategorizeOCIError(OpConnect, fmt.Errorf("invalid OCI reference %q: %w", reference, err))
	}

	if token != "" {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Credential: auth.StaticCredential(repo.Reference.Registry, auth.Credential{
				Username: "token",
				Password: token,
			}),
		}
	}

	logger.Info("OCI client created",
		"reference", reference,
		"has_token", token != "")

	return &OCIClient{
		repository: repo,
		reference:  reference,
		logger:     logger,
	}, nil
}

// Location implements BlobClient
func (c *OCIClient) Location() string {
	return c.reference
}

// Download implements BlobClient by pulling the artifact and returning its
// first layer
func (c *OCIClient) Download(ctx context.Context) ([]byte, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, OCIPullTimeout)
	defer cancel()

	store := memory.New()
	desc, err := oras.Copy(ctx, c.repository, c.repository.Reference.Reference, store, "", oras.DefaultCopyOptions)
	if err != nil {
		c.logger.Error("OCI pull failed",
			"reference", c.reference,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, CategorizeOCIError(OpDownload, err)
	}

	manifestJSON, err := fetchAll(ctx, store, desc)
	if err != nil {
		return nil, CategorizeOCIError(OpDownload, fmt.Errorf("failed to fetch manifest: %w", err))
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, CategorizeOCIError(OpDownload, fmt.Errorf("failed to parse manifest: %w", err))
	}
	if len(manifest.Layers) == 0 {
		return nil, CategorizeOCIError(OpDownload, fmt.Errorf("artifact has no layers"))
	}

	data, err := fetchAll(ctx, store, manifest.Layers[0])
	if err != nil {
		return nil, CategorizeOCIError(OpDownload, fmt.Errorf("failed to fetch data layer: %w", err))
	}

	c.logger.Debug("OCI pull completed",
		"reference", c.reference,
		"size_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return data, nil
}

// Upload implements BlobClient by pushing a new single-layer artifact and
// moving the latest tag to it
func (c *OCIClient) Upload(ctx context.Context, data []byte) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, OCIPushTimeout)
	defer cancel()

	store := memory.New()

	configData := []byte("{}")
	configDesc := ocispec.Descriptor{
		MediaType: OCIConfigMediaType,
		Digest:    digest.FromBytes(configData),
		Size:      int64(len(configData)),
	}
	layerDesc := ocispec.Descriptor{
		MediaType: OCILayerMediaType,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
		Annotations: map[string]string{
			ocispec.AnnotationTitle: OCIArtifactTitle,
		},
	}

	manifest := ocispec.Manifest{
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    configDesc,
		Layers:    []ocispec.Descriptor{layerDesc},
		Annotations: map[string]string{
			ocispec.AnnotationCreated: time.Now().UTC().Format(time.RFC3339),
			OCIFormatAnnotation:       "1",
		},
	}
	manifest.SchemaVersion = 2
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return CategorizeOCIError(OpUpload, fmt.Errorf("failed to marshal manifest: %w", err))
	}
	manifestDesc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    digest.FromBytes(manifestJSON),
		Size:      int64(len(manifestJSON)),
	}

	blobs := []struct {
		desc ocispec.Descriptor
		data []byte
	}{
		{configDesc, configData},
		{layerDesc, data},
		{manifestDesc, manifestJSON},
	}
	for _, b := range blobs {
		if err := store.Push(ctx, b.desc, bytes.NewReader(b.data)); err != nil {
			return CategorizeOCIError(OpUpload, fmt.Errorf("failed to stage %s: %w", b.desc.MediaType, err))
		}
	}
	if err := store.Tag(ctx, manifestDesc, c.repository.Reference.Reference); err != nil {
		return CategorizeOCIError(OpUpload, fmt.Errorf("failed to tag manifest: %w", err))
	}

	if _, err := oras.Copy(ctx, store, c.repository.Reference.Reference, c.repository, "", oras.DefaultCopyOptions); err != nil {
		c.logger.Error("OCI push failed",
			"reference", c.reference,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return CategorizeOCIError(OpUpload, err)
	}

	c.logger.Debug("OCI push completed",
		"reference", c.reference,
		"size_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Exists implements BlobClient
func (c *OCIClient) Exists(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OCIPullTimeout)
	defer cancel()

	_, err := c.repository.Resolve(ctx, c.repository.Reference.Reference)
	if err == nil {
		return true, nil
	}
	if isOCINotFound(err.Error()) {
		return false, nil
	}
	c.logger.Error("OCI existence check failed",
		"reference", c.reference,
		"error", err)
	return false, CategorizeOCIError(OpConnect, err)
}

// isOCINotFound recognizes the "not found" shapes oras-go reports
func isOCINotFound(errStr string) bool {
	return containsHTTPStatus(errStr, 404) ||
		strings.HasSuffix(errStr, ": not found") ||
		strings.Contains(errStr, "NOT_FOUND") ||
		strings.Contains(errStr, "NAME_UNKNOWN") ||
		strings.Contains(errStr, "MANIFEST_UNKNOWN")
}

func fetchAll(ctx context.Context, store *memory.Store, desc ocispec.Descriptor) ([]byte, error) {
	rc, err := store.Fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// NewOCIStorage creates an activation record stored as an OCI artifact.
// The uri should be a parsed OCI StorageURI (oci://registry/repo).
func NewOCIStorage(uri *StorageURI, token string, logger *slog.Logger) (*BlobStorage, error) {
	if !uri.IsOCIScheme() {
		return nil, fmt.Errorf("expected OCI URI, got scheme: %s", uri.Scheme)
	}

	client, err := NewOCIClient(uri.OCIReference(), token, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCI client: %w", err)
	}
	return NewBlobStorage(client, logger)
}
