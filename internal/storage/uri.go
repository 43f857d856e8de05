package storage

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// SupportedSchemes lists all supported storage URI schemes
var SupportedSchemes = []string{"file", "s3", "s3+http", "oci"}

// StorageURI represents a parsed storage backend URI
type StorageURI struct {
	Scheme string // Storage backend type (e.g., "file", "s3", "oci")
	Host   string // Host for network backends (optional for file://)
	Path   string // Path to storage resource
	Query  url.Values
	Raw    string // Original URI string for logging/debugging
}

// NormalizeStorageURI ensures the URI has a scheme, prepending "file://" if missing
func NormalizeStorageURI(uri string) string {
	if uri == "" {
		return uri
	}
	if !strings.Contains(uri, "://") {
		return "file://" + uri
	}
	return uri
}

// ParseStorageURI parses a storage URI string into its components
func ParseStorageURI(uri string) (*StorageURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("storage URI cannot be empty")
	}

	parsed, err := url.Parse(NormalizeStorageURI(uri))
	if err != nil {
		return nil, fmt.Errorf("invalid URI format: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("URI must have a scheme (e.g., file://)")
	}
	if !slices.Contains(SupportedSchemes, parsed.Scheme) {
		return nil, fmt.Errorf("unsupported storage scheme %q; supported schemes: %s",
			parsed.Scheme, strings.Join(SupportedSchemes, ", "))
	}

	switch parsed.Scheme {
	case "oci":
		return parseOCIURI(uri, parsed)
	case "s3", "s3+http":
		return parseS3URI(uri, parsed)
	default:
		return parseFileURI(uri, parsed)
	}
}

func parseFileURI(raw string, parsed *url.URL) (*StorageURI, error) {
	path := parsed.Path
	if path == "" && parsed.Opaque != "" {
		path = parsed.Opaque
	}
	switch {
	case parsed.Host == "." && strings.HasPrefix(path, "/"):
		path = "./" + strings.TrimPrefix(path, "/")
	case len(parsed.Host) == 1 && path != "":
		// Windows drive letter: file://C:/path
		path = parsed.Host + ":" + path
	}

	if path == "" {
		return nil, fmt.Errorf("storage URI must have a path")
	}
	return &StorageURI{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   path,
		Raw:    raw,
	}, nil
}

func parseOCIURI(raw string, parsed *url.URL) (*StorageURI, error) {
	if parsed.RawQuery != "" {
		return nil, fmt.Errorf("OCI URI does not support query parameters")
	}
	if parsed.Fragment != "" {
		return nil, fmt.Errorf("OCI URI does not support fragments")
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("OCI URI must include registry host: oci://<registry>/<repository>")
	}
	path := strings.TrimPrefix(parsed.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("OCI URI must include repository path: oci://<registry>/<repository>")
	}
	// the latest tag is always used
	if idx := strings.LastIndex(path, ":"); idx > 0 {
		path = path[:idx]
	}
	return &StorageURI{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   path,
		Raw:    raw,
	}, nil
}

func parseS3URI(raw string, parsed *url.URL) (*StorageURI, error) {
	if parsed.Fragment != "" {
		return nil, fmt.Errorf("S3 URI does not support fragments")
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("S3 URI must include endpoint host: s3://<endpoint>/<bucket>/<key>")
	}
	query := parsed.Query()
	for name := range query {
		if name != "region" {
			return nil, fmt.Errorf("S3 URI does not support query parameter %q (only region)", name)
		}
	}
	path := strings.TrimPrefix(parsed.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("S3 URI must include bucket and path: s3://<endpoint>/<bucket>/<key>")
	}
	bucket, key, _ := strings.Cut(path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("S3 URI must include object key path: s3://<endpoint>/<bucket>/<key>")
	}
	return &StorageURI{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   path,
		Query:  query,
		Raw:    raw,
	}, nil
}

// IsFileScheme returns true if this is a file:// URI
func (u *StorageURI) IsFileScheme() bool {
	return u.Scheme == "file"
}

// IsOCIScheme returns true if this is an oci:// URI
func (u *StorageURI) IsOCIScheme() bool {
	return u.Scheme == "oci"
}

// IsS3Scheme returns true for s3:// and s3+http:// URIs
func (u *StorageURI) IsS3Scheme() bool {
	return u.Scheme == "s3" || u.Scheme == "s3+http"
}

// OCIReference returns the OCI reference string "registry/repository:latest"
func (u *StorageURI) OCIReference() string {
	return fmt.Sprintf("%s/%s:latest", u.Host, u.Path)
}

// S3Endpoint returns the S3 endpoint host (with port)
func (u *StorageURI) S3Endpoint() string {
	return u.Host
}

// S3Bucket returns the bucket, the first path segment
func (u *StorageURI) S3Bucket() string {
	bucket, _, _ := strings.Cut(u.Path, "/")
	return bucket
}

// S3Key returns the object key, everything after the bucket
func (u *StorageURI) S3Key() string {
	_, key, _ := strings.Cut(u.Path, "/")
	return key
}

// S3Region returns the region query parameter, if any
func (u *StorageURI) S3Region() string {
	if u.Query == nil {
		return ""
	}
	return u.Query.Get("region")
}

// S3UseSSL is false only for s3+http://
func (u *StorageURI) S3UseSSL() bool {
	return u.Scheme != "s3+http"
}

// String returns the original URI string
func (u *StorageURI) String() string {
	return u.Raw
}
