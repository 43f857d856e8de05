package storage

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Error categories for remote backends
const (
	CategoryAuth    = "authentication"
	CategoryNetwork = "network"
	CategoryStorage = "storage"
)

// Remote operations for error context
const (
	OpUpload   = "upload"
	OpDownload = "download"
	OpConnect  = "connect"
)

// Backend names
const (
	BackendS3  = "S3"
	BackendOCI = "OCI"
)

// BackendError wraps a remote backend failure with its category
type BackendError struct {
	Backend  string // "S3" or "OCI"
	Category string // "authentication", "network", or "storage"
	Op       string // "upload", "download", or "connect"
	Err      error
}

// Error implements the error interface
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s error during %s: %v", e.Backend, e.Category, e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorageUnavailable
func (e *BackendError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func newBackendError(backend, category, op string, err error) *BackendError {
	return &BackendError{Backend: backend, Category: category, Op: op, Err: err}
}

// networkError maps transport failures shared by both backends; ok is false
// when err is not a transport failure
func networkError(backend, op, target string, err error) (*BackendError, bool) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newBackendError(backend, CategoryNetwork, op, fmt.Errorf("network error: cannot resolve %s hostname", target)), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newBackendError(backend, CategoryNetwork, op, fmt.Errorf("network timeout: unable to reach %s", target)), true
		}
		return newBackendError(backend, CategoryNetwork, op, fmt.Errorf("network error: unable to reach %s", target)), true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return newBackendError(backend, CategoryNetwork, op, fmt.Errorf("network timeout: unable to reach %s", target)), true
		}
		return newBackendError(backend, CategoryNetwork, op, fmt.Errorf("network error: unable to reach %s", target)), true
	}
	return nil, false
}

// CategorizeS3Error classifies an error returned by the MinIO client
func CategorizeS3Error(op string, err error) *BackendError {
	if err == nil {
		return nil
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch minioErr.Code {
		case "AccessDenied":
			return newBackendError(BackendS3, CategoryAuth, op,
				fmt.Errorf("access denied: token lacks required permissions%s", s3AuthHint(minioErr.BucketName)))
		case "InvalidAccessKeyId":
			return newBackendError(BackendS3, CategoryAuth, op, fmt.Errorf("invalid access key: verify credentials are correct"))
		case "SignatureDoesNotMatch":
			return newBackendError(BackendS3, CategoryAuth, op, fmt.Errorf("signature mismatch: verify secret key is correct"))
		case "ExpiredToken":
			return newBackendError(BackendS3, CategoryAuth, op, fmt.Errorf("token expired: refresh credentials"))
		case "NoSuchBucket":
			return newBackendError(BackendS3, CategoryStorage, op, fmt.Errorf("bucket not found: verify bucket exists and name is correct"))
		case "NoSuchKey":
			return newBackendError(BackendS3, CategoryStorage, op, fmt.Errorf("object not found"))
		case "InternalError", "ServiceUnavailable":
			return newBackendError(BackendS3, CategoryStorage, op, fmt.Errorf("S3 service unavailable: %s", minioErr.Message))
		default:
			return newBackendError(BackendS3, CategoryStorage, op, fmt.Errorf("%s: %s", minioErr.Code, minioErr.Message))
		}
	}

	errStr := err.Error()
	for _, code := range []string{"AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken"} {
		if strings.Contains(errStr, code) {
			return newBackendError(BackendS3, CategoryAuth, op, fmt.Errorf("authentication failed: %v%s", err, s3AuthHint(errStr)))
		}
	}

	if netErr, ok := networkError(BackendS3, op, "S3 endpoint", err); ok {
		return netErr
	}

	if strings.Contains(errStr, "NoSuchBucket") {
		return newBackendError(BackendS3, CategoryStorage, op, fmt.Errorf("bucket not found: verify bucket exists and name is correct"))
	}
	return newBackendError(BackendS3, CategoryStorage, op, err)
}

// CategorizeOCIError classifies an error returned by oras-go
func CategorizeOCIError(op string, err error) *BackendError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if containsHTTPStatus(errStr, 401) || strings.Contains(errStr, "UNAUTHORIZED") {
		return newBackendError(BackendOCI, CategoryAuth, op,
			fmt.Errorf("authentication failed: verify storage token is valid%s", registryAuthHint(errStr)))
	}
	if containsHTTPStatus(errStr, 403) || strings.Contains(errStr, "FORBIDDEN") {
		return newBackendError(BackendOCI, CategoryAuth, op,
			fmt.Errorf("access denied: token lacks required permissions%s", registryAuthHint(errStr)))
	}

	if netErr, ok := networkError(BackendOCI, op, "OCI registry", err); ok {
		return netErr
	}

	if containsHTTPStatus(errStr, 404) || strings.Contains(errStr, "NOT_FOUND") {
		return newBackendError(BackendOCI, CategoryStorage, op, fmt.Errorf("repository not found or not initialized"))
	}
	if containsHTTPStatus(errStr, 500) || containsHTTPStatus(errStr, 503) {
		return newBackendError(BackendOCI, CategoryStorage, op, fmt.Errorf("OCI registry unavailable: %v", err))
	}
	return newBackendError(BackendOCI, CategoryStorage, op, err)
}

// containsHTTPStatus checks if the error string mentions a specific HTTP status code
func containsHTTPStatus(errStr string, status int) bool {
	return strings.Contains(errStr, fmt.Sprintf("%d", status))
}

func s3AuthHint(endpoint string) string {
	e := strings.ToLower(endpoint)
	switch {
	case strings.Contains(e, "amazonaws.com") || strings.Contains(e, "s3."):
		return " (AWS S3: check IAM policy has s3:GetObject, s3:PutObject, s3:HeadObject permissions)"
	case strings.Contains(e, "minio") || strings.Contains(e, ":9000"):
		return " (MinIO: verify access key and secret key are correct)"
	case strings.Contains(e, "digitaloceanspaces.com"):
		return " (DigitalOcean Spaces: verify endpoint region matches bucket region)"
	default:
		return ""
	}
}

func registryAuthHint(errStr string) string {
	e := strings.ToLower(errStr)
	switch {
	case strings.Contains(e, "ghcr.io"):
		return " (ghcr.io: use a GitHub PAT with 'write:packages' scope)"
	case strings.Contains(e, "docker.io"):
		return " (docker.io: use a Docker Hub access token)"
	case strings.Contains(e, "azurecr.io"):
		return " (Azure ACR: use 'az acr login --expose-token' to get a token)"
	case strings.Contains(e, "amazonaws.com"):
		return " (AWS ECR: use 'aws ecr get-login-password' to get a token)"
	case strings.Contains(e, "gcr.io") || strings.Contains(e, "pkg.dev"):
		return " (GCP: use 'gcloud auth print-access-token' to get a token)"
	default:
		return ""
	}
}
