package storage

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestBackendError_Error(t *testing.T) {
	err := &BackendError{
		Backend:  BackendOCI,
		Category: CategoryAuth,
		Op:       OpUpload,
		Err:      errors.New("bad token"),
	}
	assert.Equal(t, "OCI authentication error during upload: bad token", err.Error())
}

func TestBackendError_UnwrapAndIs(t *testing.T) {
	inner := errors.New("inner")
	err := fmt.Errorf("wrapped: %w", CategorizeS3Error(OpDownload, inner))

	assert.ErrorIs(t, err, inner)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, BackendS3, backendErr.Backend)
	assert.Equal(t, OpDownload, backendErr.Op)
}

func TestCategorize_NilError(t *testing.T) {
	assert.Nil(t, CategorizeS3Error(OpUpload, nil))
	assert.Nil(t, CategorizeOCIError(OpUpload, nil))
}

func TestCategorizeOCIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category string
		contains string
	}{
		{
			name:     "401 status code",
			err:      errors.New("status 401: Unauthorized"),
			category: CategoryAuth,
			contains: "authentication failed",
		},
		{
			name:     "FORBIDDEN response with ghcr hint",
			err:      errors.New("ghcr.io: FORBIDDEN"),
			category: CategoryAuth,
			contains: "write:packages",
		},
		{
			name:     "DNS error",
			err:      &net.DNSError{Name: "registry.example.com", Err: "no such host"},
			category: CategoryNetwork,
			contains: "cannot resolve",
		},
		{
			name:     "URL timeout error",
			err:      &url.Error{Op: "Get", URL: "https://registry.example.com", Err: &timeoutError{}},
			category: CategoryNetwork,
			contains: "network timeout",
		},
		{
			name:     "manifest not found",
			err:      errors.New("GET /v2/repo/manifests/latest: 404 NOT_FOUND"),
			category: CategoryStorage,
			contains: "not initialized",
		},
		{
			name:     "registry down",
			err:      errors.New("response status 503"),
			category: CategoryStorage,
			contains: "unavailable",
		},
		{
			name:     "unknown",
			err:      errors.New("something else"),
			category: CategoryStorage,
			contains: "something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CategorizeOCIError(OpDownload, tt.err)
			require.NotNil(t, err)
			assert.Equal(t, BackendOCI, err.Backend)
			assert.Equal(t, tt.category, err.Category)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestCategorizeS3Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category string
		contains string
	}{
		{
			name:     "access denied response",
			err:      minio.ErrorResponse{Code: "AccessDenied", BucketName: "s3.amazonaws.com"},
			category: CategoryAuth,
			contains: "IAM policy",
		},
		{
			name:     "invalid access key response",
			err:      minio.ErrorResponse{Code: "InvalidAccessKeyId"},
			category: CategoryAuth,
			contains: "invalid access key",
		},
		{
			name:     "missing bucket response",
			err:      minio.ErrorResponse{Code: "NoSuchBucket"},
			category: CategoryStorage,
			contains: "bucket not found",
		},
		{
			name:     "wrapped signature mismatch",
			err:      errors.New("request failed: SignatureDoesNotMatch"),
			category: CategoryAuth,
			contains: "authentication failed",
		},
		{
			name:     "DNS error",
			err:      &net.DNSError{Name: "minio.local", Err: "no such host"},
			category: CategoryNetwork,
			contains: "cannot resolve",
		},
		{
			name:     "connection refused",
			err:      &url.Error{Op: "Put", URL: "http://localhost:9000", Err: errors.New("connection refused")},
			category: CategoryNetwork,
			contains: "unable to reach",
		},
		{
			name:     "unknown",
			err:      errors.New("weird"),
			category: CategoryStorage,
			contains: "weird",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CategorizeS3Error(OpUpload, tt.err)
			require.NotNil(t, err)
			assert.Equal(t, BackendS3, err.Backend)
			assert.Equal(t, tt.category, err.Category)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestContainsHTTPStatus(t *testing.T) {
	assert.True(t, containsHTTPStatus("HTTP 404 Not Found", 404))
	assert.False(t, containsHTTPStatus("HTTP 500", 404))
}
