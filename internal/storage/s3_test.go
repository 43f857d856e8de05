package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Storage_InvalidScheme(t *testing.T) {
	uri := &StorageURI{
		Scheme: "file",
		Path:   "./test/activation.json",
		Raw:    "file://./test/activation.json",
	}

	_, err := NewS3Storage(uri, "access:secret", newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected S3 URI")
}

func TestFactory_NewStorage_S3Scheme(t *testing.T) {
	for _, raw := range []string{
		"s3://s3.amazonaws.com/test-bucket/activation.json",
		"s3+http://localhost:9000/test-bucket/activation.json",
	} {
		t.Run(raw, func(t *testing.T) {
			uri, err := ParseStorageURI(raw)
			require.NoError(t, err)

			// a malformed token fails before any network access, proving routing
			_, err = NewStorage(uri, "no-separator", newTestLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to parse S3 credentials")
			assert.NotContains(t, err.Error(), "unsupported storage scheme")
		})
	}
}

func TestParseS3Token(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantAccess string
		wantSecret string
		errMsg     string
	}{
		{name: "valid", token: "AKIA:secret", wantAccess: "AKIA", wantSecret: "secret"},
		{name: "secret with colons", token: "AKIA:se:cr:et", wantAccess: "AKIA", wantSecret: "se:cr:et"},
		{name: "no separator", token: "AKIA", errMsg: "expected ACCESS_KEY:SECRET_KEY"},
		{name: "empty access key", token: ":secret", errMsg: "access key cannot be empty"},
		{name: "empty secret key", token: "AKIA:", errMsg: "secret key cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, secret, err := ParseS3Token(tt.token)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, access)
			assert.Equal(t, tt.wantSecret, secret)
		})
	}
}

func TestParseS3Token_EnvFallback(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "env-access")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")

	access, secret, err := ParseS3Token("")
	require.NoError(t, err)
	assert.Equal(t, "env-access", access)
	assert.Equal(t, "env-secret", secret)

	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	_, _, err = ParseS3Token("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials incomplete")
}

func TestExtractRegionFromEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		expected string
	}{
		{"s3.us-west-2.amazonaws.com", "us-west-2"},
		{"s3-eu-west-1.amazonaws.com", "eu-west-1"},
		{"s3.amazonaws.com", ""},
		{"localhost:9000", ""},
		{"nyc3.digitaloceanspaces.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractRegionFromEndpoint(tt.endpoint))
		})
	}
}

func TestS3Client_TimeoutConstants(t *testing.T) {
	assert.Greater(t, S3UploadTimeout, S3DownloadTimeout)
}
