package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 timeout constants
const (
	S3UploadTimeout   = 60 * time.Second
	S3DownloadTimeout = 30 * time.Second
)

var (
	regionDotPattern    = regexp.MustCompile(`s3\.([a-z]{2}-[a-z]+-\d+)\.amazonaws\.com`)
	regionHyphenPattern = regexp.MustCompile(`s3-([a-z]{2}-[a-z]+-\d+)\.amazonaws\.com`)
)

// S3Client stores the activation record as one object of an S3-compatible
// bucket through the MinIO SDK
type S3Client struct {
	client *minio.Client
	bucket string
	key    string
	logger *slog.Logger
}

// NewS3Client creates a new S3 client for the given endpoint and credentials
func NewS3Client(endpoint, bucket, key, accessKey, secretKey string, useSSL bool, region string, logger *slog.Logger) (*S3Client, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, CategorizeS3Error(OpConnect, fmt.Errorf("failed to create S3 client: %w", err))
	}

	logger.Info("S3 client created",
		"endpoint", endpoint,
		"bucket", bucket,
		"key", key,
		"ssl", useSSL,
		"region", region)

	return &S3Client{
		client: client,
		bucket: bucket,
		key:    key,
		logger: logger,
	}, nil
}

// Location implements BlobClient
func (c *S3Client) Location() string {
	return c.bucket + "/" + c.key
}

// ValidateBucket checks if the bucket exists and is accessible
func (c *S3Client) ValidateBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return CategorizeS3Error(OpConnect, err)
	}
	if !exists {
		return CategorizeS3Error(OpConnect, fmt.Errorf("bucket %q does not exist", c.bucket))
	}
	return nil
}

// Exists implements BlobClient
func (c *S3Client) Exists(ctx context.Context) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, c.key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		c.logger.Error("S3 existence check failed",
			"bucket", c.bucket,
			"key", c.key,
			"error", err)
		return false, CategorizeS3Error(OpConnect, err)
	}
	return true, nil
}

// Upload implements BlobClient
func (c *S3Client) Upload(ctx context.Context, data []byte) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, S3UploadTimeout)
	defer cancel()

	_, err := c.client.PutObject(ctx, c.bucket, c.key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		c.logger.Error("S3 upload failed",
			"bucket", c.bucket,
			"key", c.key,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return CategorizeS3Error(OpUpload, err)
	}

	c.logger.Debug("S3 upload completed",
		"bucket", c.bucket,
		"key", c.key,
		"size_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Download implements BlobClient
func (c *S3Client) Download(ctx context.Context) ([]byte, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, S3DownloadTimeout)
	defer cancel()

	obj, err := c.client.GetObject(ctx, c.bucket, c.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, CategorizeS3Error(OpDownload, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		c.logger.Error("S3 download failed",
			"bucket", c.bucket,
			"key", c.key,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, CategorizeS3Error(OpDownload, err)
	}

	c.logger.Debug("S3 download completed",
		"bucket", c.bucket,
		"key", c.key,
		"size_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return data, nil
}

// NewS3Storage creates an activation record stored in S3.
// The uri should be a parsed S3 StorageURI (s3://endpoint/bucket/path or s3+http://...).
// The token should be in format ACCESS_KEY:SECRET_KEY.
func NewS3Storage(uri *StorageURI, token string, logger *slog.Logger) (*BlobStorage, error) {
	if !uri.IsS3Scheme() {
		return nil, fmt.Errorf("expected S3 URI, got scheme: %s", uri.Scheme)
	}

	region := uri.S3Region()
	if region == "" {
		region = ExtractRegionFromEndpoint(uri.S3Endpoint())
	}

	accessKey, secretKey, err := ParseS3Token(token)
	if err != nil {
		return nil, fmt.Errorf("failed to parse S3 credentials: %w", err)
	}

	client, err := NewS3Client(uri.S3Endpoint(), uri.S3Bucket(), uri.S3Key(), accessKey, secretKey, uri.S3UseSSL(), region, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.ValidateBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("S3 bucket validation failed: %w", err)
	}

	return NewBlobStorage(client, logger)
}

// ParseS3Token parses the storage token into access key and secret key.
// Token format: ACCESS_KEY:SECRET_KEY
// Falls back to AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY env vars if token is empty.
func ParseS3Token(token string) (accessKey, secretKey string, err error) {
	if token == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		if (accessKey == "") != (secretKey == "") {
			return "", "", fmt.Errorf("S3 credentials incomplete: set both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, or use --storage-token ACCESS_KEY:SECRET_KEY")
		}
		// both empty means IAM role authentication
		return accessKey, secretKey, nil
	}

	// Split on first colon only (secret key may contain colons)
	accessKey, secretKey, found := strings.Cut(token, ":")
	if !found {
		return "", "", fmt.Errorf("invalid token format: expected ACCESS_KEY:SECRET_KEY")
	}
	if accessKey == "" {
		return "", "", fmt.Errorf("invalid token format: access key cannot be empty")
	}
	if secretKey == "" {
		return "", "", fmt.Errorf("invalid token format: secret key cannot be empty")
	}
	return accessKey, secretKey, nil
}

// ExtractRegionFromEndpoint extracts AWS region from endpoint URL.
// Supports patterns: s3.REGION.amazonaws.com and s3-REGION.amazonaws.com
func ExtractRegionFromEndpoint(endpoint string) string {
	for _, re := range []*regexp.Regexp{regionDotPattern, regionHyphenPattern} {
		if m := re.FindStringSubmatch(endpoint); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
