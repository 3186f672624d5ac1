package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// Config holds S3/MinIO configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Client wraps MinIO client with export artifact storage.
// Objects are keyed "<phone>/<kind>/<name>" so listings per session and
// per export kind are plain prefix scans.
type Client struct {
	client *minio.Client
	bucket string
	logger *zerolog.Logger
}

// NewClient creates a new S3/MinIO client
func NewClient(cfg *Config, logger *zerolog.Logger) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Export artifacts
// hold account data, so the bucket stays private.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		c.logger.Info().Str("bucket", c.bucket).Msg("created S3 bucket")
	}

	return nil
}

// Put stores an export artifact and returns its object key
func (c *Client) Put(ctx context.Context, phone, kind, name, contentType string, data []byte) (string, error) {
	objectKey := objectKey(phone, kind, name)

	reader := bytes.NewReader(data)
	_, err := c.client.PutObject(ctx, c.bucket, objectKey, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact to S3: %w", err)
	}

	c.logger.Debug().
		Str("kind", kind).
		Str("object_key", objectKey).
		Int("size", len(data)).
		Msg("uploaded artifact to S3")

	return objectKey, nil
}

// Get fetches an artifact body and content type by object key
func (c *Client) Get(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get artifact from S3: %w", err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, "", domain.ErrArtifactNotFound
		}
		return nil, "", fmt.Errorf("failed to stat artifact: %w", err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read artifact body: %w", err)
	}

	contentType := stat.ContentType
	if contentType == "" {
		contentType = contentTypeByName(key)
	}

	return data, contentType, nil
}

// List returns stored artifacts for a session and kind, newest name last.
// Export names embed timestamps, so lexicographic order is creation order.
func (c *Client) List(ctx context.Context, phone, kind string) ([]domain.Artifact, error) {
	prefix := phone + "/"
	if kind != "" {
		prefix = phone + "/" + kind + "/"
	}

	var artifacts []domain.Artifact
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list artifacts: %w", obj.Err)
		}
		artifacts = append(artifacts, domain.Artifact{
			Key:          obj.Key,
			Name:         path.Base(obj.Key),
			ContentType:  contentTypeByName(obj.Key),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Key < artifacts[j].Key
	})

	return artifacts, nil
}

func objectKey(phone, kind, name string) string {
	return fmt.Sprintf("%s/%s/%s", phone, kind, name)
}

// contentTypeByName picks a content type from the artifact extension
func contentTypeByName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".txt", ".log":
		return "text/plain"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Ensure Client implements domain.ArtifactStore
var _ domain.ArtifactStore = (*Client)(nil)
