package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/chronocam/chronocam/internal/config"
)

// MinioMirror uploads snapshot copies to an S3-compatible bucket
type MinioMirror struct {
	client *minio.Client
	bucket string
}

// NewMinioMirror connects to the configured endpoint and ensures the
// bucket exists
func NewMinioMirror(cfg config.MirrorConfig) (*MinioMirror, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("mirror access_key / secret_key not configured")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := cli.BucketExists(ctx, cfg.Bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("create/verify bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioMirror{client: cli, bucket: cfg.Bucket}, nil
}

// Upload stores one snapshot copy under the given key
func (m *MinioMirror) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err := m.client.PutObject(
		ctx,
		m.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("upload snapshot to bucket: %w", err)
	}
	return nil
}
