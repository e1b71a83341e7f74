// Package publish uploads finished videos to S3-compatible object storage.
package publish

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mixtape/internal/config"
)

// Uploader copies a finished video somewhere durable and returns its
// location.
type Uploader interface {
	Upload(ctx context.Context, batchID, file string) (string, error)
}

// objectStore is the part of *minio.Client the uploader needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioUploader stores videos as <prefix>/<batch id>/<file name>.
type MinioUploader struct {
	store  objectStore
	bucket string
	prefix string

	once      sync.Once
	bucketErr error
}

// NewFromConfig returns nil when publishing is disabled.
func NewFromConfig(cfg *config.Config) (Uploader, error) {
	if !cfg.Publish.Enabled {
		return nil, nil
	}
	u, err := NewMinioUploader(cfg.Publish)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// NewMinioUploader connects to the configured endpoint. No request is made
// until the first upload.
func NewMinioUploader(cfg config.Publish) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioUploader{store: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ObjectKey is the object name a file is stored under.
func ObjectKey(prefix, batchID, file string) string {
	return path.Join(strings.Trim(prefix, "/"), batchID, filepath.Base(file))
}

// Upload implements Uploader. The bucket is created on first use.
func (u *MinioUploader) Upload(ctx context.Context, batchID, file string) (string, error) {
	u.once.Do(func() {
		u.bucketErr = u.ensureBucket(ctx)
	})
	if u.bucketErr != nil {
		return "", u.bucketErr
	}
	key := ObjectKey(u.prefix, batchID, file)
	info, err := u.store.FPutObject(ctx, u.bucket, key, file, minio.PutObjectOptions{ContentType: "video/mp4"})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filepath.Base(file), err)
	}
	return fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key), nil
}

func (u *MinioUploader) ensureBucket(ctx context.Context) error {
	exists, err := u.store.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.store.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}
