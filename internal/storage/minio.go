package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tbourn/hesapla-backend/internal/config"
)

// objectPutter is the part of *minio.Client the Uploader writes through.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader stores images already prepared by an Optimizer and returns their
// public CDN URL.
type Uploader struct {
	client     objectPutter
	bucket     string
	publicBase string
	now        func() time.Time
}

// NewUploader connects to the bucket described by cfg, creating it when
// missing.
func NewUploader(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Uploader{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:        time.Now,
	}, nil
}

// UploadImage stores JPEG bytes produced by Optimizer.Optimize as-is under
// images/yyyy/mm/<uuid>.jpg and returns the public URL of the object.
func (u *Uploader) UploadImage(ctx context.Context, jpegData []byte) (string, error) {
	key := ObjectKey(u.now(), uuid.NewString())

	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(jpegData), int64(len(jpegData)),
		minio.PutObjectOptions{
			ContentType:  "image/jpeg",
			CacheControl: "public, max-age=31536000, immutable",
		})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}
	return PublicURL(u.publicBase, key), nil
}

// ObjectKey builds the date-partitioned object key for id.
func ObjectKey(t time.Time, id string) string {
	return path.Join("images", t.UTC().Format("2006/01"), id+".jpg")
}

// PublicURL joins the CDN base and key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
