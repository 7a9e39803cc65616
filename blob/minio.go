package blob

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the S3 compatible endpoint settings
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLExpiry time.Duration
}

// MinioStore keeps objects in an S3 compatible bucket
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	expiry time.Duration
}

var _ Store = (*MinioStore)(nil)

// NewMinioStore connects to the endpoint. The bucket is not created until
// EnsureBucket is called.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "failed to create minio client")
	}
	return NewMinioStoreWithClient(client, cfg.Bucket, cfg.Region, cfg.URLExpiry), nil
}

// NewMinioStoreWithClient wraps an existing client
func NewMinioStoreWithClient(client *minio.Client, bucket, region string, expiry time.Duration) *MinioStore {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinioStore{
		client: client,
		bucket: bucket,
		region: region,
		expiry: expiry,
	}
}

// EnsureBucket creates the bucket when missing
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to check bucket")
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to create bucket").
			WithMetadata(map[string]any{"bucket": s.bucket})
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, path string, data []byte, contentType string) (Ref, error) {
	path, err := CleanPath(path)
	if err != nil {
		return Ref{}, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Ref{}, errors.Wrap(err, errors.CategoryExternal, "failed to upload object").
			WithMetadata(map[string]any{"bucket": s.bucket, "path": path})
	}

	return Ref{
		Bucket:      info.Bucket,
		Path:        info.Key,
		ContentType: contentType,
		Size:        info.Size,
		ETag:        info.ETag,
	}, nil
}

func (s *MinioStore) DownloadURL(ctx context.Context, ref Ref) (string, error) {
	bucket := ref.Bucket
	if bucket == "" {
		bucket = s.bucket
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, ref.Path, s.expiry, url.Values{})
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryExternal, "failed to presign object url").
			WithMetadata(map[string]any{"bucket": bucket, "path": ref.Path})
	}
	return u.String(), nil
}
