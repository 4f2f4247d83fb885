package clip

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
}

// MinioStore keeps clips as objects in an S3 compatible bucket.
type MinioStore struct {
	client *minio.Client
	cfg    MinioConfig
}

// NewMinioStore connects to the bucket, creating it when missing.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, cfg: cfg}, nil
}

func (s *MinioStore) key(ref string) string {
	if s.cfg.Prefix == "" {
		return ref
	}
	return path.Join(s.cfg.Prefix, ref)
}

func (s *MinioStore) Save(ctx context.Context, ref string, r io.Reader) error {
	opts := minio.PutObjectOptions{ContentType: mime.TypeByExtension(filepath.Ext(ref))}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, s.key(ref), r, -1, opts)
	if err != nil {
		// multipart uploads are aborted by the client, this clears a completed one
		_ = s.client.RemoveObject(context.WithoutCancel(ctx), s.cfg.Bucket, s.key(ref), minio.RemoveObjectOptions{})
		return fmt.Errorf("uploading clip %s: %w", ref, err)
	}
	return nil
}

func (s *MinioStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return s.client.GetObject(ctx, s.cfg.Bucket, s.key(ref), minio.GetObjectOptions{})
}

func (s *MinioStore) Remove(ctx context.Context, ref string) error {
	return s.client.RemoveObject(ctx, s.cfg.Bucket, s.key(ref), minio.RemoveObjectOptions{})
}

func (s *MinioStore) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.Bucket, s.key(ref), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

func (s *MinioStore) LocalPath(ctx context.Context, ref string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "clip-*"+filepath.Ext(ref))
	if err != nil {
		return "", nil, err
	}
	p := tmp.Name()
	tmp.Close()

	if err := s.client.FGetObject(ctx, s.cfg.Bucket, s.key(ref), p, minio.GetObjectOptions{}); err != nil {
		os.Remove(p)
		return "", nil, fmt.Errorf("downloading clip %s: %w", ref, err)
	}
	return p, func() { os.Remove(p) }, nil
}
