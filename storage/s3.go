package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"frame-sampler/config"
	"frame-sampler/imagefmt"
	"frame-sampler/mime"
	"frame-sampler/pool"
)

// S3Sink uploads frames as objects named Prefix/name.
type S3Sink struct {
	Client  *minio.Client
	Bucket  string
	Prefix  string
	Quality int

	logger *zap.Logger
}

// NewS3Sink returns nil when S3 is disabled in cfg.
func NewS3Sink(cfg *config.Config, logger *zap.Logger) (*S3Sink, error) {
	if !cfg.S3Enabled {
		return nil, nil
	}

	if cfg.S3Endpoint == "" || cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Sink{
		Client:  client,
		Bucket:  cfg.S3Bucket,
		Prefix:  strings.Trim(cfg.S3Prefix, "/"),
		Quality: cfg.DefaultQuality,
		logger:  logger,
	}, nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) objectKey(name string) string {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if s.Prefix == "" {
		return name
	}
	return s.Prefix + "/" + name
}

// Prepare only checks the bucket exists, object stores have no directories.
func (s *S3Sink) Prepare(ctx context.Context, _ string) error {
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.Bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.Bucket)
	}
	return nil
}

func (s *S3Sink) WriteImage(ctx context.Context, name string, img image.Image) error {
	format := imagefmt.FromName(name)

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if err := imagefmt.Encode(buf, img, format, s.Quality); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	key := s.objectKey(name)
	_, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: mime.ImageContentType(format),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	if s.logger != nil {
		s.logger.Debug("frame uploaded", zap.String("bucket", s.Bucket), zap.String("key", key), zap.Int("size", buf.Len()))
	}

	return nil
}
