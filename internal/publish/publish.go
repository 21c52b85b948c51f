// Package publish uploads packaged executables to S3-compatible storage.
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
	"go.uber.org/zap"
)

// Config locates the bucket.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Enabled reports whether uploads are configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Publisher uploads build artifacts.
type Publisher interface {
	Publish(ctx context.Context, buildID, file string) (string, error)
}

// Uploader is the minio-backed Publisher.
type Uploader struct {
	client *minio.Client
	cfg    Config
	logger *zap.Logger

	initOnce sync.Once
	initErr  error
}

// New builds an uploader; it fails on incomplete configuration.
func New(cfg Config, logger *zap.Logger) (*Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("artifact endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("artifact access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("artifact bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init artifact client: %w", err)
	}
	return &Uploader{client: client, cfg: cfg, logger: logger}, nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if !exists {
			u.initErr = u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{Region: u.cfg.Region})
		}
	})
	return u.initErr
}

// ObjectKey is where a build's artifact is stored.
func ObjectKey(buildID, file string) string {
	return path.Join("builds", buildID, filepath.Base(file))
}

// Publish uploads file and returns its object URL.
func (u *Uploader) Publish(ctx context.Context, buildID, file string) (string, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	key := ObjectKey(buildID, file)
	info, err := u.client.FPutObject(ctx, u.cfg.Bucket, key, file, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	u.logger.Info("artifact published",
		zap.String("bucket", u.cfg.Bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size))

	return u.client.EndpointURL().JoinPath(u.cfg.Bucket, key).String(), nil
}
