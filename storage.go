package wishpage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/eringen/wishpage/assets"
	"github.com/eringen/wishpage/manifest"
)

// openStores builds the asset and manifest stores named by the config.
// Stores holding connections are appended to a.closers.
func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config

	var client *minio.Client
	if cfg.AssetBackend == BackendMinIO || cfg.ManifestBackend == BackendMinIO {
		c, err := newMinIOClient(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
		client = c
		a.Log.Info("object store connected",
			zap.String("endpoint", cfg.MinIO.Endpoint),
			zap.String("bucket", cfg.MinIO.Bucket))
	}

	switch cfg.AssetBackend {
	case BackendMinIO:
		a.assets = assets.NewObjectStore(client, cfg.MinIO.Bucket, cfg.MinIO.Namespace, cfg.MinIO.PublicURL)
	default:
		fs, err := assets.NewFileStore(cfg.GeneratedDir, "/generated")
		if err != nil {
			return err
		}
		a.assets = fs
	}

	switch cfg.ManifestBackend {
	case BackendSQLite:
		s, err := manifest.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return err
		}
		a.manifests = s
		a.closers = append(a.closers, s)
	case BackendRedis:
		s, err := manifest.NewRedisStore(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.manifests = s
		a.closers = append(a.closers, s)
	case BackendMinIO:
		a.manifests = manifest.NewObjectStore(client, cfg.MinIO.Bucket, cfg.MinIO.Namespace)
	default:
		s, err := manifest.NewFileStore(cfg.GeneratedDir)
		if err != nil {
			return err
		}
		a.manifests = s
	}

	a.Log.Info("storage ready",
		zap.String("assets", cfg.AssetBackend),
		zap.String("manifests", cfg.ManifestBackend),
		zap.String("generated_dir", filepath.Clean(cfg.GeneratedDir)))
	return nil
}

// newMinIOClient connects to the object store and creates the bucket when it
// does not exist yet.
func newMinIOClient(ctx context.Context, cfg MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return client, nil
}

// pingers collects the stores that can report readiness.
func (a *App) pingers() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if p, ok := a.assets.(assets.Pinger); ok {
		checks["assets"] = p.Ping
	}
	if p, ok := a.manifests.(manifest.Pinger); ok {
		checks["manifests"] = p.Ping
	}
	return checks
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
