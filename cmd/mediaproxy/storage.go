package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sagarc03/mediaproxy"
	"github.com/sagarc03/mediaproxy/config"
	"github.com/sagarc03/mediaproxy/filesystem"
	"github.com/sagarc03/mediaproxy/miniostore"
	"github.com/sagarc03/mediaproxy/s3store"
)

// openGateway builds the gateway selected by cfg.Backend. The returned
// cleanup func releases backend resources and is never nil.
func openGateway(ctx context.Context, cfg config.StorageConfig) (mediaproxy.Gateway, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendS3:
		store, err := s3store.New(ctx, s3store.Config{
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("create s3 gateway: %w", err)
		}
		slog.Info("using s3 storage", "bucket", cfg.S3.Bucket, "region", cfg.S3.Region)
		return store, noop, nil

	case config.BackendMinio:
		store, err := miniostore.New(miniostore.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("create minio gateway: %w", err)
		}
		created, err := store.EnsureBucket(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("ensure minio bucket: %w", err)
		}
		if created {
			slog.Info("created minio bucket", "bucket", cfg.Minio.Bucket)
		}
		slog.Info("using minio storage", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
		return store, noop, nil

	case config.BackendFilesystem:
		if err := os.MkdirAll(cfg.Filesystem.Path, 0o750); err != nil {
			return nil, noop, fmt.Errorf("create storage directory: %w", err)
		}
		root, err := os.OpenRoot(cfg.Filesystem.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("open storage root: %w", err)
		}
		slog.Info("using filesystem storage", "path", cfg.Filesystem.Path, "public_url", cfg.Filesystem.PublicURL)
		return filesystem.NewFileStorage(root, cfg.Filesystem.PublicURL), func() { _ = root.Close() }, nil
	}

	return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
