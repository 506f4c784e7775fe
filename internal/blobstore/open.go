// Package blobstore builds a blob.Store from configuration.
package blobstore

import (
	"context"
	"fmt"

	"github.com/phrazzld/functest/internal/blob"
	"github.com/phrazzld/functest/internal/blob/fs"
	"github.com/phrazzld/functest/internal/blob/s3"
	"github.com/phrazzld/functest/internal/config"
)

// Open selects the blob.Store implementation named by cfg.Driver.
func Open(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch blob.Driver(cfg.Driver) {
	case blob.DriverFilesystem, "":
		return fs.New(cfg.Dir)
	case blob.DriverS3:
		return s3.New(ctx, s3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
