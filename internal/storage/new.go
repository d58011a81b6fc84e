package storage

import (
	"context"
	"io"
	"strings"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/utils"
)

// Client is what the worker and the API need from a configured backend.
type Client interface {
	ObjectStore
	Signer
	io.Closer
}

// New builds the configured object store. Missing settings fail fast with a
// CONFIG error before any network call is made.
func New(ctx context.Context, cfg config.StorageConfig) (Client, error) {
	const op = "storage.New"

	var missing []string
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}

	switch cfg.Driver {
	case "s3", "":
		require("AWS_ACCESS_KEY_ID", cfg.AccessKeyID)
		require("AWS_SECRET_ACCESS_KEY", cfg.SecretAccessKey)
		require("STORAGE_BUCKET", cfg.Bucket)
		require("STORAGE_REGION", cfg.Region)
		if len(missing) > 0 {
			return nil, utils.E(utils.CodeConfig, op, strings.Join(missing, ", ")+" not configured", nil)
		}
		s, err := NewS3Store(ctx, cfg.Bucket, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey)
		if err != nil {
			return nil, utils.E(utils.CodeConfig, op, "failed to build s3 client", err)
		}
		return s, nil

	case "gcs":
		require("GOOGLE_APPLICATION_CREDENTIALS", cfg.CredentialsFile)
		require("STORAGE_BUCKET", cfg.Bucket)
		require("STORAGE_REGION", cfg.Region)
		if len(missing) > 0 {
			return nil, utils.E(utils.CodeConfig, op, strings.Join(missing, ", ")+" not configured", nil)
		}
		s, err := NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile, cfg.PublicRead)
		if err != nil {
			return nil, utils.E(utils.CodeConfig, op, "failed to build gcs client", err)
		}
		return s, nil

	default:
		return nil, utils.E(utils.CodeConfig, op, "unknown STORAGE_DRIVER "+cfg.Driver, nil)
	}
}
