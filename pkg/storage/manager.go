package storage

import (
	"context"
	"fmt"

	"github.com/datajunction/djqs/config"
)

// Open builds the named disk ("local" or "s3") from configuration.
func Open(ctx context.Context, name string) (Disk, error) {
	switch name {
	case "", "local":
		return NewLocalDisk(config.StorageLocalRoot())
	case "s3":
		return NewS3Disk(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
		})
	default:
		return nil, fmt.Errorf("storage: disk %q is not supported (local, s3)", name)
	}
}
