// Package storage provides a small filesystem abstraction over the local
// disk and S3-compatible object storage (AWS S3, MinIO, R2, Spaces).
//
//	disk, err := storage.Open(ctx, config.StorageDefault())
//	err = disk.Put(ctx, "results/abc.json", data)
//	data, err := disk.Get(ctx, "results/abc.json")
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at path.
var ErrNotFound = errors.New("storage: not found")

// Disk is the filesystem driver interface.
type Disk interface {
	// Put writes content to path, creating parent directories as needed.
	Put(ctx context.Context, path string, content []byte) error

	// Get returns the full content of the file at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error

	// Files lists every file under prefix, recursively.
	Files(ctx context.Context, prefix string) ([]string, error)
}
