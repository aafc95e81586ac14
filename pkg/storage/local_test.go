package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/pkg/storage"
)

func TestLocalDiskLifecycle(t *testing.T) {
	ctx := context.Background()
	disk, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)

	_, err = disk.Get(ctx, "results/q1.json")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, disk.Put(ctx, "results/q1.json", []byte(`[]`)))
	ok, err := disk.Exists(ctx, "results/q1.json")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := disk.Get(ctx, "results/q1.json")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	files, err := disk.Files(ctx, "results")
	require.NoError(t, err)
	assert.Equal(t, []string{"results/q1.json"}, files)

	require.NoError(t, disk.Delete(ctx, "results/q1.json"))
	require.NoError(t, disk.Delete(ctx, "results/q1.json"))
	ok, err = disk.Exists(ctx, "results/q1.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDiskRejectsEscapes(t *testing.T) {
	disk, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, disk.Put(context.Background(), "../outside", []byte("x")))
}

func TestOpen(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)
	config.Set("STORAGE_LOCAL_ROOT", t.TempDir())

	disk, err := storage.Open(context.Background(), "local")
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalDisk{}, disk)

	_, err = storage.Open(context.Background(), "ftp")
	assert.Error(t, err)

	_, err = storage.Open(context.Background(), "s3")
	assert.ErrorContains(t, err, "S3_BUCKET")
}
