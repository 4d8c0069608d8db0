package adapters

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"ritual/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBytes(data []byte) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func TestLocalFSAdapter_PutGet(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	adapter, err := NewLocalFSAdapter(tempDir)
	require.NoError(t, err)
	defer adapter.Shutdown()

	t.Run("round trip", func(t *testing.T) {
		key := "test/key"
		data := []byte("test data")

		res, err := adapter.Put(ctx, ports.PutRequest{Key: key, Open: openBytes(data), Size: int64(len(data))})
		assert.NoError(t, err)
		assert.Equal(t, int64(len(data)), res.UploadedBytes)

		destDir := t.TempDir()
		getRes, err := adapter.Get(ctx, ports.GetRequest{Key: key, DestDir: destDir, DestName: "out"})
		assert.NoError(t, err)
		assert.Equal(t, int64(len(data)), getRes.BytesWritten)

		got, err := os.ReadFile(getRes.LocalPath)
		assert.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("creates nested directories", func(t *testing.T) {
		key := "deep/nested/path/key"
		data := []byte("nested")

		_, err := adapter.Put(ctx, ports.PutRequest{Key: key, Open: openBytes(data), Size: int64(len(data))})
		assert.NoError(t, err)

		_, err = os.Stat(filepath.Join(tempDir, key))
		assert.NoError(t, err)
	})

	t.Run("get nonexistent key", func(t *testing.T) {
		_, err := adapter.Get(ctx, ports.GetRequest{Key: "nonexistent/key", DestDir: t.TempDir(), DestName: "x"})
		assert.Error(t, err)
	})
}

func TestLocalFSAdapter_Head(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	adapter, err := NewLocalFSAdapter(tempDir)
	require.NoError(t, err)
	defer adapter.Shutdown()

	data := []byte("head me")
	_, err = adapter.Put(ctx, ports.PutRequest{Key: "obj", Open: openBytes(data), Size: int64(len(data))})
	require.NoError(t, err)

	t.Run("existing file", func(t *testing.T) {
		info, err := adapter.Head(ctx, "bucket", "obj")
		assert.NoError(t, err)
		assert.False(t, info.NotFound)
		assert.Equal(t, int64(len(data)), info.Size)
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		info, err := adapter.Head(ctx, "bucket", "missing")
		assert.NoError(t, err)
		assert.True(t, info.NotFound)
	})
}

func TestLocalFSAdapter_List(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	adapter, err := NewLocalFSAdapter(tempDir)
	require.NoError(t, err)
	defer adapter.Shutdown()

	keys := []string{"prefix/key1", "prefix/key2", "other/key3"}
	for _, key := range keys {
		_, err := adapter.Put(ctx, ports.PutRequest{Key: key, Open: openBytes([]byte("data")), Size: 4})
		require.NoError(t, err)
	}

	t.Run("list with prefix", func(t *testing.T) {
		result, err := adapter.List(ctx, "bucket", "prefix/")
		assert.NoError(t, err)
		assert.Len(t, result, 2)
	})

	t.Run("list empty prefix", func(t *testing.T) {
		result, err := adapter.List(ctx, "bucket", "nonexistent/")
		assert.NoError(t, err)
		assert.Len(t, result, 0)
	})
}

func TestLocalFSAdapter_ResolvePath(t *testing.T) {
	tempDir := t.TempDir()
	adapter, err := NewLocalFSAdapter(tempDir)
	require.NoError(t, err)
	defer adapter.Shutdown()

	path := adapter.ResolvePath("bucket", "a/b/c.txt")
	assert.Equal(t, filepath.Join(tempDir, "a", "b", "c.txt"), path)
}

func TestLocalFSAdapter_PathTraversalRejected(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	adapter, err := NewLocalFSAdapter(tempDir)
	require.NoError(t, err)
	defer adapter.Shutdown()

	_, err = adapter.Put(ctx, ports.PutRequest{Key: "../outside", Open: openBytes([]byte("x")), Size: 1})
	assert.Error(t, err)
}
