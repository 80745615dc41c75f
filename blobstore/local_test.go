package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	// 1. Put a blob in a nested directory
	blobName := "traindata/kirk.bin"
	data := []byte("hello world, this is a test blob")
	require.NoError(t, store.Put(ctx, blobName, data))

	_, err := os.Stat(filepath.Join(tmpDir, "traindata", "kirk.bin"))
	require.NoError(t, err)

	// 2. Open and ReadAt
	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	n, err = blob.ReadAt(ctx, make([]byte, 4), 100)
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	// 3. Overwrite
	require.NoError(t, store.Put(ctx, blobName, []byte("v2")))
	got, err := ReadAll(ctx, store, blobName)
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	// 4. List with prefix
	require.NoError(t, store.Put(ctx, "traindata/spock.bin", []byte("x")))
	require.NoError(t, store.Put(ctx, "debug/feat_kirk.png", []byte("y")))

	names, err := store.List(ctx, "traindata/")
	require.NoError(t, err)
	require.Equal(t, []string{"traindata/kirk.bin", "traindata/spock.bin"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	// 5. Delete
	require.NoError(t, store.Delete(ctx, blobName))
	require.NoError(t, store.Delete(ctx, blobName))

	_, err = store.Open(ctx, blobName)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "does-not-exist"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestLocalBlobStore_ListSkipsTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".tmp-kirk.bin-123"), []byte("partial"), 0o600))
	require.NoError(t, store.Put(context.Background(), "kirk.bin", []byte("done")))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"kirk.bin"}, names)
}

func TestLocalBlobStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "empty.bin", nil))

	blob, err := store.Open(ctx, "empty.bin")
	require.NoError(t, err)
	require.Zero(t, blob.Size())
	require.NoError(t, blob.Close())
}

func TestLocalBlobStore_ClosedBlob(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "a.bin", []byte("mapped")))

	blob, err := store.Open(ctx, "a.bin")
	require.NoError(t, err)

	data, err := blob.(Mappable).Bytes()
	require.NoError(t, err)
	require.Equal(t, "mapped", string(data))

	require.NoError(t, blob.Close())
	require.NoError(t, blob.Close())

	_, err = blob.ReadAt(ctx, make([]byte, 1), 0)
	require.ErrorIs(t, err, ErrBlobClosed)
	_, err = blob.(Mappable).Bytes()
	require.ErrorIs(t, err, ErrBlobClosed)
}
