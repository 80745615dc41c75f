package minio

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/behold/blobstore"
)

// TestStore_Integration runs against BEHOLD_TEST_MINIO_ENDPOINT
// (default localhost:9000) and skips when nothing answers there.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("BEHOLD_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	const bucket = "behold-test"

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not reachable at %s: %v", endpoint, err)
	}
	if ok, err := client.BucketExists(ctx, bucket); err == nil && !ok {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "it/")
	record := []byte("feature record bytes")
	require.NoError(t, store.Put(ctx, "traindata/kirk.bin", record))
	require.NoError(t, store.Put(ctx, "debug/feat_kirk.png", []byte{0x89, 'P', 'N', 'G'}))

	got, err := blobstore.ReadAll(ctx, store, "traindata/kirk.bin")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	names, err := store.List(ctx, "traindata/")
	require.NoError(t, err)
	assert.Equal(t, []string{"traindata/kirk.bin"}, names)

	info, err := client.StatObject(ctx, bucket, "it/debug/feat_kirk.png", minio.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)

	require.NoError(t, store.Delete(ctx, "traindata/kirk.bin"))
	require.NoError(t, store.Delete(ctx, "debug/feat_kirk.png"))
	_, err = store.Open(ctx, "traindata/kirk.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_KeyMapping(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		key    string
	}{
		{prefix: "root/", name: "traindata/kirk.bin", key: "root/traindata/kirk.bin"},
		{prefix: "/root", name: "traindata/kirk.bin", key: "root/traindata/kirk.bin"},
		{prefix: "", name: "traindata/kirk.bin", key: "traindata/kirk.bin"},
	}
	for _, tt := range tests {
		s := NewStore(nil, "b", tt.prefix)
		assert.Equal(t, tt.key, s.key(tt.name))
		assert.Equal(t, tt.name, s.name(tt.key))
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", contentType("debug/feat_kirk.png"))
	assert.Equal(t, "application/octet-stream", contentType("traindata/kirk.bin"))
	assert.Equal(t, "application/octet-stream", contentType("noext"))
}

func TestObjectBlob(t *testing.T) {
	ctx := context.Background()
	b := &objectBlob{data: []byte("spock")}

	buf := make([]byte, 3)
	n, err := b.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "ock", string(buf))

	_, err = b.ReadAt(ctx, buf, 9)
	assert.Error(t, err)
	assert.Equal(t, int64(5), b.Size())
}
