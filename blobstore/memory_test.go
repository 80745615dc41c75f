package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("picard")
	require.NoError(t, store.Put(ctx, "traindata/picard.bin", data))
	data[0] = 'X'

	got, err := ReadAll(ctx, store, "traindata/picard.bin")
	require.NoError(t, err)
	assert.Equal(t, "picard", string(got))

	// ReadAll returns a private copy.
	got[0] = 'Y'
	again, err := ReadAll(ctx, store, "traindata/picard.bin")
	require.NoError(t, err)
	assert.Equal(t, "picard", string(again))

	require.NoError(t, store.Put(ctx, "other/riker.bin", []byte("riker")))
	names, err := store.List(ctx, "traindata/")
	require.NoError(t, err)
	assert.Equal(t, []string{"traindata/picard.bin"}, names)

	require.NoError(t, store.Delete(ctx, "traindata/picard.bin"))
	_, err = store.Open(ctx, "traindata/picard.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

// plainBlob hides Bytes so ReadAll takes the ReadAt path.
type plainBlob struct{ b *byteBlob }

func (p plainBlob) ReadAt(ctx context.Context, buf []byte, off int64) (int, error) {
	return p.b.ReadAt(ctx, buf, off)
}
func (p plainBlob) Close() error { return nil }
func (p plainBlob) Size() int64  { return p.b.Size() }

type plainStore struct{ *MemoryStore }

func (s plainStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return plainBlob{b.(*byteBlob)}, nil
}

func TestReadAll_WithoutMappable(t *testing.T) {
	ctx := context.Background()
	store := plainStore{NewMemoryStore()}
	require.NoError(t, store.Put(ctx, "a", []byte("0123456789")))

	got, err := ReadAll(ctx, store, "a")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))
}
