package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/behold/blobstore"
	"github.com/hupe1980/behold/model"
	"github.com/hupe1980/behold/persistence"
	"github.com/hupe1980/behold/resource"
)

func record(label string, rows int) model.FeatureRecord {
	const cols = 4
	features := make([]float32, rows*cols)
	for i := range features {
		features[i] = float32(i) * 0.25
	}
	return model.FeatureRecord{
		Label:    label,
		Rows:     rows,
		Cols:     cols,
		Kind:     model.KindFloat32,
		Features: features,
		Rarity:   5,
	}
}

func TestBlobName(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"kirk", "traindata/kirk.bin"},
		{"a/b", "traindata/a%2Fb.bin"},
		{"two words", "traindata/two%20words.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, BlobName(tt.label))
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	backends := map[string]blobstore.BlobStore{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(t.TempDir()),
	}

	for name, blobs := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(blobs)

			in := []model.FeatureRecord{record("spock", 3), record("kirk", 2), record("a/b", 1)}
			require.NoError(t, s.Save(ctx, in))

			out, err := s.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, out, 3)

			// Sorted by label.
			assert.Equal(t, "a/b", out[0].Label)
			assert.Equal(t, "kirk", out[1].Label)
			assert.Equal(t, "spock", out[2].Label)

			want := record("kirk", 2)
			assert.Equal(t, want, out[1])
		})
	}
}

func TestStore_Compression(t *testing.T) {
	for _, c := range []persistence.Compression{
		persistence.CompressionNone,
		persistence.CompressionLZ4,
		persistence.CompressionZSTD,
	} {
		t.Run(c.String(), func(t *testing.T) {
			s := New(blobstore.NewMemoryStore(), func(o *Options) { o.Compression = c })
			require.NoError(t, s.Save(context.Background(), []model.FeatureRecord{record("kirk", 8)}))

			out, err := s.LoadAll(context.Background())
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, record("kirk", 8).Features, out[0].Features)
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())

	require.NoError(t, s.Save(ctx, []model.FeatureRecord{record("kirk", 2)}))
	require.NoError(t, s.Save(ctx, []model.FeatureRecord{record("kirk", 5)}))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].Rows)
}

func TestStore_Empty(t *testing.T) {
	s := New(blobstore.NewLocalStore(t.TempDir()))

	out, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	s := New(blobs)

	bad := record("bad", 2)
	bad.Rows = 0
	err := s.Save(context.Background(), []model.FeatureRecord{record("kirk", 2), bad})
	require.ErrorIs(t, err, model.ErrInvalidRecord)

	// Nothing written when any record is invalid.
	names, err := blobs.List(context.Background(), Prefix)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_CorruptRecordFailsLoad(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := New(blobs, func(o *Options) { o.Compression = persistence.CompressionNone })

	require.NoError(t, s.Save(ctx, []model.FeatureRecord{record("kirk", 2), record("spock", 2)}))

	data, err := blobstore.ReadAll(ctx, blobs, BlobName("spock"))
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, blobs.Put(ctx, BlobName("spock"), data))

	_, err = s.LoadAll(ctx)
	require.ErrorIs(t, err, persistence.ErrCorruptRecord)
}

func TestStore_IgnoresForeignBlobs(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := New(blobs)

	require.NoError(t, s.Save(ctx, []model.FeatureRecord{record("kirk", 2)}))
	require.NoError(t, blobs.Put(ctx, "traindata/notes.txt", []byte("hello")))
	require.NoError(t, blobs.Put(ctx, "debug/feat_kirk.png", []byte("png")))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestStore_Throttled(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20, MaxLoadWorkers: 2})
	s := New(blobstore.NewMemoryStore(), func(o *Options) { o.Resource = rc })

	var in []model.FeatureRecord
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		in = append(in, record(l, 3))
	}
	require.NoError(t, s.Save(ctx, in))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 5)
}
