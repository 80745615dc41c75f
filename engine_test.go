package behold

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/behold/blobstore"
	"github.com/hupe1980/behold/descriptor"
	"github.com/hupe1980/behold/fallback"
	"github.com/hupe1980/behold/indexer"
	"github.com/hupe1980/behold/matcher"
	"github.com/hupe1980/behold/model"
	"github.com/hupe1980/behold/store"
)

const cols = 8

func randomMatrix(rows int, seed uint64) model.Matrix {
	rng := rand.New(rand.NewPCG(seed, 7))
	data := make([]float32, rows*cols)
	for i := range data {
		data[i] = rng.Float32()
	}
	return model.Matrix{Rows: rows, Cols: cols, Kind: model.KindFloat32, Data: data}
}

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// tableExtractor returns a fixed matrix per image; unknown images have no descriptors.
type tableExtractor struct {
	table map[image.Image]model.Matrix
	err   error
}

func (t *tableExtractor) Describe(img image.Image) (model.Matrix, []model.Keypoint, error) {
	if t.err != nil {
		return model.Matrix{}, nil, t.err
	}
	return t.table[img], nil, nil
}

type gallerySource struct {
	entries []fallback.Entry
	err     error
}

func (g *gallerySource) Gallery(_ context.Context, optFns ...func(*fallback.Options)) (*fallback.Gallery, error) {
	if g.err != nil {
		return nil, g.err
	}
	return fallback.NewGallery(g.entries, optFns...), nil
}

type fixture struct {
	blobs *blobstore.MemoryStore
	store *store.Store
	ex    *tableExtractor
	kirk  *image.RGBA
	spock *image.RGBA
	other *image.RGBA
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		blobs: blobstore.NewMemoryStore(),
		kirk:  solid(color.RGBA{200, 0, 0, 255}),
		spock: solid(color.RGBA{0, 0, 200, 255}),
		other: solid(color.RGBA{0, 200, 0, 255}),
	}
	f.store = store.New(f.blobs)

	kirk := randomMatrix(10, 1)
	spock := randomMatrix(10, 2)
	f.ex = &tableExtractor{table: map[image.Image]model.Matrix{
		f.kirk:  kirk,
		f.spock: spock,
		f.other: randomMatrix(10, 3),
	}}

	require.NoError(t, f.store.Save(context.Background(), []model.FeatureRecord{
		model.NewFeatureRecord("kirk", 5, kirk),
		model.NewFeatureRecord("spock", 5, spock),
	}))
	return f
}

func TestOpen_NilStore(t *testing.T) {
	_, err := Open(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilStore)
}

func TestSearch_NilImage(t *testing.T) {
	f := newFixture(t)
	eng, err := Open(context.Background(), f.store, WithExtractor(f.ex))
	require.NoError(t, err)

	resp := eng.Search(context.Background(), nil, 1234)
	assert.Equal(t, &Response{}, resp)
}

func TestSearch_ValidPrimarySkipsFallback(t *testing.T) {
	f := newFixture(t)
	metrics := &BasicMetricsCollector{}
	eng, err := Open(context.Background(), f.store,
		WithExtractor(f.ex),
		WithGallerySource(&gallerySource{}),
		WithMetricsCollector(metrics),
	)
	require.NoError(t, err)

	resp := eng.Search(context.Background(), f.kirk, 512)
	require.NotNil(t, resp.BeholdResult)
	assert.True(t, resp.BeholdResult.Valid)
	assert.Equal(t, "kirk", resp.BeholdResult.Top.Label)
	assert.Equal(t, 10, resp.BeholdResult.Top.Score)
	assert.Nil(t, resp.VoyResult)
	assert.Equal(t, int64(512), resp.Size)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchValid)
	assert.Zero(t, stats.FallbackCount)
	assert.Equal(t, int64(2), stats.CatalogSize)
}

func TestSearch_InvalidPrimaryRunsFallback(t *testing.T) {
	f := newFixture(t)
	src := &gallerySource{entries: []fallback.Entry{
		{Label: "kirk", Signature: fallback.NewSignature(f.kirk)},
		{Label: "other", Signature: fallback.NewSignature(f.other)},
	}}
	metrics := &BasicMetricsCollector{}
	eng, err := Open(context.Background(), f.store,
		WithExtractor(f.ex),
		WithGallerySource(src),
		WithMetricsCollector(metrics),
	)
	require.NoError(t, err)

	resp := eng.Search(context.Background(), f.other, 99)
	require.NotNil(t, resp.BeholdResult)
	assert.False(t, resp.BeholdResult.Valid)
	require.NotNil(t, resp.VoyResult)
	assert.True(t, resp.VoyResult.Valid)
	assert.Equal(t, "other", resp.VoyResult.Label)
	assert.Equal(t, int64(1), metrics.GetStats().FallbackValid)
}

func TestSearch_InvalidFallbackStillReported(t *testing.T) {
	f := newFixture(t)
	eng, err := Open(context.Background(), f.store, WithExtractor(f.ex))
	require.NoError(t, err)

	resp := eng.Search(context.Background(), f.other, 1)
	require.NotNil(t, resp.VoyResult)
	assert.False(t, resp.VoyResult.Valid)
	assert.Empty(t, resp.VoyResult.Label)
}

func TestSearch_EmptyCatalog(t *testing.T) {
	eng, err := Open(context.Background(), store.New(blobstore.NewMemoryStore()))
	require.NoError(t, err)
	assert.Zero(t, eng.Catalog().Len())

	resp := eng.Search(context.Background(), solid(color.RGBA{1, 2, 3, 255}), 10)
	require.NotNil(t, resp.BeholdResult)
	assert.Nil(t, resp.BeholdResult.Top)
	assert.False(t, resp.BeholdResult.Valid)
	assert.Empty(t, resp.BeholdResult.Candidates)
	require.NotNil(t, resp.VoyResult)
	assert.False(t, resp.VoyResult.Valid)
	assert.Equal(t, int64(10), resp.Size)
}

func TestSearch_ExtractionFailure(t *testing.T) {
	f := newFixture(t)
	f.ex.err = errors.New("boom")
	eng, err := Open(context.Background(), f.store, WithExtractor(f.ex))
	require.NoError(t, err)

	resp := eng.Search(context.Background(), f.kirk, 1)
	require.NotNil(t, resp.BeholdResult)
	assert.False(t, resp.BeholdResult.Valid)
	assert.Equal(t, 0, resp.BeholdResult.Top.Score)
	assert.NotNil(t, resp.VoyResult)
}

func TestSearch_MatcherOptions(t *testing.T) {
	f := newFixture(t)
	eng, err := Open(context.Background(), f.store,
		WithExtractor(f.ex),
		WithMatcherOptions(func(o *matcher.Options) { o.MinMatches = 11 }),
	)
	require.NoError(t, err)

	resp := eng.Search(context.Background(), f.kirk, 1)
	assert.Equal(t, 10, resp.BeholdResult.Top.Score)
	assert.False(t, resp.BeholdResult.Valid)
	assert.NotNil(t, resp.VoyResult)
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eng, err := Open(ctx, f.store, WithExtractor(f.ex))
	require.NoError(t, err)
	before := eng.Catalog()
	require.Equal(t, 2, before.Len())

	// New label becomes visible only after Reload.
	require.NoError(t, f.store.Save(ctx, []model.FeatureRecord{model.NewFeatureRecord("other", 4, f.ex.table[f.other])}))
	assert.False(t, eng.Search(ctx, f.other, 1).BeholdResult.Valid)

	require.NoError(t, eng.Reload(ctx))
	assert.Equal(t, 3, eng.Catalog().Len())
	assert.Equal(t, "other", eng.Search(ctx, f.other, 1).BeholdResult.Top.Label)

	// A failed reload keeps the previous catalog.
	current := eng.Catalog()
	require.NoError(t, f.blobs.Put(ctx, store.BlobName("broken"), []byte("garbage")))
	err = eng.Reload(ctx)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "records", le.Stage)
	assert.Same(t, current, eng.Catalog())
}

func TestReload_GalleryFailure(t *testing.T) {
	f := newFixture(t)
	src := &gallerySource{}
	eng, err := Open(context.Background(), f.store, WithExtractor(f.ex), WithGallerySource(src))
	require.NoError(t, err)

	src.err = errors.New("db gone")
	err = eng.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load gallery")
	assert.Equal(t, 2, eng.Catalog().Len())
}

func TestOpen_CorruptRecord(t *testing.T) {
	f := newFixture(t)
	data, err := blobstore.ReadAll(context.Background(), f.blobs, store.BlobName("kirk"))
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, f.blobs.Put(context.Background(), store.BlobName("kirk"), data))

	_, err = Open(context.Background(), f.store)
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	eng, err := Open(context.Background(), f.store, WithExtractor(f.ex))
	require.NoError(t, err)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
	assert.ErrorIs(t, eng.Reload(context.Background()), ErrClosed)

	resp := eng.Search(context.Background(), f.kirk, 1)
	assert.Nil(t, resp.BeholdResult.Top)
}

type fakeFetcher struct {
	img  image.Image
	size int64
	err  error
}

func (f fakeFetcher) Image(context.Context, string) (image.Image, int64, error) {
	return f.img, f.size, f.err
}

func TestSearchURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	eng, err := Open(ctx, f.store, WithExtractor(f.ex), WithFetcher(fakeFetcher{img: f.spock, size: 321}))
	require.NoError(t, err)
	resp := eng.SearchURL(ctx, "https://example.com/spock.png")
	assert.Equal(t, "spock", resp.BeholdResult.Top.Label)
	assert.Equal(t, int64(321), resp.Size)

	eng, err = Open(ctx, f.store, WithExtractor(f.ex), WithFetcher(fakeFetcher{err: errors.New("404")}))
	require.NoError(t, err)
	assert.Equal(t, &Response{}, eng.SearchURL(ctx, "https://example.com/missing.png"))

	eng, err = Open(ctx, f.store, WithExtractor(f.ex))
	require.NoError(t, err)
	assert.Equal(t, &Response{}, eng.SearchURL(ctx, "https://example.com/x.png"))
}

func TestSearch_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eng, err := Open(ctx, f.store, WithExtractor(f.ex))
	require.NoError(t, err)

	want := eng.Search(ctx, f.spock, 1)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				assert.Equal(t, want, eng.Search(ctx, f.spock, 1))
			}
			if i == 0 {
				assert.NoError(t, eng.Reload(ctx))
			}
		}()
	}
	wg.Wait()
}

func TestResponse_JSON(t *testing.T) {
	data, err := json.Marshal(&Response{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"beholdResult": null, "voyResult": null, "size": 0}`, string(data))

	f := newFixture(t)
	eng, err := Open(context.Background(), f.store, WithExtractor(f.ex))
	require.NoError(t, err)

	data, err = json.Marshal(eng.Search(context.Background(), f.kirk, 7))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Nil(t, got["voyResult"])
	assert.Equal(t, 7.0, got["size"])
	top := got["beholdResult"].(map[string]any)["top"].(map[string]any)
	assert.Equal(t, "kirk", top["label"])
}

func blocks(w, h, size int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, 99))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for by := 0; by < h; by += size {
		for bx := 0; bx < w; bx += size {
			v := uint8(rng.IntN(256))
			for y := by; y < min(by+size, h); y++ {
				for x := bx; x < min(bx+size, w); x++ {
					img.SetRGBA(x, y, color.RGBA{v, 255 - v, v / 3, 255})
				}
			}
		}
	}
	return img
}

func TestEndToEnd_BuiltinExtractor(t *testing.T) {
	ctx := context.Background()
	st := store.New(blobstore.NewLocalStore(t.TempDir()))
	ex := descriptor.NewCorners()
	ix := indexer.New(st, ex)

	kirk := blocks(160, 160, 10, 1)
	spock := blocks(160, 160, 10, 2)

	ok, err := ix.IndexOne(ctx, "kirk", kirk)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = ix.IndexOne(ctx, "spock", spock)
	require.NoError(t, err)
	require.True(t, ok)

	eng, err := Open(ctx, st, WithExtractor(ex))
	require.NoError(t, err)
	defer eng.Close()

	resp := eng.Search(ctx, spock, 0)
	require.NotNil(t, resp.BeholdResult.Top)
	assert.Equal(t, "spock", resp.BeholdResult.Top.Label)
	assert.True(t, resp.BeholdResult.Valid)
	assert.Nil(t, resp.VoyResult)
}
