package corpus

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/behold/internal/imaging"
)

const manifest = `[
	{"symbol": "kirk_crew", "name": "James T. Kirk", "max_rarity": 5, "imageUrlFullBody": "crew/kirk.png"},
	{"symbol": "redshirt_crew", "name": "Redshirt", "max_rarity": 1, "imageUrlFullBody": "crew/missing.png"},
	{"symbol": "", "name": "Nobody", "max_rarity": 5, "imageUrlFullBody": "crew/x.png"}
]`

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	img.SetRGBA(2, 2, color.RGBA{255, 255, 255, 255})
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestReadManifest(t *testing.T) {
	m, err := ReadManifest(strings.NewReader(manifest))
	require.NoError(t, err)
	require.Len(t, m, 3)
	assert.Equal(t, ManifestEntry{Symbol: "kirk_crew", Name: "James T. Kirk", MaxRarity: 5, ImageURLFullBody: "crew/kirk.png"}, m[0])

	_, err = ReadManifest(strings.NewReader("{"))
	require.Error(t, err)
}

func TestEntries_Dir(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "crew", "kirk.png"))

	m, err := ReadManifest(strings.NewReader(manifest))
	require.NoError(t, err)

	var got []Entry
	var errs []error
	for e, err := range Entries(m, DirResolver{Root: root}) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, e)
	}

	require.Len(t, got, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidEntry)

	assert.Equal(t, "kirk_crew", got[0].Label)
	assert.Equal(t, "James T. Kirk", got[0].DisplayName())
	assert.Equal(t, 5, got[0].Rarity)

	img, err := got[0].Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())

	// Unreadable images fail only when loaded.
	_, err = got[1].Load(context.Background())
	require.Error(t, err)
}

func TestEntries_StopEarly(t *testing.T) {
	m := []ManifestEntry{
		{Symbol: "a", ImageURLFullBody: "a.png"},
		{Symbol: "b", ImageURLFullBody: "b.png"},
	}
	n := 0
	for range Entries(m, DirResolver{}) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

type fakeFetcher struct{ urls []string }

func (f *fakeFetcher) Image(_ context.Context, url string) (image.Image, int64, error) {
	f.urls = append(f.urls, url)
	return image.NewGray(image.Rect(0, 0, 1, 1)), 1, nil
}

func TestURLResolver(t *testing.T) {
	f := &fakeFetcher{}
	r := URLResolver{BaseURL: "https://assets.example.com/", Fetcher: f}

	_, err := r.Resolve(context.Background(), "/crew/kirk.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://assets.example.com/crew/kirk.png"}, f.urls)
}

func TestNewEntry(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	e := NewEntry("kirk", 4, img)

	assert.Equal(t, "kirk", e.DisplayName())
	got, err := e.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, img, got)

	n := 0
	for range Slice(e, e) {
		n++
	}
	assert.Equal(t, 2, n)
}
