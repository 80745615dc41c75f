// Package corpus reads the labeled reference images an index is built from.
//
// A corpus is a JSON manifest, an array of objects with a "symbol" label, a
// display "name", a "max_rarity" filter value and an "imageUrlFullBody"
// reference. References resolve against a local asset directory or a base
// URL. Images load lazily, so entries the builder filters out are never read.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/behold/internal/imaging"
)

// ErrInvalidEntry is yielded for manifest entries without a label or image.
var ErrInvalidEntry = errors.New("corpus: invalid entry")

// Entry is one labeled reference image.
type Entry struct {
	Label  string
	Name   string
	Rarity int
	// Ref is the manifest's image reference.
	Ref string
	// Load reads and decodes the image.
	Load func(ctx context.Context) (image.Image, error)
}

// DisplayName returns Name, or Label when Name is empty.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Label
}

// NewEntry returns an entry for an in-memory image.
func NewEntry(label string, rarity int, img image.Image) Entry {
	return Entry{
		Label:  label,
		Rarity: rarity,
		Load:   func(context.Context) (image.Image, error) { return img, nil },
	}
}

// ManifestEntry is the JSON shape of one manifest element.
type ManifestEntry struct {
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	MaxRarity        int    `json:"max_rarity"`
	ImageURLFullBody string `json:"imageUrlFullBody"`
}

// ReadManifest decodes a manifest.
func ReadManifest(r io.Reader) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("corpus: decode manifest: %w", err)
	}
	return entries, nil
}

// ReadManifestFile decodes the manifest at path.
func ReadManifestFile(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadManifest(f)
}

// Resolver loads the image a manifest reference points to.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (image.Image, error)
}

// DirResolver resolves references as paths below Root.
type DirResolver struct {
	Root string
}

// Resolve implements Resolver.
func (d DirResolver) Resolve(_ context.Context, ref string) (image.Image, error) {
	f, err := os.Open(filepath.Join(d.Root, filepath.FromSlash(ref)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return img, nil
}

// ImageFetcher downloads an image.
type ImageFetcher interface {
	Image(ctx context.Context, url string) (image.Image, int64, error)
}

// URLResolver resolves references relative to BaseURL.
type URLResolver struct {
	BaseURL string
	Fetcher ImageFetcher
}

// Resolve implements Resolver.
func (u URLResolver) Resolve(ctx context.Context, ref string) (image.Image, error) {
	url := strings.TrimSuffix(u.BaseURL, "/") + "/" + strings.TrimPrefix(ref, "/")
	img, _, err := u.Fetcher.Image(ctx, url)
	return img, err
}

// Entries yields the manifest's entries in order. Entries missing a symbol
// or image reference are yielded as ErrInvalidEntry errors.
func Entries(manifest []ManifestEntry, r Resolver) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for i, m := range manifest {
			if m.Symbol == "" || m.ImageURLFullBody == "" {
				if !yield(Entry{}, fmt.Errorf("%w: index %d", ErrInvalidEntry, i)) {
					return
				}
				continue
			}

			ref := m.ImageURLFullBody
			e := Entry{
				Label:  m.Symbol,
				Name:   m.Name,
				Rarity: m.MaxRarity,
				Ref:    ref,
				Load: func(ctx context.Context) (image.Image, error) {
					return r.Resolve(ctx, ref)
				},
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Slice yields the given entries.
func Slice(entries ...Entry) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}
