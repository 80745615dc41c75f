// Package indexer builds Feature Records from a labeled image corpus.
//
// Build is the batch pass: entries below MinRarity are skipped, accepted
// images are cropped to the top 70% of their height, described, and every
// non-empty result is saved once the whole pass succeeded. IndexOne adds a
// single image without the crop.
package indexer

import (
	"context"
	"fmt"
	"image"
	"iter"
	"log/slog"
	"net/url"

	"github.com/hupe1980/behold/blobstore"
	"github.com/hupe1980/behold/corpus"
	"github.com/hupe1980/behold/descriptor"
	"github.com/hupe1980/behold/fallback"
	"github.com/hupe1980/behold/internal/imaging"
	"github.com/hupe1980/behold/model"
	"github.com/hupe1980/behold/store"
)

const (
	// MinRarity is the lowest rarity the batch pass indexes.
	MinRarity = 4

	// CropNum and CropDen select the top 7/10 of a reference image.
	CropNum = 7
	CropDen = 10

	// DebugPrefix is the blob prefix of debug artifacts.
	DebugPrefix = "debug/"
)

// DebugName returns the debug artifact blob name of label.
func DebugName(label string) string {
	return DebugPrefix + "feat_" + url.PathEscape(label) + ".png"
}

// SignatureSink receives whole-image signatures for the fallback gallery.
type SignatureSink interface {
	Put(ctx context.Context, entries ...fallback.Entry) error
}

// Options configures an Indexer.
type Options struct {
	// Debug receives debug artifacts. Defaults to the record store's blobs.
	Debug blobstore.BlobStore
	// Gallery receives a signature of every accepted image. Optional.
	Gallery SignatureSink
	// Logger is optional.
	Logger *slog.Logger
}

// BuildOptions configures one Build pass.
type BuildOptions struct {
	// SkipDebugArtifacts disables the cropped PNG per entry.
	SkipDebugArtifacts bool
	// Progress is called with "Parsing <name>..." for every accepted entry.
	Progress func(string)
}

// BuildStats summarizes a Build pass.
type BuildStats struct {
	// Seen counts all entries.
	Seen int
	// Skipped counts entries below MinRarity.
	Skipped int
	// Empty counts accepted entries without descriptors.
	Empty int
	// Indexed counts saved records.
	Indexed int
}

// Indexer is the Index Builder.
type Indexer struct {
	store     *store.Store
	extractor descriptor.Extractor
	debug     blobstore.BlobStore
	gallery   SignatureSink
	logger    *slog.Logger
}

// New creates an Indexer writing to st.
func New(st *store.Store, extractor descriptor.Extractor, optFns ...func(*Options)) *Indexer {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Debug == nil {
		opts.Debug = st.Blobs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Indexer{
		store:     st,
		extractor: extractor,
		debug:     opts.Debug,
		gallery:   opts.Gallery,
		logger:    opts.Logger,
	}
}

// Build runs a batch pass over entries. Any corpus, decode or extraction
// error aborts the pass before records or signatures are saved.
func (ix *Indexer) Build(ctx context.Context, entries iter.Seq2[corpus.Entry, error], opts BuildOptions) (BuildStats, error) {
	var (
		stats   BuildStats
		records []model.FeatureRecord
		sigs    []fallback.Entry
	)

	for entry, err := range entries {
		if err != nil {
			return stats, fmt.Errorf("corpus: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Seen++
		if entry.Rarity < MinRarity {
			stats.Skipped++
			continue
		}

		if opts.Progress != nil {
			opts.Progress(fmt.Sprintf("Parsing %s...", entry.DisplayName()))
		}

		img, err := entry.Load(ctx)
		if err != nil {
			return stats, fmt.Errorf("load %q: %w", entry.Label, err)
		}

		if ix.gallery != nil {
			sigs = append(sigs, fallback.Entry{Label: entry.Label, Signature: fallback.NewSignature(img)})
		}

		cropped := imaging.CropTop(img, CropNum, CropDen)
		if !opts.SkipDebugArtifacts {
			ix.writeDebug(ctx, entry.Label, cropped)
		}

		rec, ok, err := ix.describe(entry.Label, entry.Rarity, cropped)
		if err != nil {
			return stats, err
		}
		if !ok {
			stats.Empty++
			continue
		}
		records = append(records, rec)
	}

	if err := ix.store.Save(ctx, records); err != nil {
		return stats, err
	}
	if ix.gallery != nil {
		if err := ix.gallery.Put(ctx, sigs...); err != nil {
			return stats, fmt.Errorf("gallery: %w", err)
		}
	}

	stats.Indexed = len(records)
	ix.logger.InfoContext(ctx, "build completed",
		"seen", stats.Seen,
		"skipped", stats.Skipped,
		"empty", stats.Empty,
		"indexed", stats.Indexed,
	)
	return stats, nil
}

// IndexOne describes img without cropping and saves it under label with
// rarity 0. It reports whether a record was written.
func (ix *Indexer) IndexOne(ctx context.Context, label string, img image.Image) (bool, error) {
	if img == nil {
		return false, descriptor.ErrNilImage
	}

	rec, ok, err := ix.describe(label, 0, img)
	if err != nil {
		return false, err
	}

	if ix.gallery != nil {
		if err := ix.gallery.Put(ctx, fallback.Entry{Label: label, Signature: fallback.NewSignature(img)}); err != nil {
			return false, fmt.Errorf("gallery: %w", err)
		}
	}

	if !ok {
		return false, nil
	}
	if err := ix.store.Save(ctx, []model.FeatureRecord{rec}); err != nil {
		return false, err
	}
	return true, nil
}

func (ix *Indexer) describe(label string, rarity int, img image.Image) (model.FeatureRecord, bool, error) {
	m, _, err := ix.extractor.Describe(img)
	if err != nil {
		return model.FeatureRecord{}, false, fmt.Errorf("describe %q: %w", label, err)
	}
	if m.Empty() {
		ix.logger.Debug("no descriptors, skipping", "label", label)
		return model.FeatureRecord{}, false, nil
	}
	return model.NewFeatureRecord(label, rarity, m), true, nil
}

// writeDebug stores the cropped image. Failures are logged and otherwise ignored.
func (ix *Indexer) writeDebug(ctx context.Context, label string, img image.Image) {
	data, err := imaging.EncodePNG(img)
	if err == nil {
		err = ix.debug.Put(ctx, DebugName(label), data)
	}
	if err != nil {
		ix.logger.WarnContext(ctx, "debug artifact failed", "label", label, "error", err)
	}
}
