package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/behold/blobstore"
	"github.com/hupe1980/behold/model"
	"github.com/hupe1980/behold/persistence"
	"github.com/hupe1980/behold/resource"
)

const (
	// Prefix is the blob name prefix of all records.
	Prefix = "traindata/"
	// Ext is the blob name suffix of all records.
	Ext = ".bin"
)

// BlobName returns the blob name holding label's record.
func BlobName(label string) string {
	return Prefix + url.PathEscape(label) + Ext
}

// Options configures a Store.
type Options struct {
	// Compression applied to record payloads on save. Default LZ4.
	Compression persistence.Compression
	// Resource throttles saves and bounds load concurrency. Optional.
	Resource *resource.Controller
	// Logger receives per-record debug lines. Optional.
	Logger *slog.Logger
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{Compression: persistence.CompressionLZ4}
}

// Store is the Index Store.
type Store struct {
	blobs blobstore.BlobStore
	opts  Options
}

// New creates a Store over blobs.
func New(blobs blobstore.BlobStore, optFns ...func(*Options)) *Store {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{blobs: blobs, opts: opts}
}

// Blobs returns the underlying blob store.
func (s *Store) Blobs() blobstore.BlobStore { return s.blobs }

// Save writes every record, replacing earlier records of the same labels.
// Records are validated before anything is written.
func (s *Store) Save(ctx context.Context, records []model.FeatureRecord) error {
	encoded := make([][]byte, len(records))
	for i := range records {
		data, err := persistence.EncodeRecord(&records[i], s.opts.Compression)
		if err != nil {
			return fmt.Errorf("encode %q: %w", records[i].Label, err)
		}
		encoded[i] = data
	}

	for i, data := range encoded {
		if err := s.opts.Resource.AcquireIO(ctx, len(data)); err != nil {
			return err
		}
		name := BlobName(records[i].Label)
		if err := s.blobs.Put(ctx, name, data); err != nil {
			return fmt.Errorf("save %q: %w", records[i].Label, err)
		}
		s.opts.Logger.DebugContext(ctx, "record saved",
			"label", records[i].Label,
			"rows", records[i].Rows,
			"bytes", len(data),
		)
	}
	return nil
}

// names returns the blob names of all stored records.
func (s *Store) names(ctx context.Context) ([]string, error) {
	all, err := s.blobs.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}
	names := all[:0]
	for _, n := range all {
		if strings.HasSuffix(n, Ext) && !strings.Contains(strings.TrimPrefix(n, Prefix), "/") {
			names = append(names, n)
		}
	}
	return names, nil
}

// LoadAll reads and decodes every stored record.
// Any unreadable or corrupt record fails the whole load.
// The result is sorted by label.
func (s *Store) LoadAll(ctx context.Context) ([]model.FeatureRecord, error) {
	names, err := s.names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records := make([]model.FeatureRecord, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Resource.LoadWorkers())

	for i, name := range names {
		g.Go(func() error {
			rec, err := s.load(gctx, name)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			records[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Label < records[j].Label })
	return records, nil
}

func (s *Store) load(ctx context.Context, name string) (model.FeatureRecord, error) {
	blob, err := s.blobs.Open(ctx, name)
	if err != nil {
		return model.FeatureRecord{}, err
	}
	defer blob.Close()

	// DecodeRecord copies the payload, so mapped bytes need not outlive the blob.
	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return model.FeatureRecord{}, err
		}
		return persistence.DecodeRecord(data)
	}

	data := make([]byte, blob.Size())
	if _, err := blob.ReadAt(ctx, data, 0); err != nil && !errors.Is(err, io.EOF) {
		return model.FeatureRecord{}, err
	}
	return persistence.DecodeRecord(data)
}
