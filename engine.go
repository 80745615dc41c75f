package behold

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/hupe1980/behold/catalog"
	"github.com/hupe1980/behold/fallback"
	"github.com/hupe1980/behold/internal/observability"
	"github.com/hupe1980/behold/matcher"
	"github.com/hupe1980/behold/model"
	"github.com/hupe1980/behold/store"
)

// Response is the outcome of one query.
type Response = model.Response

// Engine is the search orchestrator. It owns an immutable catalog and
// fallback gallery, both replaced only by Reload.
type Engine struct {
	store   *store.Store
	matcher *matcher.Matcher
	opts    options

	catalog catalog.Ref
	gallery fallback.Ref

	reloadMu sync.Mutex
	closed   bool
}

// Open loads the catalog (and gallery, if configured) and returns a ready Engine.
func Open(ctx context.Context, st *store.Store, optFns ...Option) (*Engine, error) {
	if st == nil {
		return nil, ErrNilStore
	}

	opts := applyOptions(optFns)
	e := &Engine{
		store:   st,
		matcher: matcher.New(opts.matcherOpts...),
		opts:    opts,
	}

	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Catalog returns the catalog queries currently scan.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog.Load()
}

// Reload rebuilds the catalog and gallery from their stores and swaps them in.
// On failure the previous catalog and gallery stay in place.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	if e.closed {
		return ErrClosed
	}

	start := time.Now()
	cat, gal, err := e.load(ctx)
	e.opts.metricsCollector.RecordReload(cat.Len(), time.Since(start), err)
	e.opts.logger.LogReload(ctx, cat.Len(), gal.Len(), err)
	if err != nil {
		return err
	}

	e.catalog.Swap(cat)
	e.gallery.Swap(gal)
	return nil
}

func (e *Engine) load(ctx context.Context) (*catalog.Catalog, *fallback.Gallery, error) {
	records, err := e.store.LoadAll(ctx)
	if err != nil {
		return nil, nil, &LoadError{Stage: "records", cause: err}
	}

	cat, err := catalog.New(records)
	if err != nil {
		return nil, nil, &LoadError{Stage: "catalog", cause: err}
	}

	var gal *fallback.Gallery
	if e.opts.gallerySource != nil {
		gal, err = e.opts.gallerySource.Gallery(ctx, func(o *fallback.Options) {
			o.Threshold = e.opts.fallbackThreshold
		})
		if err != nil {
			return nil, nil, &LoadError{Stage: "gallery", cause: err}
		}
	} else {
		gal = fallback.NewGallery(nil, func(o *fallback.Options) {
			o.Threshold = e.opts.fallbackThreshold
		})
	}

	return cat, gal, nil
}

// Search matches img against the catalog. size is echoed in the response.
//
// A nil image yields a response with both slots nil and size 0. Extraction
// failures count as an image without descriptors. The fallback runs only when
// the primary result is not valid, and its result fills the fallback slot
// whether valid or not.
func (e *Engine) Search(ctx context.Context, img image.Image, size int64) *Response {
	if img == nil {
		return &Response{}
	}

	ctx, span := observability.StartSearchSpan(ctx, size)
	defer span.End()

	if err := e.opts.resource.AcquireQuery(ctx); err != nil {
		observability.RecordError(span, err)
		return &Response{Size: size}
	}
	defer e.opts.resource.ReleaseQuery()

	resp := &Response{Size: size}

	primary := e.primary(ctx, img)
	resp.BeholdResult = &primary

	if !primary.Valid {
		voy := e.fallback(ctx, img)
		resp.VoyResult = &voy
	}

	e.opts.logger.LogSearch(ctx, resp)
	return resp
}

func (e *Engine) primary(ctx context.Context, img image.Image) model.MatchResult {
	cat := e.catalog.Load()
	_, span := observability.StartMatchSpan(ctx, "primary", cat.Len())
	defer span.End()

	start := time.Now()
	query, _, err := e.opts.extractor.Describe(img)
	if err != nil {
		observability.RecordError(span, err)
		e.opts.logger.WarnContext(ctx, "describe query failed", "error", err)
		query = model.Matrix{}
	}

	res := e.matcher.Match(query, cat)
	e.opts.metricsCollector.RecordSearch(time.Since(start), len(res.Candidates), res.Valid)

	if res.Top != nil {
		observability.RecordMatch(span, res.Top.Label, res.Valid)
	}
	return res
}

func (e *Engine) fallback(ctx context.Context, img image.Image) model.FallbackResult {
	gal := e.gallery.Load()
	_, span := observability.StartMatchSpan(ctx, "fallback", gal.Len())
	defer span.End()

	start := time.Now()
	res := gal.MatchImage(img)
	e.opts.metricsCollector.RecordFallback(time.Since(start), res.Valid)

	observability.RecordMatch(span, res.Label, res.Valid)
	return res
}

// SearchURL downloads the image at url and searches it. Download or decode
// failures yield a response with both slots nil.
func (e *Engine) SearchURL(ctx context.Context, url string) *Response {
	if e.opts.fetcher == nil {
		e.opts.logger.WarnContext(ctx, "search by url without fetcher", "url", url)
		return &Response{}
	}

	img, size, err := e.opts.fetcher.Image(ctx, url)
	if err != nil {
		e.opts.logger.WarnContext(ctx, "fetch query image failed", "url", url, "error", err)
		return &Response{}
	}
	return e.Search(ctx, img, size)
}

// Close drops the catalog and gallery. Searches after Close see an empty
// catalog; Reload fails with ErrClosed.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}

	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.catalog.Swap(nil)
	e.gallery.Swap(nil)
	return nil
}
