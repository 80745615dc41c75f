package behold

import (
	"context"
	"image"
	"log/slog"

	"github.com/hupe1980/behold/descriptor"
	"github.com/hupe1980/behold/fallback"
	"github.com/hupe1980/behold/matcher"
	"github.com/hupe1980/behold/resource"
)

// GallerySource loads the fallback gallery. *fallback.GalleryStore implements it.
type GallerySource interface {
	Gallery(ctx context.Context, optFns ...func(*fallback.Options)) (*fallback.Gallery, error)
}

// ImageFetcher downloads a query image. *fetch.Fetcher implements it.
type ImageFetcher interface {
	Image(ctx context.Context, url string) (image.Image, int64, error)
}

type options struct {
	extractor         descriptor.Extractor
	matcherOpts       []func(*matcher.Options)
	gallerySource     GallerySource
	fallbackThreshold float64
	fetcher           ImageFetcher
	resource          *resource.Controller
	metricsCollector  MetricsCollector
	logger            *Logger
}

// Option configures Open.
type Option func(*options)

// WithExtractor sets the descriptor extractor used for queries.
// It must match the extractor the index was built with.
// If nil is passed, descriptor.NewCorners() is used.
func WithExtractor(e descriptor.Extractor) Option {
	return func(o *options) {
		if e == nil {
			e = descriptor.NewCorners()
		}
		o.extractor = e
	}
}

// WithMatcherOptions tunes the primary matcher (ratio, minimum matches,
// distance bound).
//
// Example:
//
//	eng, _ := behold.Open(ctx, st, behold.WithMatcherOptions(func(o *matcher.Options) {
//	    o.MinMatches = 10
//	}))
func WithMatcherOptions(optFns ...func(*matcher.Options)) Option {
	return func(o *options) {
		o.matcherOpts = append(o.matcherOpts, optFns...)
	}
}

// WithGallerySource enables the fallback matcher, loading its gallery from src
// on Open and on every Reload. Without a source the fallback always reports
// an invalid result without a label.
func WithGallerySource(src GallerySource) Option {
	return func(o *options) {
		o.gallerySource = src
	}
}

// WithFallbackThreshold sets the similarity a fallback result needs to be valid.
func WithFallbackThreshold(t float64) Option {
	return func(o *options) {
		o.fallbackThreshold = t
	}
}

// WithFetcher sets the downloader used by SearchURL.
func WithFetcher(f ImageFetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithResourceController bounds concurrent catalog scans.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &behold.BasicMetricsCollector{}
//	eng, _ := behold.Open(ctx, st, behold.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, valid: %d\n", stats.SearchCount, stats.SearchValid)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := behold.NewJSONLogger(slog.LevelInfo)
//	eng, _ := behold.Open(ctx, st, behold.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fallbackThreshold: fallback.DefaultThreshold,
		metricsCollector:  NoopMetricsCollector{},
		logger:            NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.extractor == nil {
		o.extractor = descriptor.NewCorners()
	}
	return o
}
