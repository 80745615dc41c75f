package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/behold"
	"github.com/hupe1980/behold/blobstore"
	"github.com/hupe1980/behold/blobstore/minio"
	"github.com/hupe1980/behold/blobstore/s3"
	"github.com/hupe1980/behold/fallback"
	"github.com/hupe1980/behold/internal/config"
	"github.com/hupe1980/behold/internal/fetch"
	"github.com/hupe1980/behold/matcher"
	"github.com/hupe1980/behold/persistence"
	"github.com/hupe1980/behold/resource"
	"github.com/hupe1980/behold/store"
)

// storeLocation is a parsed --store value.
type storeLocation struct {
	Scheme string // "file", "s3" or "minio"
	Bucket string
	Prefix string
	Path   string
}

func parseStoreURL(raw string) (storeLocation, error) {
	if raw == "" {
		return storeLocation{}, fmt.Errorf("store url is empty")
	}
	if !strings.Contains(raw, "://") {
		return storeLocation{Scheme: "file", Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return storeLocation{}, fmt.Errorf("parse store url: %w", err)
	}

	switch u.Scheme {
	case "file":
		return storeLocation{Scheme: "file", Path: u.Host + u.Path}, nil
	case "s3", "minio":
		if u.Host == "" {
			return storeLocation{}, fmt.Errorf("store url %q has no bucket", raw)
		}
		return storeLocation{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.TrimPrefix(u.Path, "/")}, nil
	default:
		return storeLocation{}, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

func openBlobStore(ctx context.Context, cfg config.StoreConfig) (blobstore.BlobStore, error) {
	loc, err := parseStoreURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "s3":
		var opts []s3.Option
		if loc.Prefix != "" {
			opts = append(opts, s3.WithPrefix(loc.Prefix))
		}
		if cfg.S3.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.S3.Endpoint))
		}
		if cfg.S3.PathStyle {
			opts = append(opts, s3.WithPathStyle())
		}
		return s3.New(ctx, loc.Bucket, opts...)
	case "minio":
		client, err := miniogo.New(cfg.MinIO.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.NewStore(client, loc.Bucket, loc.Prefix), nil
	default:
		return blobstore.NewLocalStore(loc.Path), nil
	}
}

func newResource(cfg config.ResourceConfig) *resource.Controller {
	return resource.NewController(resource.Config{
		MaxConcurrentQueries: cfg.MaxConcurrentQueries,
		MaxLoadWorkers:       cfg.MaxLoadWorkers,
		IOLimitBytesPerSec:   cfg.IOLimitBytesPerSec,
	})
}

func openStore(ctx context.Context, cfg *config.Config, rc *resource.Controller, logger *slog.Logger) (*store.Store, error) {
	blobs, err := openBlobStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	comp, err := persistence.ParseCompression(cfg.Store.Compression)
	if err != nil {
		return nil, err
	}

	return store.New(blobs, func(o *store.Options) {
		o.Compression = comp
		o.Resource = rc
		o.Logger = logger
	}), nil
}

func newFetcher(cfg config.FetchConfig, rc *resource.Controller) *fetch.Fetcher {
	return fetch.New(func(o *fetch.Options) {
		if cfg.Timeout > 0 {
			o.Timeout = cfg.Timeout
		}
		if cfg.MaxBytes > 0 {
			o.MaxBytes = cfg.MaxBytes
		}
		o.RequestsPerSecond = cfg.RequestsPerSecond
		o.Resource = rc
	})
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func newLogger(cfg config.LogConfig) *behold.Logger {
	if strings.EqualFold(cfg.Format, "json") {
		return behold.NewJSONLogger(parseLevel(cfg.Level))
	}
	return behold.NewTextLogger(parseLevel(cfg.Level))
}

// app bundles everything a command needs.
type app struct {
	cfg      *config.Config
	logger   *behold.Logger
	resource *resource.Controller
	store    *store.Store
	fetcher  *fetch.Fetcher
	gallery  *fallback.GalleryStore
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log)
	for _, w := range cfg.Validate() {
		logger.Warn("config", "warning", w)
	}

	rc := newResource(cfg.Resource)

	st, err := openStore(ctx, cfg, rc, logger.Logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		resource: rc,
		store:    st,
		fetcher:  newFetcher(cfg.Fetch, rc),
	}

	if cfg.Gallery.Path != "" {
		gs, err := fallback.OpenGalleryStore(ctx, cfg.Gallery.Path)
		if err != nil {
			return nil, err
		}
		a.gallery = gs
	}

	return a, nil
}

func (a *app) openEngine(ctx context.Context, mc behold.MetricsCollector) (*behold.Engine, error) {
	opts := []behold.Option{
		behold.WithFetcher(a.fetcher),
		behold.WithResourceController(a.resource),
		behold.WithLogger(a.logger),
		behold.WithFallbackThreshold(a.cfg.Fallback.Threshold),
		behold.WithMetricsCollector(mc),
		behold.WithMatcherOptions(func(o *matcher.Options) {
			if r := a.cfg.Matcher.Ratio; r > 0 && r <= 1 {
				o.Ratio = r
			}
			if a.cfg.Matcher.MinMatches > 0 {
				o.MinMatches = a.cfg.Matcher.MinMatches
			}
			o.MaxDistance = a.cfg.Matcher.MaxDistance
		}),
	}
	if a.gallery != nil {
		opts = append(opts, behold.WithGallerySource(a.gallery))
	}

	return behold.Open(ctx, a.store, opts...)
}

func (a *app) Close() error {
	if a.gallery != nil {
		return a.gallery.Close()
	}
	return nil
}
