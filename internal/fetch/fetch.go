// Package fetch downloads and decodes images over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/hupe1980/behold/internal/imaging"
	"github.com/hupe1980/behold/resource"
)

var (
	// ErrTooLarge is returned when a body exceeds Options.MaxBytes.
	ErrTooLarge = errors.New("fetch: image too large")
	// ErrMissingURL is returned for an empty URL.
	ErrMissingURL = errors.New("fetch: missing url")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds a whole request. Default 30s.
	Timeout time.Duration
	// MaxBytes caps the body size. Default 16 MiB.
	MaxBytes int64
	// RequestsPerSecond limits request starts. 0 disables. Default 5.
	RequestsPerSecond float64
	// Burst is the limiter burst. Default 5.
	Burst int
	// UserAgent is sent with every request.
	UserAgent string
	// Resource throttles body bytes. Optional.
	Resource *resource.Controller
	// Transport overrides the base round tripper. It is wrapped with otelhttp.
	Transport http.RoundTripper
}

// DefaultOptions returns the default fetcher options.
func DefaultOptions() Options {
	return Options{
		Timeout:           30 * time.Second,
		MaxBytes:          16 << 20,
		RequestsPerSecond: 5,
		Burst:             5,
		UserAgent:         "behold/1.0",
	}
}

// Fetcher downloads images.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Fetcher.
func New(optFns ...func(*Options)) *Fetcher {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		opts: opts,
	}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}
	return f
}

// Bytes downloads url.
func (f *Fetcher) Bytes(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrMissingURL
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.opts.Resource != nil {
		body = resource.NewRateLimitedReader(ctx, body, f.opts.Resource)
	}
	if f.opts.MaxBytes > 0 {
		body = io.LimitReader(body, f.opts.MaxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if f.opts.MaxBytes > 0 && int64(len(data)) > f.opts.MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Image downloads and decodes url. The byte size of the body is returned
// with the image.
func (f *Fetcher) Image(ctx context.Context, url string) (image.Image, int64, error) {
	data, err := f.Bytes(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	img, err := imaging.DecodeBytes(data)
	if err != nil {
		return nil, int64(len(data)), err
	}
	return img, int64(len(data)), nil
}
