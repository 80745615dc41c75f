// Package server exposes the search engine over HTTP.
//
//	GET /api/behold?url=<image url>
//
// answers {"beholdResult": ..., "voyResult": ..., "size": n}.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/behold/model"
)

// Searcher answers queries by image URL. *behold.Engine implements it.
type Searcher interface {
	SearchURL(ctx context.Context, url string) *model.Response
}

// Options configures the server.
type Options struct {
	Addr string
	// ShutdownTimeout bounds graceful shutdown. Default 10s.
	ShutdownTimeout time.Duration
}

// Handler returns the HTTP API.
func Handler(s Searcher, logger *slog.Logger, corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("/api/", handleAPI(s))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	return Chain(mux,
		Recover(logger),
		AccessLog(logger),
		CORS(corsOrigin),
		Trace("behold"),
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleAPI(s Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if r.URL.Path != "/api/behold" || r.Method != http.MethodGet || !r.URL.Query().Has("url") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintf(w, "Nothing to see here! (%s)", r.URL.Path)
			return
		}

		resp := s.SearchURL(r.Context(), strings.TrimSpace(url))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Run serves h until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, h http.Handler, opts Options, logger *slog.Logger) error {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
