package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/behold"
	"github.com/hupe1980/behold/corpus"
	"github.com/hupe1980/behold/descriptor"
	"github.com/hupe1980/behold/indexer"
	"github.com/hupe1980/behold/internal/imaging"
	"github.com/hupe1980/behold/internal/observability"
	"github.com/hupe1980/behold/internal/server"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "behold",
		Short:         "Visual similarity search over a labeled image corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML)")

	var (
		manifestPath string
		assetsDir    string
		baseURL      string
		noImages     bool
	)
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Build the index from a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd.Context(), configPath, manifestPath, assetsDir, baseURL, noImages)
		},
	}
	trainCmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to the manifest JSON file")
	trainCmd.Flags().StringVar(&assetsDir, "assets", "", "Directory holding the manifest's images")
	trainCmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL of the manifest's images (overrides fetch.asset_base_url)")
	trainCmd.Flags().BoolVar(&noImages, "no-images", false, "Do not write debug images")
	_ = trainCmd.MarkFlagRequired("manifest")

	var label string
	indexCmd := &cobra.Command{
		Use:   "index <image>",
		Short: "Add or replace a single label from an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), configPath, label, args[0])
		},
	}
	indexCmd.Flags().StringVar(&label, "label", "", "Label of the image")
	_ = indexCmd.MarkFlagRequired("label")

	searchCmd := &cobra.Command{
		Use:   "search <image file or url>",
		Short: "Search the index and print the response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), configPath, args[0])
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	rootCmd.AddCommand(trainCmd, indexCmd, searchCmd, serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runTrain(ctx context.Context, configPath, manifestPath, assetsDir, baseURL string, noImages bool) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	manifest, err := corpus.ReadManifestFile(manifestPath)
	if err != nil {
		return err
	}

	if baseURL == "" {
		baseURL = a.cfg.Fetch.AssetBaseURL
	}

	var resolver corpus.Resolver
	switch {
	case assetsDir != "":
		resolver = corpus.DirResolver{Root: assetsDir}
	case baseURL != "":
		resolver = corpus.URLResolver{BaseURL: baseURL, Fetcher: a.fetcher}
	default:
		return fmt.Errorf("either --assets or --base-url is required")
	}

	ix := a.indexer()
	stats, err := ix.Build(ctx, corpus.Entries(manifest, resolver), indexer.BuildOptions{
		SkipDebugArtifacts: noImages,
		Progress:           func(msg string) { fmt.Println(msg) },
	})
	a.logger.LogBuild(ctx, stats, err)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d of %d entries (%d below rarity %d, %d without features)\n",
		stats.Indexed, stats.Seen, stats.Skipped, indexer.MinRarity, stats.Empty)
	return nil
}

func runIndex(ctx context.Context, configPath, label, path string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := imaging.DecodeBytes(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ok, err := a.indexer().IndexOne(ctx, label, img)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no features found, nothing indexed", path)
	}

	fmt.Printf("Indexed %s\n", label)
	return nil
}

func runSearch(ctx context.Context, configPath, target string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	eng, err := a.openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	var resp *behold.Response
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		resp = eng.SearchURL(ctx, target)
	} else {
		data, err := os.ReadFile(target)
		if err != nil {
			return err
		}
		img, err := imaging.DecodeBytes(data)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		resp = eng.Search(ctx, img, int64(len(data)))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func runServe(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	shutdownTracing, err := observability.Setup(ctx, observability.TracingConfig{
		ServiceName:    "behold",
		ServiceVersion: behold.Version,
		Environment:    a.cfg.Tracing.Environment,
		OTLPEndpoint:   a.cfg.Tracing.Endpoint,
		SampleRate:     a.cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutCtx)
	}()

	metrics := &behold.BasicMetricsCollector{}
	eng, err := a.openEngine(ctx, metrics)
	if err != nil {
		return err
	}
	defer eng.Close()

	go reloadOnHangup(ctx, eng, a.logger)

	h := server.Handler(eng, a.logger.Logger, a.cfg.Server.CORSOrigin)
	err = server.Run(ctx, h, server.Options{Addr: a.cfg.Server.Addr}, a.logger.Logger)

	stats := metrics.GetStats()
	a.logger.Info("api server stopped",
		"searches", stats.SearchCount,
		"valid", stats.SearchValid,
		"fallbacks", stats.FallbackCount,
	)
	return err
}

// reloadOnHangup reloads the catalog on SIGHUP, e.g. after a train run.
func reloadOnHangup(ctx context.Context, eng *behold.Engine, logger *behold.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := eng.Reload(ctx); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

func (a *app) indexer() *indexer.Indexer {
	return indexer.New(a.store, descriptor.NewCorners(), func(o *indexer.Options) {
		o.Logger = a.logger.Logger
		if a.gallery != nil {
			o.Gallery = a.gallery
		}
	})
}
