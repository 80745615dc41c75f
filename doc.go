// Package behold is a content-based visual similarity search engine.
//
// An index maps labels to local feature descriptors extracted from labeled
// reference images. A query image is matched against every label; the best
// label is reported with a confidence flag, and when the descriptor match is
// not confident a coarser whole-image comparison runs as a fallback.
//
// # Quick Start
//
// Build an index:
//
//	ctx := context.Background()
//	st := store.New(blobstore.NewLocalStore("./data"))
//	ix := indexer.New(st, descriptor.NewCorners())
//	stats, _ := ix.Build(ctx, corpus.Entries(manifest, corpus.DirResolver{Root: "./assets"}), indexer.BuildOptions{})
//
// Query it:
//
//	eng, _ := behold.Open(ctx, st)
//	resp := eng.Search(ctx, img, size)
//	if resp.BeholdResult.Valid {
//	    fmt.Println(resp.BeholdResult.Top.Label)
//	}
//
// # Remote Storage
//
// Records live in any blobstore.BlobStore:
//
//	s3Store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("behold/"))
//	eng, _ := behold.Open(ctx, store.New(s3Store))
//
// # Fallback
//
// The fallback gallery holds whole-image signatures in SQLite:
//
//	gs, _ := fallback.OpenGalleryStore(ctx, "./data/gallery.db")
//	eng, _ := behold.Open(ctx, st, behold.WithGallerySource(gs))
//
// # Concurrency
//
// Search, SearchURL and Reload are safe for concurrent use. Queries read an
// immutable catalog; Reload builds a new one and swaps it in atomically.
package behold

// Version is the library version reported in traces.
const Version = "0.1.0"
