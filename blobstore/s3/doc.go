// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("behold/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	idx := store.New(store)
//
// Range reads serve partial fetches, listing paginates automatically and a
// configurable prefix isolates deployments sharing one bucket.
package s3
