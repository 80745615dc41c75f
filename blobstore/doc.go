// Package blobstore provides the storage abstraction under the index store.
//
// A BlobStore holds named, immutable blobs. Names are slash separated and
// relative to the store root, e.g. "traindata/kirk.bin".
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local file system with mmap reads
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3
//   - minio.Store: MinIO and other S3-compatible storage
package blobstore
