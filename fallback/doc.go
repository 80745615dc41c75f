// Package fallback implements the whole-image comparator used when the
// primary descriptor matcher is not confident.
//
// Every image is reduced to a Signature: a 64-bit difference hash of a 9x8
// grayscale thumbnail plus a normalized 64-bin RGB histogram. Similarity folds
// the hash's Hamming distance and the histogram intersection into [0, 1].
//
// A Gallery is an immutable set of labeled signatures. GalleryStore persists
// signatures in SQLite so a gallery can be rebuilt at startup.
package fallback
