// Package descriptor turns images into local feature descriptor matrices.
//
// Extractor is the capability the index builder and the search engine depend
// on. Corners is the built-in implementation: Harris corners with an upright
// SURF-style descriptor. Each keypoint gets a 4x4 grid of cells over a 16x16
// patch, and every cell contributes (sum dx, sum dy, sum |dx|, sum |dy|), for
// 64 L2-normalized float32 columns per row.
//
// Output is deterministic for a given image and option set.
package descriptor
