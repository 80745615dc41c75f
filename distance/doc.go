// Package distance provides the distance kernels used by the matchers.
//
//   - SquaredL2: descriptor row comparison in the primary matcher
//   - Hamming64: dHash comparison in the fallback matcher
//   - Intersection: normalized histogram overlap in the fallback matcher
//
// All functions assume equal-length inputs; callers check shapes.
package distance
