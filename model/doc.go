// Package model defines the data types shared by the indexing and matching
// pipelines.
//
// # Persisted Types
//
//   - FeatureRecord: one label's descriptor matrix plus metadata
//   - ElementKind: numeric representation tag of a descriptor matrix
//
// # Transient Types
//
//   - Matrix, Keypoint: output of a descriptor extractor
//   - MatchCandidate, MatchResult: primary matcher output
//   - FallbackResult: whole-image comparator output
//   - Response: composite search response
package model
