package model

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a FeatureRecord violates its shape invariants.
var ErrInvalidRecord = errors.New("invalid feature record")

// ElementKind tags the numeric representation of a descriptor matrix.
// Values are part of the persisted format and must never be renumbered.
type ElementKind uint8

const (
	// KindUnknown is the zero value and is never persisted.
	KindUnknown ElementKind = 0
	// KindFloat32 is a float descriptor (SURF, SIFT, the built-in extractor).
	KindFloat32 ElementKind = 1
	// KindFloat64 is a double precision descriptor.
	KindFloat64 ElementKind = 2
	// KindUint8 is a byte descriptor (binary descriptors such as ORB).
	KindUint8 ElementKind = 3
)

// Valid reports whether k is a known, persistable kind.
func (k ElementKind) Valid() bool {
	return k >= KindFloat32 && k <= KindUint8
}

func (k ElementKind) String() string {
	switch k {
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindUint8:
		return "uint8"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Keypoint is a detected interest point.
type Keypoint struct {
	X, Y     float32
	Size     float32
	Angle    float32
	Response float32
}

// Matrix is a dense row-major descriptor matrix; one row per keypoint.
type Matrix struct {
	Rows int
	Cols int
	Kind ElementKind
	Data []float32
}

// Empty reports whether the matrix has no usable descriptors.
func (m Matrix) Empty() bool {
	return m.Rows <= 0 || m.Cols <= 0
}

// Row returns row i as a view into Data.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// FeatureRecord is the persisted descriptor signature of one label.
type FeatureRecord struct {
	Label    string
	Rows     int
	Cols     int
	Kind     ElementKind
	Features []float32
	// Rarity is only consulted while building the index.
	Rarity int
}

// NewFeatureRecord builds a record from an extracted matrix.
// The matrix data is copied.
func NewFeatureRecord(label string, rarity int, m Matrix) FeatureRecord {
	features := make([]float32, len(m.Data))
	copy(features, m.Data)
	return FeatureRecord{
		Label:    label,
		Rows:     m.Rows,
		Cols:     m.Cols,
		Kind:     m.Kind,
		Features: features,
		Rarity:   rarity,
	}
}

// Matrix returns a view of the record's descriptors.
func (r *FeatureRecord) Matrix() Matrix {
	return Matrix{Rows: r.Rows, Cols: r.Cols, Kind: r.Kind, Data: r.Features}
}

// Validate checks the invariants every persisted record satisfies.
func (r *FeatureRecord) Validate() error {
	if r.Label == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidRecord)
	}
	if r.Rows <= 0 || r.Cols <= 0 {
		return fmt.Errorf("%w: %q has empty descriptor matrix %dx%d", ErrInvalidRecord, r.Label, r.Rows, r.Cols)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q has element kind %s", ErrInvalidRecord, r.Label, r.Kind)
	}
	if len(r.Features) != r.Rows*r.Cols {
		return fmt.Errorf("%w: %q has %d features, want %d", ErrInvalidRecord, r.Label, len(r.Features), r.Rows*r.Cols)
	}
	return nil
}

// MatchCandidate is one label's primary match score.
type MatchCandidate struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// MatchResult is the ranked primary matcher output.
type MatchResult struct {
	// Candidates are ordered by descending score, then ascending label.
	Candidates []MatchCandidate `json:"candidates"`
	// Top is the first candidate, nil when the catalog is empty.
	Top   *MatchCandidate `json:"top"`
	Valid bool            `json:"valid"`
}

// FallbackResult is the whole-image comparator output.
// Similarity is not comparable with MatchCandidate.Score.
type FallbackResult struct {
	Label      string  `json:"label,omitempty"`
	Valid      bool    `json:"valid"`
	Similarity float64 `json:"similarity"`
}

// Response bundles both matcher slots and the query's byte size.
// A nil slot means that matcher did not run.
type Response struct {
	BeholdResult *MatchResult    `json:"beholdResult"`
	VoyResult    *FallbackResult `json:"voyResult"`
	Size         int64           `json:"size"`
}
