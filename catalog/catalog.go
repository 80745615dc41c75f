// Package catalog holds the immutable in-memory set of Feature Records that
// queries scan.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/hupe1980/behold/model"
)

// ErrDuplicateLabel is returned when two records share a label.
var ErrDuplicateLabel = errors.New("duplicate label")

// Catalog is an immutable, label-sorted set of Feature Records.
// It is safe for concurrent use.
type Catalog struct {
	records []model.FeatureRecord
	byLabel map[string]int
}

// Empty is a catalog without records.
var Empty = &Catalog{byLabel: map[string]int{}}

// New builds a catalog from records.
// The slice is copied and sorted; the records must not be mutated afterwards.
func New(records []model.FeatureRecord) (*Catalog, error) {
	sorted := make([]model.FeatureRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })

	byLabel := make(map[string]int, len(sorted))
	for i := range sorted {
		if err := sorted[i].Validate(); err != nil {
			return nil, err
		}
		if _, ok := byLabel[sorted[i].Label]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, sorted[i].Label)
		}
		byLabel[sorted[i].Label] = i
	}

	return &Catalog{records: sorted, byLabel: byLabel}, nil
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns the records in label order. Callers must not modify them.
func (c *Catalog) Records() []model.FeatureRecord {
	if c == nil {
		return nil
	}
	return c.records
}

// Get returns the record of label.
func (c *Catalog) Get(label string) (*model.FeatureRecord, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.byLabel[label]
	if !ok {
		return nil, false
	}
	return &c.records[i], true
}

// Ref is an atomically swappable catalog reference.
// The zero value holds Empty.
type Ref struct {
	p atomic.Pointer[Catalog]
}

// Load returns the current catalog, never nil.
func (r *Ref) Load() *Catalog {
	if c := r.p.Load(); c != nil {
		return c
	}
	return Empty
}

// Swap publishes c and returns the previous catalog.
func (r *Ref) Swap(c *Catalog) *Catalog {
	if c == nil {
		c = Empty
	}
	old := r.p.Swap(c)
	if old == nil {
		return Empty
	}
	return old
}
