package behold

import (
	"errors"
	"fmt"

	"github.com/hupe1980/behold/blobstore"
	"github.com/hupe1980/behold/catalog"
	"github.com/hupe1980/behold/model"
	"github.com/hupe1980/behold/persistence"
)

var (
	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("engine is closed")
	// ErrNilStore is returned by Open without a record store.
	ErrNilStore = errors.New("record store is nil")

	// ErrNotFound is returned when a blob does not exist.
	ErrNotFound = blobstore.ErrNotFound
	// ErrInvalidRecord is returned for records violating their shape invariants.
	ErrInvalidRecord = model.ErrInvalidRecord
	// ErrCorruptRecord is returned for records failing their checksum or framing.
	ErrCorruptRecord = persistence.ErrCorruptRecord
	// ErrDuplicateLabel is returned when two records share a label.
	ErrDuplicateLabel = catalog.ErrDuplicateLabel
)

// LoadError reports a failed catalog or gallery load.
//
// The original underlying error can be accessed via errors.Unwrap.
type LoadError struct {
	// Stage is "records", "catalog" or "gallery".
	Stage string
	cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Stage, e.cause)
}

func (e *LoadError) Unwrap() error { return e.cause }
