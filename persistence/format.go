package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies feature record files (ASCII: "BHLD").
	MagicNumber = 0x424C4448
	// Version is the current record format version.
	Version = 1

	// headerSize is the fixed part before the label.
	headerSize = 4 + 2 + 1 + 1 + 4 + 4 + 4 + 2
	// payloadHeaderSize is rawLen + dataLen.
	payloadHeaderSize = 4 + 4
	checksumSize      = 4

	// MaxLabelLen is the longest label the format can carry.
	MaxLabelLen = 1<<16 - 1
)

var le = binary.LittleEndian

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrUnsupportedVersion = errors.New("unsupported record version")
	ErrCorruptRecord      = errors.New("corrupt record")
)

// ErrChecksumMismatch is returned when the stored trailer does not match the
// record bytes.
type ErrChecksumMismatch struct {
	Expected uint32
	Actual   uint32
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %08x, got %08x", e.Expected, e.Actual)
}

// Is lets callers match any checksum failure against ErrCorruptRecord.
func (e *ErrChecksumMismatch) Is(target error) bool { return target == ErrCorruptRecord }
