package blobstore

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// ErrBlobClosed is returned by reads on a closed blob.
var ErrBlobClosed = errors.New("blobstore: blob is closed")

// byteBlob serves a blob held entirely in memory, either a heap slice or a
// read-only file mapping. release runs once, on the first Close.
type byteBlob struct {
	data    []byte
	release func([]byte) error
	closed  atomic.Bool
}

func (b *byteBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if b.closed.Load() {
		return 0, ErrBlobClosed
	}
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *byteBlob) Size() int64 { return int64(len(b.data)) }

// Bytes implements Mappable. The slice is valid until Close.
func (b *byteBlob) Bytes() ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrBlobClosed
	}
	return b.data, nil
}

func (b *byteBlob) Close() error {
	if b.closed.Swap(true) || b.release == nil || len(b.data) == 0 {
		return nil
	}
	return b.release(b.data)
}
