//go:build !unix

package blobstore

import (
	"io"
	"os"
)

// mapFile reads the whole file on platforms without mmap.
func mapFile(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}
