package persistence

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32-C of data, the record trailer value.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// verifyTrailer checks that the last four bytes of data hold the checksum of
// everything before them and returns the checked body.
func verifyTrailer(data []byte) ([]byte, error) {
	body := data[:len(data)-checksumSize]
	stored := le.Uint32(data[len(data)-checksumSize:])
	if actual := Checksum(body); actual != stored {
		return nil, &ErrChecksumMismatch{Expected: stored, Actual: actual}
	}
	return body, nil
}
