package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_KnownVector(t *testing.T) {
	// RFC 3720 B.4: 32 bytes of zeroes.
	assert.Equal(t, uint32(0x8a9136aa), Checksum(make([]byte, 32)))
}

func TestVerifyTrailer(t *testing.T) {
	body := []byte("kirk")
	data := le.AppendUint32(append([]byte(nil), body...), Checksum(body))

	got, err := verifyTrailer(data)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	data[0] ^= 0xff
	_, err = verifyTrailer(data)
	var mismatch *ErrChecksumMismatch
	require.True(t, errors.As(err, &mismatch))
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
