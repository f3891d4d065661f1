package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdler32(t *testing.T) {
	// RFC 1950: the checksum of empty input is 1.
	assert.Equal(t, uint32(1), Adler32(nil))
	assert.Equal(t, uint32(1), Adler32([]byte{}))

	// Known vectors.
	assert.Equal(t, uint32(0x11E60398), Adler32([]byte("Wikipedia")))
	assert.Equal(t, uint32(0x045D01C1), Adler32([]byte("abc")))
}

func TestNewAdler32(t *testing.T) {
	h := NewAdler32()
	_, err := h.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x024D0127), h.Sum32())
}

func TestAdler32_Incremental(t *testing.T) {
	h := NewAdler32()
	h.Write([]byte("Wiki"))
	h.Write([]byte("pedia"))
	assert.Equal(t, Adler32([]byte("Wikipedia")), h.Sum32())
}
