package hash

import (
	"hash"
	"hash/adler32"
)

// Adler32 computes the RFC 1950 Adler-32 checksum of data.
// The checksum of empty input is 1. Adler-32 is cheap to compute and is
// used for corruption detection only; it is not cryptographic.
func Adler32(data []byte) uint32 {
	return adler32.Checksum(data)
}

// NewAdler32 returns a new Adler-32 hash.Hash32.
func NewAdler32() hash.Hash32 {
	return adler32.New()
}
