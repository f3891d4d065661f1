package recordfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// storageSignature is the magic value at byte 0 ("KNOW").
	storageSignature uint32 = 0x574F4E4B

	// storageVersion is the current format version.
	storageVersion uint32 = 1

	// StorageHeaderSize is the size of the storage header at offset 0.
	StorageHeaderSize = 64

	// NotFound is the all-ones sentinel used in place of a null offset.
	NotFound uint64 = math.MaxUint64

	// freeLookupMinDepth is the minimum number of free-list entries the
	// allocator scans before falling back to appending.
	freeLookupMinDepth = 64

	// freeLookupRatio scales the scan depth with the free list size:
	// depth = max(freeLookupMinDepth, totalFreeRecords/freeLookupRatio).
	freeLookupRatio = 10
)

// storageHeader is the 64-byte header at file offset 0. All fields are
// encoded little-endian.
type storageHeader struct {
	signature        uint32
	version          uint32
	endOfData        uint64
	totalRecords     uint64
	firstRecord      uint64
	lastRecord       uint64
	totalFreeRecords uint64
	firstFreeRecord  uint64
	lastFreeRecord   uint64
}

func (h *storageHeader) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.signature)
	binary.LittleEndian.PutUint32(buf[4:8], h.version)
	binary.LittleEndian.PutUint64(buf[8:16], h.endOfData)
	binary.LittleEndian.PutUint64(buf[16:24], h.totalRecords)
	binary.LittleEndian.PutUint64(buf[24:32], h.firstRecord)
	binary.LittleEndian.PutUint64(buf[32:40], h.lastRecord)
	binary.LittleEndian.PutUint64(buf[40:48], h.totalFreeRecords)
	binary.LittleEndian.PutUint64(buf[48:56], h.firstFreeRecord)
	binary.LittleEndian.PutUint64(buf[56:64], h.lastFreeRecord)
}

func (h *storageHeader) decode(buf []byte) {
	h.signature = binary.LittleEndian.Uint32(buf[0:4])
	h.version = binary.LittleEndian.Uint32(buf[4:8])
	h.endOfData = binary.LittleEndian.Uint64(buf[8:16])
	h.totalRecords = binary.LittleEndian.Uint64(buf[16:24])
	h.firstRecord = binary.LittleEndian.Uint64(buf[24:32])
	h.lastRecord = binary.LittleEndian.Uint64(buf[32:40])
	h.totalFreeRecords = binary.LittleEndian.Uint64(buf[40:48])
	h.firstFreeRecord = binary.LittleEndian.Uint64(buf[48:56])
	h.lastFreeRecord = binary.LittleEndian.Uint64(buf[56:64])
}

// createStorageHeader initializes the in-memory header for a fresh file
// and persists it. Caller must hold headerMu exclusively.
func (s *Store) createStorageHeader() error {
	s.header = storageHeader{
		signature:       storageSignature,
		version:         storageVersion,
		endOfData:       StorageHeaderSize,
		firstRecord:     NotFound,
		lastRecord:      NotFound,
		firstFreeRecord: NotFound,
		lastFreeRecord:  NotFound,
	}
	return s.writeStorageHeader()
}

// writeStorageHeader persists the in-memory header and adjusts the free
// lookup depth to the current free list size. Caller must hold headerMu
// exclusively.
func (s *Store) writeStorageHeader() error {
	var buf [StorageHeaderSize]byte
	s.header.encode(buf[:])
	if n := s.cache.Write(0, buf[:]); n != StorageHeaderSize {
		return fmt.Errorf("write storage header: %w", ErrShortIO)
	}
	s.adjustFreeLookupDepth()
	return nil
}

// loadStorageHeader reads and validates the header from the file.
// Caller must hold headerMu exclusively.
func (s *Store) loadStorageHeader() error {
	var buf [StorageHeaderSize]byte
	if n := s.cache.Read(0, buf[:]); n != StorageHeaderSize {
		return fmt.Errorf("%w: storage header truncated", ErrHeaderCorrupt)
	}

	var h storageHeader
	h.decode(buf[:])
	if h.signature != storageSignature {
		return fmt.Errorf("%w: bad signature %#x", ErrHeaderCorrupt, h.signature)
	}
	if h.version != storageVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrHeaderCorrupt, h.version)
	}

	s.header = h
	s.adjustFreeLookupDepth()
	return nil
}

func (s *Store) adjustFreeLookupDepth() {
	depth := s.header.totalFreeRecords / freeLookupRatio
	if depth < freeLookupMinDepth {
		depth = freeLookupMinDepth
	}
	s.freeLookupDepth.Store(depth)
}
