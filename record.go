package recordfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/recordfile/internal/hash"
)

const (
	// RecordHeaderSize is the size of the per-record header.
	RecordHeaderSize = 40

	// recordHeaderPayloadSize is the checksummed prefix of the header,
	// everything before the headChecksum field.
	recordHeaderPayloadSize = 36

	// MaxRecordSize is the largest payload a single record can hold.
	MaxRecordSize = 1<<32 - 1

	// recordDeletedFlag marks a record that sits on the free list.
	recordDeletedFlag = uint64(1) << 63
)

// recordHeader is the 40-byte header preceding every record slot. The
// next and previous offsets chain the record into either the live list
// or the free list.
type recordHeader struct {
	next         uint64
	previous     uint64
	bitFlags     uint64
	capacity     uint32
	dataLength   uint32
	dataChecksum uint32
	headChecksum uint32
}

func (h *recordHeader) deleted() bool {
	return h.bitFlags&recordDeletedFlag != 0
}

// encode writes the header into buf and stamps headChecksum over the
// encoded 36-byte prefix.
func (h *recordHeader) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], h.next)
	binary.LittleEndian.PutUint64(buf[8:16], h.previous)
	binary.LittleEndian.PutUint64(buf[16:24], h.bitFlags)
	binary.LittleEndian.PutUint32(buf[24:28], h.capacity)
	binary.LittleEndian.PutUint32(buf[28:32], h.dataLength)
	binary.LittleEndian.PutUint32(buf[32:36], h.dataChecksum)
	h.headChecksum = hash.Adler32(buf[:recordHeaderPayloadSize])
	binary.LittleEndian.PutUint32(buf[36:40], h.headChecksum)
}

// decode parses buf and verifies the header checksum.
func (h *recordHeader) decode(buf []byte) error {
	h.next = binary.LittleEndian.Uint64(buf[0:8])
	h.previous = binary.LittleEndian.Uint64(buf[8:16])
	h.bitFlags = binary.LittleEndian.Uint64(buf[16:24])
	h.capacity = binary.LittleEndian.Uint32(buf[24:28])
	h.dataLength = binary.LittleEndian.Uint32(buf[28:32])
	h.dataChecksum = binary.LittleEndian.Uint32(buf[32:36])
	h.headChecksum = binary.LittleEndian.Uint32(buf[36:40])

	if expected := hash.Adler32(buf[:recordHeaderPayloadSize]); expected != h.headChecksum {
		return newHeaderChecksumError(0, expected, h.headChecksum)
	}
	return nil
}

// readRecordHeader reads and validates the record header at offset.
func (s *Store) readRecordHeader(offset uint64) (recordHeader, error) {
	var h recordHeader
	if offset == NotFound {
		return h, ErrNotFound
	}

	var buf [RecordHeaderSize]byte
	if n := s.cache.Read(offset, buf[:]); n != RecordHeaderSize {
		return h, fmt.Errorf("read record header at %d: %w", offset, ErrShortIO)
	}

	if err := s.decodeRecordHeader(offset, &h, buf[:]); err != nil {
		return h, err
	}
	return h, nil
}

func (s *Store) decodeRecordHeader(offset uint64, h *recordHeader, buf []byte) error {
	if err := h.decode(buf); err != nil {
		var mismatch *ErrChecksumMismatch
		if errors.As(err, &mismatch) {
			mismatch.Offset = offset
		}
		return err
	}
	return nil
}

// writeRecordHeader stamps the header checksum and writes the header at
// offset. The caller's struct receives the updated headChecksum.
func (s *Store) writeRecordHeader(offset uint64, h *recordHeader) error {
	var buf [RecordHeaderSize]byte
	h.encode(buf[:])
	if n := s.cache.Write(offset, buf[:]); n != RecordHeaderSize {
		return fmt.Errorf("write record header at %d: %w", offset, ErrShortIO)
	}
	return nil
}

// writeRecord writes header and payload of a record in one go.
func (s *Store) writeRecord(offset uint64, h *recordHeader, data []byte) error {
	if err := s.writeRecordHeader(offset, h); err != nil {
		return err
	}
	if n := s.cache.Write(offset+RecordHeaderSize, data); n != len(data) {
		return fmt.Errorf("write record data at %d: %w", offset, ErrShortIO)
	}
	return nil
}
