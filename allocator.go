package recordfile

import (
	"github.com/hupe1980/recordfile/internal/hash"
)

// allocateRecord finds space for data: the first slot of an empty store,
// a recycled free record of sufficient capacity, or a fresh slot
// appended at endOfData. When link is true the record is chained to the
// tail of the live list and counted; otherwise the caller supplies the
// prev/next links (relocating update) and the live count is untouched.
//
// Caller holds the structural lock exclusively.
func (s *Store) allocateRecord(data []byte, link bool, prev, next uint64) (uint64, recordHeader, error) {
	s.headerMu.RLock()
	empty := s.header.firstFreeRecord == NotFound && s.header.lastRecord == NotFound
	s.headerMu.RUnlock()

	if empty {
		return s.createFirstRecord(data)
	}

	offset, header, err := s.getFromFreeList(data, link, prev, next)
	if err == nil && offset != NotFound {
		return offset, header, nil
	}
	if err != nil {
		return NotFound, recordHeader{}, err
	}

	return s.appendNewRecord(data, link, prev, next)
}

// createFirstRecord lays down the very first record right after the
// storage header.
func (s *Store) createFirstRecord(data []byte) (uint64, recordHeader, error) {
	const offset = uint64(StorageHeaderSize)
	capacity := uint32(len(data))

	header := recordHeader{
		next:         NotFound,
		previous:     NotFound,
		capacity:     capacity,
		dataLength:   capacity,
		dataChecksum: hash.Adler32(data),
	}
	if err := s.writeRecord(offset, &header, data); err != nil {
		return NotFound, recordHeader{}, err
	}

	s.headerMu.Lock()
	s.header.firstRecord = offset
	s.header.lastRecord = offset
	s.header.endOfData = offset + RecordHeaderSize + uint64(capacity)
	s.header.totalRecords++
	err := s.writeStorageHeader()
	s.headerMu.Unlock()
	if err != nil {
		return NotFound, recordHeader{}, err
	}

	return offset, header, nil
}

// appendNewRecord creates a record at endOfData with capacity equal to
// the payload length.
func (s *Store) appendNewRecord(data []byte, link bool, prev, next uint64) (uint64, recordHeader, error) {
	capacity := uint32(len(data))
	if capacity == 0 {
		return NotFound, recordHeader{}, ErrCapacityExhausted
	}

	s.headerMu.RLock()
	offset := s.header.endOfData
	tail := s.header.lastRecord
	s.headerMu.RUnlock()

	header := recordHeader{
		next:         next,
		previous:     prev,
		capacity:     capacity,
		dataLength:   capacity,
		dataChecksum: hash.Adler32(data),
	}
	if link {
		header.next = NotFound
		header.previous = tail
	}
	if err := s.writeRecord(offset, &header, data); err != nil {
		return NotFound, recordHeader{}, err
	}

	if link && tail != NotFound {
		tailHeader, err := s.readRecordHeader(tail)
		if err != nil {
			return NotFound, recordHeader{}, err
		}
		tailHeader.next = offset
		if err := s.writeRecordHeader(tail, &tailHeader); err != nil {
			return NotFound, recordHeader{}, err
		}
	}

	s.headerMu.Lock()
	s.header.endOfData = offset + RecordHeaderSize + uint64(capacity)
	if link {
		s.header.lastRecord = offset
		if s.header.firstRecord == NotFound {
			s.header.firstRecord = offset
		}
		s.header.totalRecords++
	}
	err := s.writeStorageHeader()
	s.headerMu.Unlock()
	if err != nil {
		return NotFound, recordHeader{}, err
	}

	return offset, header, nil
}
