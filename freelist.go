package recordfile

import (
	"errors"

	"github.com/hupe1980/recordfile/internal/hash"
)

// getFromFreeList scans up to freeLookupDepth free records for one with
// sufficient capacity and recycles it. Returns (NotFound, _, nil) when
// no candidate fits so the caller appends instead. A large enough
// free-list entry whose deleted bit is clear aborts the scan: the list
// is inconsistent and must not be modified. The deleted bit of entries
// too small to fit is not checked.
//
// Caller holds the structural lock exclusively.
func (s *Store) getFromFreeList(data []byte, link bool, prev, next uint64) (uint64, recordHeader, error) {
	capacity := uint32(len(data))

	s.headerMu.RLock()
	totalFree := s.header.totalFreeRecords
	offset := s.header.firstFreeRecord
	tail := s.header.lastRecord
	s.headerMu.RUnlock()

	if totalFree == 0 {
		return NotFound, recordHeader{}, nil
	}

	depth := s.freeLookupDepth.Load()
	for i := uint64(0); offset != NotFound && i < depth; i++ {
		free, err := s.readRecordHeader(offset)
		if err != nil {
			s.logger.Warn("free list scan aborted", "offset", offset, "error", err)
			return NotFound, recordHeader{}, nil
		}

		if free.capacity >= capacity {
			if !free.deleted() {
				s.logger.Error("free list entry without deleted bit", "offset", offset)
				return NotFound, recordHeader{}, nil
			}

			if err := s.removeRecordFromFreeList(offset, &free); err != nil {
				if errors.Is(err, ErrNotDeleted) {
					return NotFound, recordHeader{}, nil
				}
				return NotFound, recordHeader{}, err
			}

			header := recordHeader{
				next:         next,
				previous:     prev,
				bitFlags:     free.bitFlags &^ recordDeletedFlag,
				capacity:     free.capacity,
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
			if link {
				s.header.lastRecord = offset
				if s.header.firstRecord == NotFound {
					s.header.firstRecord = offset
				}
				s.header.totalRecords++
			}
			err = s.writeStorageHeader()
			s.headerMu.Unlock()
			if err != nil {
				return NotFound, recordHeader{}, err
			}

			return offset, header, nil
		}

		offset = free.next
	}

	return NotFound, recordHeader{}, nil
}

// addRecordToFreeList marks the record at offset deleted and appends it
// to the free list tail. The header passed in must be the record's
// current on-disk header. Storage header fields are updated in memory
// only; the caller persists them.
//
// Caller holds the structural lock exclusively; RemoveRecord also holds
// the record's lock, a relocating update does not.
func (s *Store) addRecordToFreeList(offset uint64, header *recordHeader) error {
	if header.deleted() {
		return ErrRecordDeleted
	}

	s.headerMu.RLock()
	freeTail := s.header.lastFreeRecord
	s.headerMu.RUnlock()

	if freeTail != NotFound {
		s.locks.Lock(freeTail)
		tailHeader, err := s.readRecordHeader(freeTail)
		if err == nil {
			tailHeader.next = offset
			err = s.writeRecordHeader(freeTail, &tailHeader)
		}
		s.locks.Unlock(freeTail)
		if err != nil {
			return err
		}
	}

	header.next = NotFound
	header.previous = freeTail
	header.dataLength = 0
	header.dataChecksum = 0
	header.bitFlags |= recordDeletedFlag
	if err := s.writeRecordHeader(offset, header); err != nil {
		return err
	}

	s.headerMu.Lock()
	if s.header.firstFreeRecord == NotFound {
		s.header.firstFreeRecord = offset
	}
	s.header.lastFreeRecord = offset
	s.header.totalFreeRecords++
	s.headerMu.Unlock()

	return nil
}

// removeRecordFromFreeList unlinks a free record so its slot can be
// recycled. Refuses records whose deleted bit is clear. Storage header
// fields are updated in memory only; the caller persists them.
//
// Caller holds the structural lock exclusively.
func (s *Store) removeRecordFromFreeList(offset uint64, free *recordHeader) error {
	if !free.deleted() {
		s.logger.Error("refusing to unlink record without deleted bit", "offset", offset)
		return ErrNotDeleted
	}

	left, right := free.previous, free.next

	switch {
	case left != NotFound && right != NotFound:
		leftHeader, err := s.readRecordHeader(left)
		if err != nil {
			return err
		}
		rightHeader, err := s.readRecordHeader(right)
		if err != nil {
			return err
		}
		leftHeader.next = right
		rightHeader.previous = left
		if err := s.writeRecordHeader(left, &leftHeader); err != nil {
			return err
		}
		if err := s.writeRecordHeader(right, &rightHeader); err != nil {
			return err
		}
	case left != NotFound:
		leftHeader, err := s.readRecordHeader(left)
		if err != nil {
			return err
		}
		leftHeader.next = NotFound
		if err := s.writeRecordHeader(left, &leftHeader); err != nil {
			return err
		}
		s.headerMu.Lock()
		s.header.lastFreeRecord = left
		s.headerMu.Unlock()
	case right != NotFound:
		rightHeader, err := s.readRecordHeader(right)
		if err != nil {
			return err
		}
		rightHeader.previous = NotFound
		if err := s.writeRecordHeader(right, &rightHeader); err != nil {
			return err
		}
		s.headerMu.Lock()
		s.header.firstFreeRecord = right
		s.headerMu.Unlock()
	default:
		s.headerMu.Lock()
		s.header.firstFreeRecord = NotFound
		s.header.lastFreeRecord = NotFound
		s.headerMu.Unlock()
	}

	s.headerMu.Lock()
	s.header.totalFreeRecords--
	s.headerMu.Unlock()

	return nil
}
